package transport

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-playground/validator/v10"
	"github.com/raywall/fast-crud-toolkit/crudapi"
	"github.com/raywall/fast-crud-toolkit/easycrud"
	"github.com/raywall/fast-crud-toolkit/restdb"
	"github.com/rs/zerolog"
)

// SQSClient define a interface necessária para o consumidor (permite Mocking)
type SQSClient interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// WriteMessage é o corpo esperado de cada mensagem da fila.
type WriteMessage struct {
	Table  string        `json:"table" validate:"required"`
	Action string        `json:"action" validate:"omitempty,oneof=insert update delete"` // insert (padrão)
	ID     interface{}   `json:"id,omitempty"` // update e delete sem id falham na validação do serviço
	Record restdb.Record `json:"record,omitempty" validate:"required_unless=Action delete"`
}

// SQSIngestor aplica gravações recebidas por uma fila SQS através da API.
// Mensagens com falha de validação são descartadas; falhas de conectividade
// ou do store ficam na fila para nova entrega.
type SQSIngestor struct {
	client   SQSClient
	queueURL string
	api      *crudapi.API
	logger   zerolog.Logger
	valid    *validator.Validate
	backoff  time.Duration
}

func NewSQSIngestor(client SQSClient, queueURL string, api *crudapi.API, logger zerolog.Logger) *SQSIngestor {
	return &SQSIngestor{
		client:   client,
		queueURL: queueURL,
		api:      api,
		logger:   logger.With().Str("component", "sqs_ingestor").Logger(),
		valid:    validator.New(),
		backoff:  5 * time.Second,
	}
}

// Start consome a fila até ctx ser cancelado (bloqueante).
func (s *SQSIngestor) Start(ctx context.Context) {
	if s.queueURL == "" {
		s.logger.Warn().Msg("URL da fila SQS não configurada; ingestão desativada")
		return
	}
	s.logger.Info().Str("queue", s.queueURL).Msg("consumindo fila SQS")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("parando consumo SQS")
			return
		default:
		}

		out, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(s.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20, // Long polling
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error().Err(err).Dur("backoff", s.backoff).Msg("erro no SQS")
			select {
			case <-time.After(s.backoff):
			case <-ctx.Done():
				return
			}
			continue
		}

		for _, msg := range out.Messages {
			if s.Process(ctx, aws.ToString(msg.Body)) {
				_, _ = s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
					QueueUrl:      aws.String(s.queueURL),
					ReceiptHandle: msg.ReceiptHandle,
				})
			}
		}
	}
}

// Process aplica uma mensagem e informa se ela pode ser removida da fila.
func (s *SQSIngestor) Process(ctx context.Context, body string) bool {
	var msg WriteMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		s.logger.Warn().Err(err).Msg("mensagem inválida descartada")
		return true
	}
	if err := s.valid.Struct(msg); err != nil {
		s.logger.Warn().Err(err).Str("table", msg.Table).Msg("mensagem inválida descartada")
		return true
	}

	info := s.apply(ctx, msg)
	if info == nil {
		return true
	}
	s.logger.Error().
		Str("table", msg.Table).
		Str("action", msg.Action).
		Str("kind", string(info.Kind)).
		Msg(info.Message)
	return info.Kind == easycrud.KindValidation
}

func (s *SQSIngestor) apply(ctx context.Context, msg WriteMessage) *easycrud.ErrorInfo {
	svc := s.api.Table(msg.Table)
	switch msg.Action {
	case "update":
		return svc.Update(ctx, msg.ID, msg.Record).Err()
	case "delete":
		return svc.Delete(ctx, msg.ID).Err()
	default:
		return svc.Create(ctx, msg.Record).Err()
	}
}
