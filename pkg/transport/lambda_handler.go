package transport

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// LambdaHandler adapta eventos do API Gateway para as rotas do Gateway HTTP.
type LambdaHandler struct {
	handler http.Handler
}

// NewLambdaHandler cria o adaptador sobre o router do gateway.
func NewLambdaHandler(g *Gateway) *LambdaHandler {
	return &LambdaHandler{handler: g.Router()}
}

// Handle processa a requisição Lambda
func (h *LambdaHandler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	httpReq, err := toHTTPRequest(ctx, req)
	if err != nil {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusBadRequest,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       `{"outcome":"failure","error":{"kind":"validation","message":"invalid request"}}`,
		}, nil
	}

	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, httpReq)

	headers := make(map[string]string, len(rec.Header()))
	for k, v := range rec.Header() {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}
	return events.APIGatewayProxyResponse{
		StatusCode: rec.Code,
		Headers:    headers,
		Body:       rec.Body.String(),
	}, nil
}

func toHTTPRequest(ctx context.Context, req events.APIGatewayProxyRequest) (*http.Request, error) {
	body := req.Body
	if req.IsBase64Encoded {
		raw, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return nil, err
		}
		body = string(raw)
	}

	target := url.URL{Path: req.Path}
	if len(req.MultiValueQueryStringParameters) > 0 {
		target.RawQuery = url.Values(req.MultiValueQueryStringParameters).Encode()
	} else if len(req.QueryStringParameters) > 0 {
		q := url.Values{}
		for k, v := range req.QueryStringParameters {
			q.Set(k, v)
		}
		target.RawQuery = q.Encode()
	}

	method := req.HTTPMethod
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}
