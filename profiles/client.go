package profiles

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// HttpClientInterface é o subconjunto de *http.Client usado pelo Client.
type HttpClientInterface interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIError é devolvido quando a API responde com status >= 400.
type APIError struct {
	Status int
	Body   string
	// Detail é o corpo decodificado, quando for JSON.
	Detail map[string]interface{}
}

func (e *APIError) Error() string {
	if msg, ok := e.Detail["message"].(string); ok && msg != "" {
		return fmt.Sprintf("profile api: status %d: %s", e.Status, msg)
	}
	return fmt.Sprintf("profile api: status %d", e.Status)
}

// NotFound informa se a API respondeu 404.
func (e *APIError) NotFound() bool {
	return e.Status == http.StatusNotFound
}

// ErrEmptyIdentifier é devolvido quando conta ou identificador estão vazios.
var ErrEmptyIdentifier = errors.New("profiles: account id and identifier are required")

// Client faz requisições somente leitura à API de perfis.
type Client struct {
	cfg    Config
	http   HttpClientInterface
	logger zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(h HttpClientInterface) Option {
	return func(c *Client) { c.http = h }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithBaseURL sobrescreve a URL base da API (por exemplo, o ProfileAPIURL
// da configuração do store). Valor vazio é ignorado.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.cfg.APIURL = u
		}
	}
}

// New cria o client. Só a DSN é obrigatória.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("profiles: dsn is required")
	}
	c := &Client{cfg: cfg.withDefaults(), logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.cfg.Timeout}
	}
	return c, nil
}

// FromEnv cria o client a partir das variáveis UNIPILE_*.
func FromEnv(opts ...Option) (*Client, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...)
}

// BaseURL devolve a URL base efetiva.
func (c *Client) BaseURL() string {
	return c.cfg.APIURL
}

// Get faz um GET em endpoint (relativo à URL base) e decodifica o corpo JSON.
// Corpo vazio resulta em dados nil.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) (map[string]interface{}, error) {
	start := time.Now()

	target := strings.TrimRight(c.cfg.APIURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-KEY", c.cfg.DSN)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("profile api request")

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode, Body: string(body)}
		_ = json.Unmarshal(body, &apiErr.Detail)
		return nil, apiErr
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var data map[string]interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}
	return data, nil
}

// Probe consulta /api/v1/users/me. Qualquer falha vira false.
func (c *Client) Probe(ctx context.Context) bool {
	if _, err := c.Get(ctx, "/api/v1/users/me", nil); err != nil {
		c.logger.Warn().Err(err).Msg("profile api probe failed")
		return false
	}
	return true
}
