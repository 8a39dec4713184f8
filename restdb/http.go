package restdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/raywall/fast-crud-toolkit/storeconfig"
)

const (
	restPath  = "/rest/v1/"
	userAgent = "FastCrudToolkit/restdb"
)

// httpBackend fala o dialeto PostgREST exposto pelo Supabase em /rest/v1.
type httpBackend struct {
	baseURL    string
	credential string
	client     HttpClientInterface
}

func newHTTPBackend(cfg storeconfig.ConnectionConfig, client HttpClientInterface) (*httpBackend, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid http endpoint %q", ErrUnsupportedScheme, cfg.Endpoint)
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &httpBackend{
		baseURL:    strings.TrimRight(cfg.Endpoint, "/"),
		credential: cfg.Credential,
		client:     client,
	}, nil
}

func (b *httpBackend) Close() error {
	return nil
}

func (b *httpBackend) Ping(ctx context.Context) error {
	resp, err := b.do(ctx, http.MethodGet, b.baseURL+restPath, nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return readStatusError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (b *httpBackend) Execute(ctx context.Context, req *Request) (*Result, error) {
	target := b.baseURL + restPath + url.PathEscape(req.Collection)
	params := encodeConditions(req.Conditions)

	var (
		method  string
		body    interface{}
		headers = map[string]string{}
	)

	switch req.Operation {
	case OpSelect:
		method = http.MethodGet
		params.Set("select", selectColumns(req.Columns))
		if len(req.Order) > 0 {
			params.Set("order", encodeOrder(req.Order))
		}
		if req.Limit > 0 {
			params.Set("limit", strconv.Itoa(req.Limit))
		}
		if req.Offset > 0 {
			params.Set("offset", strconv.Itoa(req.Offset))
		}
	case OpCount:
		method = http.MethodHead
		params.Set("select", "*")
		headers["Prefer"] = "count=exact"
	case OpInsert:
		method = http.MethodPost
		body = req.Rows
		headers["Prefer"] = "return=representation"
	case OpUpdate:
		method = http.MethodPatch
		body = req.Patch
		headers["Prefer"] = "return=representation"
	case OpDelete:
		method = http.MethodDelete
		headers["Prefer"] = "return=representation"
	default:
		return nil, invalid("unknown operation %s", req.Operation)
	}

	if encoded := params.Encode(); encoded != "" {
		target += "?" + encoded
	}

	resp, err := b.do(ctx, method, target, body, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, readStatusError(resp)
	}

	if req.Operation == OpCount {
		_, _ = io.Copy(io.Discard, resp.Body)
		n, err := parseContentRange(resp.Header.Get("Content-Range"))
		if err != nil {
			return nil, &TransportError{Op: "count", Err: err}
		}
		return &Result{Count: n}, nil
	}

	records, err := decodeRecords(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: req.Operation.String(), Err: err}
	}
	return &Result{Records: records}, nil
}

func (b *httpBackend) do(ctx context.Context, method, target string, body interface{}, headers map[string]string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, invalid("could not encode body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &TransportError{Op: strings.ToLower(method), Err: err}
	}

	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("apikey", b.credential)
	httpReq.Header.Set("Authorization", "Bearer "+b.credential)
	httpReq.Header.Set("X-Correlation-ID", correlationID(ctx))
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Op: strings.ToLower(method), Err: err}
	}
	return resp, nil
}

type correlationKey struct{}

// WithCorrelationID propaga um id de correlação até os requests HTTP do store.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID devolve o id propagado no contexto, se houver.
func CorrelationID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(correlationKey{}).(string)
	return id, ok && id != ""
}

func correlationID(ctx context.Context) string {
	if id, ok := CorrelationID(ctx); ok {
		return id
	}
	return uuid.NewString()
}

func selectColumns(columns []string) string {
	if len(columns) == 0 {
		return "*"
	}
	return strings.Join(columns, ",")
}

func encodeOrder(orders []Order) string {
	parts := make([]string, 0, len(orders))
	for _, o := range orders {
		dir := "desc"
		if o.Ascending {
			dir = "asc"
		}
		parts = append(parts, o.Field+"."+dir)
	}
	return strings.Join(parts, ",")
}

// encodeConditions traduz as condições para filtros PostgREST (campo=op.valor).
func encodeConditions(conds []Condition) url.Values {
	params := url.Values{}
	for _, c := range conds {
		switch c.Op {
		case Eq:
			if c.Value == nil {
				params.Add(c.Field, "is.null")
				continue
			}
			params.Add(c.Field, "eq."+formatScalar(c.Value))
		case ILike:
			pattern, _ := c.Value.(string)
			params.Add(c.Field, "ilike."+postgrestPattern(pattern))
		case In:
			values, _ := c.Value.([]interface{})
			items := make([]string, 0, len(values))
			for _, v := range values {
				items = append(items, quoteListItem(formatScalar(v)))
			}
			params.Add(c.Field, "in.("+strings.Join(items, ",")+")")
		default:
			params.Add(c.Field, string(c.Op)+"."+formatScalar(c.Value))
		}
	}
	return params
}

// quoteListItem protege valores com separadores reservados da sintaxe in.(...).
func quoteListItem(s string) string {
	if !strings.ContainsAny(s, `,()" `) {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// parseContentRange lê o total de "0-9/42" ou "*/0".
func parseContentRange(header string) (int, error) {
	if header == "" {
		return 0, fmt.Errorf("missing content-range header")
	}
	_, total, found := strings.Cut(header, "/")
	if !found || total == "*" {
		return 0, fmt.Errorf("content-range without total: %q", header)
	}
	n, err := strconv.Atoi(total)
	if err != nil {
		return 0, fmt.Errorf("invalid content-range %q: %w", header, err)
	}
	return n, nil
}

func decodeRecords(r io.Reader) ([]Record, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []Record{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	// PostgREST devolve uma lista, mas um objeto único também é aceito
	if raw[0] == '{' {
		var one Record
		if err := dec.Decode(&one); err != nil {
			return nil, err
		}
		return []Record{NormalizeNumbers(one)}, nil
	}

	var records []Record
	if err := dec.Decode(&records); err != nil {
		return nil, err
	}
	for i := range records {
		records[i] = NormalizeNumbers(records[i])
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// NormalizeNumbers converte json.Number em int64 quando possível, senão float64.
func NormalizeNumbers(rec Record) Record {
	for k, v := range rec {
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				rec[k] = i
			} else if f, err := n.Float64(); err == nil {
				rec[k] = f
			}
		}
	}
	return rec
}

type postgrestError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func readStatusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var pe postgrestError
	if err := json.Unmarshal(raw, &pe); err != nil || pe.Message == "" {
		pe.Message = strings.TrimSpace(string(raw))
		if pe.Message == "" {
			pe.Message = http.StatusText(resp.StatusCode)
		}
	}
	if pe.Details != "" {
		pe.Message += " (" + pe.Details + ")"
	}
	return &StatusError{Status: resp.StatusCode, Code: pe.Code, Message: pe.Message}
}
