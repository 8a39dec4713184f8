package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/raywall/fast-crud-toolkit/crudapi"
	"github.com/raywall/fast-crud-toolkit/easycrud"
	"github.com/raywall/fast-crud-toolkit/query"
	"github.com/raywall/fast-crud-toolkit/restdb"
	"github.com/rs/zerolog"
)

const (
	HeaderCorrelationID = "x-correlation-id"
	HeaderLatency       = "x-latency-ms"
)

// Parâmetros de query reservados; os demais viram filtros.
var reservedParams = map[string]bool{"limit": true, "offset": true, "order": true}

// Gateway expõe a API de CRUD por HTTP. O corpo de toda resposta de
// operação é o envelope do serviço.
type Gateway struct {
	api     *crudapi.API
	logger  zerolog.Logger
	timeout time.Duration
	prefix  string
}

type GatewayOption func(*Gateway)

func WithLogger(l zerolog.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = l }
}

// WithTimeout limita cada requisição; zero mantém o timeout do store.
func WithTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.timeout = d }
}

// WithPrefix monta todas as rotas sob prefix (ex.: "/api").
func WithPrefix(prefix string) GatewayOption {
	return func(g *Gateway) { g.prefix = strings.TrimSuffix(prefix, "/") }
}

func NewGateway(api *crudapi.API, opts ...GatewayOption) *Gateway {
	g := &Gateway{api: api, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Router monta as rotas:
//
//	GET    /health
//	GET    /tables/{table}            lista (filtros: campo=valor, campo=gt.10, campo=like.ana, campo=in.(a,b))
//	POST   /tables/{table}            cria um registro (objeto) ou vários (array)
//	GET    /tables/{table}/count      conta com os mesmos filtros
//	GET    /tables/{table}/search     ?field=&term=&limit=
//	GET    /tables/{table}/{id}
//	PATCH  /tables/{table}/{id}
//	DELETE /tables/{table}/{id}
func (g *Gateway) Router() *mux.Router {
	root := mux.NewRouter()
	root.Use(g.ObservabilityMiddleware)

	r := root
	if g.prefix != "" {
		r = root.PathPrefix(g.prefix).Subrouter()
	}

	r.HandleFunc("/health", g.health).Methods(http.MethodGet)

	t := r.PathPrefix("/tables/{table}").Subrouter()
	t.HandleFunc("", g.list).Methods(http.MethodGet)
	t.HandleFunc("", g.create).Methods(http.MethodPost)
	t.HandleFunc("/count", g.count).Methods(http.MethodGet)
	t.HandleFunc("/search", g.search).Methods(http.MethodGet)
	t.HandleFunc("/{id}", g.get).Methods(http.MethodGet)
	t.HandleFunc("/{id}", g.update).Methods(http.MethodPatch)
	t.HandleFunc("/{id}", g.remove).Methods(http.MethodDelete)
	return root
}

// ListenAndServe atende em addr até ctx ser cancelado.
func (g *Gateway) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: g.Router(), ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info().Str("addr", addr).Msg("gateway HTTP ouvindo")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (g *Gateway) health(w http.ResponseWriter, r *http.Request) {
	if g.api.Probe(r.Context()) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
}

func (g *Gateway) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := g.context(r)
	defer cancel()

	filter, opts, err := parseQuery(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp := g.api.QuickSelect(ctx, mux.Vars(r)["table"], filter, opts...)
	writeResponse(w, http.StatusOK, resp)
}

func (g *Gateway) count(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := g.context(r)
	defer cancel()

	filter, _, err := parseQuery(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	writeResponse(w, http.StatusOK, g.api.Table(mux.Vars(r)["table"]).Count(ctx, filter))
}

func (g *Gateway) search(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := g.context(r)
	defer cancel()

	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, fmt.Errorf("limit inválido: %q", v))
			return
		}
		limit = n
	}
	resp := g.api.Table(mux.Vars(r)["table"]).Search(ctx, q.Get("field"), q.Get("term"), limit)
	writeResponse(w, http.StatusOK, resp)
}

func (g *Gateway) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := g.context(r)
	defer cancel()

	vars := mux.Vars(r)
	resp := g.api.Table(vars["table"]).GetByID(ctx, vars["id"])
	status := http.StatusOK
	if resp.OK() && resp.Data() == nil {
		status = http.StatusNotFound
	}
	writeResponse(w, status, resp)
}

func (g *Gateway) create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := g.context(r)
	defer cancel()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	svc := g.api.Table(mux.Vars(r)["table"])

	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var records []restdb.Record
		if err := decodeJSON(body, &records); err != nil {
			writeBadRequest(w, err)
			return
		}
		writeResponse(w, http.StatusCreated, svc.CreateMany(ctx, records))
		return
	}

	var record restdb.Record
	if err := decodeJSON(body, &record); err != nil {
		writeBadRequest(w, err)
		return
	}
	writeResponse(w, http.StatusCreated, svc.Create(ctx, record))
}

func (g *Gateway) update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := g.context(r)
	defer cancel()

	var patch restdb.Record
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeBadRequest(w, err)
		return
	}
	vars := mux.Vars(r)
	resp := g.api.Table(vars["table"]).Update(ctx, vars["id"], patch)
	status := http.StatusOK
	if resp.OK() && resp.Data() == nil {
		status = http.StatusNotFound
	}
	writeResponse(w, status, resp)
}

func (g *Gateway) remove(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := g.context(r)
	defer cancel()

	vars := mux.Vars(r)
	writeResponse(w, http.StatusOK, g.api.Table(vars["table"]).Delete(ctx, vars["id"]))
}

func (g *Gateway) context(r *http.Request) (context.Context, context.CancelFunc) {
	if g.timeout > 0 {
		return context.WithTimeout(r.Context(), g.timeout)
	}
	return context.WithCancel(r.Context())
}

// parseQuery converte a query string em filtro e opções de leitura.
// O valor aceita os prefixos gt. gte. lt. lte. like. in.(a,b); sem prefixo é igualdade.
func parseQuery(r *http.Request) (query.FilterSpec, []query.Option, error) {
	q := r.URL.Query()
	var (
		filter query.FilterSpec
		opts   []query.Option
	)

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, nil, fmt.Errorf("limit inválido: %q", v)
		}
		opts = append(opts, query.Limit(n))
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, nil, fmt.Errorf("offset inválido: %q", v)
		}
		opts = append(opts, query.Offset(n))
	}
	if v := q.Get("order"); v != "" {
		field, desc := strings.CutPrefix(v, "-")
		opts = append(opts, query.OrderBy(field, !desc))
	}

	fields := make([]string, 0, len(q))
	for field := range q {
		if !reservedParams[field] {
			fields = append(fields, field)
		}
	}
	// ordem estável para que o mesmo request gere o mesmo filtro
	sort.Strings(fields)

	for _, field := range fields {
		for _, raw := range q[field] {
			filter = filter.And(field, parseConstraint(raw))
		}
	}
	return filter, opts, nil
}

func parseConstraint(raw string) query.Constraint {
	op, rest, found := strings.Cut(raw, ".")
	if !found {
		return query.Equals(raw)
	}
	switch op {
	case "eq":
		return query.Equals(rest)
	case "gt":
		return query.GreaterThan(numeric(rest))
	case "gte":
		return query.AtLeast(numeric(rest))
	case "lt":
		return query.LessThan(numeric(rest))
	case "lte":
		return query.AtMost(numeric(rest))
	case "like":
		return query.TextMatch(rest)
	case "in":
		inner := strings.TrimSuffix(strings.TrimPrefix(rest, "("), ")")
		parts := strings.Split(inner, ",")
		values := make([]interface{}, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				values = append(values, p)
			}
		}
		return query.In(values...)
	}
	return query.Equals(raw)
}

// numeric converte limites de faixa em número quando possível.
func numeric(v string) interface{} {
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}

func decodeJSON(body []byte, out interface{}) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("corpo JSON inválido: %w", err)
	}
	return nil
}

type errorBody struct {
	Outcome easycrud.Outcome   `json:"outcome"`
	Error   easycrud.ErrorInfo `json:"error"`
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorBody{
		Outcome: easycrud.Failure,
		Error:   easycrud.ErrorInfo{Kind: easycrud.KindValidation, Message: err.Error()},
	})
}

// responseStatus traduz o tipo de falha em status HTTP.
func responseStatus(ok int, info *easycrud.ErrorInfo) int {
	if info == nil {
		return ok
	}
	switch info.Kind {
	case easycrud.KindValidation:
		return http.StatusBadRequest
	case easycrud.KindConnectivity:
		return http.StatusServiceUnavailable
	case easycrud.KindStore:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

type envelope interface {
	Err() *easycrud.ErrorInfo
}

func writeResponse(w http.ResponseWriter, ok int, resp envelope) {
	writeJSON(w, responseStatus(ok, resp.Err()), resp)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// --- MIDDLEWARE DE OBSERVABILIDADE ---
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode  int
	startTime   time.Time
	wroteHeader bool
}

func (rw *responseWriterWrapper) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.Header().Set(HeaderLatency, strconv.FormatInt(time.Since(rw.startTime).Milliseconds(), 10))
	rw.ResponseWriter.WriteHeader(code)
	rw.wroteHeader = true
}

func (rw *responseWriterWrapper) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// ObservabilityMiddleware propaga o correlation id (recebido ou gerado) para
// o log e para as chamadas ao store, e registra uma linha por requisição.
func (g *Gateway) ObservabilityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		corrID := r.Header.Get(HeaderCorrelationID)
		if corrID == "" {
			corrID = uuid.NewString()
		}
		w.Header().Set(HeaderCorrelationID, corrID)

		logger := g.logger.With().Str("correlation_id", corrID).Logger()
		ctx := logger.WithContext(r.Context())
		ctx = restdb.WithCorrelationID(ctx, corrID)

		wrapper := &responseWriterWrapper{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
			startTime:      start,
		}

		next.ServeHTTP(wrapper, r.WithContext(ctx))

		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Int64("latency_ms", time.Since(start).Milliseconds()).
			Msg("request completed")
	})
}
