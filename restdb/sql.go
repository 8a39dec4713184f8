package restdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/raywall/fast-crud-toolkit/storeconfig"
)

// dialect isola o que muda entre os bancos SQL suportados.
type dialect struct {
	name        string
	driver      string
	placeholder func(n int) string
	likeOp      string
	// noLimit é o LIMIT usado quando só há OFFSET.
	noLimit string
}

var postgresDialect = dialect{
	name:        "postgres",
	driver:      "postgres",
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	likeOp:      "ILIKE",
	noLimit:     "ALL",
}

// LIKE do SQLite já ignora maiúsculas para ASCII.
var sqliteDialect = dialect{
	name:        "sqlite",
	driver:      "sqlite3",
	placeholder: func(int) string { return "?" },
	likeOp:      "LIKE",
	noLimit:     "-1",
}

type sqlBackend struct {
	db      *sql.DB
	dialect dialect
}

func newSQLBackend(d dialect, endpoint string, cfg storeconfig.ConnectionConfig) (*sqlBackend, error) {
	dsn, err := d.dsn(endpoint, cfg.Credential)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("erro ao abrir conexão SQL: %w", err)
	}

	if d.name == "sqlite" {
		// Cada conexão com :memory: teria seu próprio banco
		db.SetMaxOpenConns(1)
	} else {
		db.SetConnMaxIdleTime(5 * time.Minute)
	}
	return &sqlBackend{db: db, dialect: d}, nil
}

// NewSQLBackend envolve um *sql.DB já aberto. dialectName é "postgres" ou "sqlite".
func NewSQLBackend(db *sql.DB, dialectName string) (Backend, error) {
	switch dialectName {
	case "postgres", "postgresql":
		return &sqlBackend{db: db, dialect: postgresDialect}, nil
	case "sqlite", "sqlite3":
		return &sqlBackend{db: db, dialect: sqliteDialect}, nil
	}
	return nil, fmt.Errorf("%w: sql dialect %q", ErrUnsupportedScheme, dialectName)
}

// dsn converte o endpoint em uma connection string do driver. Para postgres, a
// credencial vira a senha quando a URL não traz uma.
func (d dialect) dsn(endpoint, credential string) (string, error) {
	if d.name == "sqlite" {
		_, rest, _ := strings.Cut(endpoint, ":")
		rest = strings.TrimPrefix(rest, "//")
		if rest == "" {
			return "", fmt.Errorf("%w: sqlite endpoint without path", ErrUnsupportedScheme)
		}
		return rest, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: invalid postgres endpoint: %v", ErrUnsupportedScheme, err)
	}
	if u.User != nil {
		if _, hasPassword := u.User.Password(); !hasPassword && credential != "" {
			u.User = url.UserPassword(u.User.Username(), credential)
		}
	}
	return u.String(), nil
}

func (b *sqlBackend) Ping(ctx context.Context) error {
	if err := b.db.PingContext(ctx); err != nil {
		return &TransportError{Op: "ping", Err: err}
	}
	return nil
}

func (b *sqlBackend) Close() error {
	return b.db.Close()
}

func (b *sqlBackend) Execute(ctx context.Context, req *Request) (*Result, error) {
	table, err := quoteIdent(req.Collection)
	if err != nil {
		return nil, err
	}

	switch req.Operation {
	case OpSelect:
		q, args, err := b.selectSQL(table, req)
		if err != nil {
			return nil, err
		}
		records, err := b.query(ctx, b.db, q, args)
		if err != nil {
			return nil, err
		}
		return &Result{Records: records}, nil

	case OpCount:
		where, args, err := b.where(req.Conditions, 0)
		if err != nil {
			return nil, err
		}
		var n int
		if err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+where, args...).Scan(&n); err != nil {
			return nil, classifySQLError("count", err)
		}
		return &Result{Count: n}, nil

	case OpInsert:
		return b.insert(ctx, table, req.Rows)

	case OpUpdate:
		q, args, err := b.updateSQL(table, req)
		if err != nil {
			return nil, err
		}
		records, err := b.query(ctx, b.db, q, args)
		if err != nil {
			return nil, err
		}
		return &Result{Records: records}, nil

	case OpDelete:
		where, args, err := b.where(req.Conditions, 0)
		if err != nil {
			return nil, err
		}
		records, err := b.query(ctx, b.db, "DELETE FROM "+table+where+" RETURNING *", args)
		if err != nil {
			return nil, err
		}
		return &Result{Records: records}, nil
	}
	return nil, invalid("unknown operation %s", req.Operation)
}

func (b *sqlBackend) selectSQL(table string, req *Request) (string, []interface{}, error) {
	cols := "*"
	if len(req.Columns) > 0 && !(len(req.Columns) == 1 && req.Columns[0] == "*") {
		quoted := make([]string, 0, len(req.Columns))
		for _, c := range req.Columns {
			q, err := quoteIdent(c)
			if err != nil {
				return "", nil, err
			}
			quoted = append(quoted, q)
		}
		cols = strings.Join(quoted, ", ")
	}

	where, args, err := b.where(req.Conditions, 0)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + cols + " FROM " + table + where)

	if len(req.Order) > 0 {
		parts := make([]string, 0, len(req.Order))
		for _, o := range req.Order {
			q, err := quoteIdent(o.Field)
			if err != nil {
				return "", nil, err
			}
			if o.Ascending {
				parts = append(parts, q+" ASC")
			} else {
				parts = append(parts, q+" DESC")
			}
		}
		sb.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}

	switch {
	case req.Limit > 0:
		sb.WriteString(" LIMIT " + strconv.Itoa(req.Limit))
	case req.Offset > 0:
		sb.WriteString(" LIMIT " + b.dialect.noLimit)
	}
	if req.Offset > 0 {
		sb.WriteString(" OFFSET " + strconv.Itoa(req.Offset))
	}
	return sb.String(), args, nil
}

func (b *sqlBackend) updateSQL(table string, req *Request) (string, []interface{}, error) {
	keys := sortedKeys(req.Patch)
	sets := make([]string, 0, len(keys))
	args := make([]interface{}, 0, len(keys))
	for i, k := range keys {
		q, err := quoteIdent(k)
		if err != nil {
			return "", nil, err
		}
		sets = append(sets, q+" = "+b.dialect.placeholder(i+1))
		args = append(args, sqlValue(req.Patch[k]))
	}

	where, whereArgs, err := b.where(req.Conditions, len(args))
	if err != nil {
		return "", nil, err
	}
	args = append(args, whereArgs...)
	return "UPDATE " + table + " SET " + strings.Join(sets, ", ") + where + " RETURNING *", args, nil
}

// insert agrupa as linhas pelo conjunto de colunas e grava cada grupo com um
// único INSERT, tudo dentro de uma transação.
func (b *sqlBackend) insert(ctx context.Context, table string, rows []Record) (*Result, error) {
	type group struct {
		columns []string
		rows    []Record
	}
	var (
		groups []*group
		index  = map[string]*group{}
	)
	for _, row := range rows {
		cols := sortedKeys(row)
		sig := strings.Join(cols, "\x00")
		g, ok := index[sig]
		if !ok {
			g = &group{columns: cols}
			index[sig] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, row)
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classifySQLError("insert", err)
	}
	defer func() { _ = tx.Rollback() }()

	out := make([]Record, 0, len(rows))
	for _, g := range groups {
		quoted := make([]string, 0, len(g.columns))
		for _, c := range g.columns {
			q, err := quoteIdent(c)
			if err != nil {
				return nil, err
			}
			quoted = append(quoted, q)
		}

		var (
			tuples []string
			args   []interface{}
		)
		for _, row := range g.rows {
			ph := make([]string, 0, len(g.columns))
			for _, c := range g.columns {
				args = append(args, sqlValue(row[c]))
				ph = append(ph, b.dialect.placeholder(len(args)))
			}
			tuples = append(tuples, "("+strings.Join(ph, ", ")+")")
		}

		q := "INSERT INTO " + table + " (" + strings.Join(quoted, ", ") + ") VALUES " +
			strings.Join(tuples, ", ") + " RETURNING *"
		records, err := b.query(ctx, tx, q, args)
		if err != nil {
			return nil, err
		}
		out = append(out, records...)
	}

	if err := tx.Commit(); err != nil {
		return nil, classifySQLError("insert", err)
	}
	return &Result{Records: out}, nil
}

// where monta a cláusula WHERE; offset é o número de placeholders já usados.
func (b *sqlBackend) where(conds []Condition, offset int) (string, []interface{}, error) {
	if len(conds) == 0 {
		return "", nil, nil
	}

	n := offset
	next := func() string {
		n++
		return b.dialect.placeholder(n)
	}

	parts := make([]string, 0, len(conds))
	args := make([]interface{}, 0, len(conds))
	for _, c := range conds {
		col, err := quoteIdent(c.Field)
		if err != nil {
			return "", nil, err
		}

		switch c.Op {
		case Eq:
			if c.Value == nil {
				parts = append(parts, col+" IS NULL")
				continue
			}
			parts = append(parts, col+" = "+next())
			args = append(args, sqlValue(c.Value))
		case Gt:
			parts = append(parts, col+" > "+next())
			args = append(args, sqlValue(c.Value))
		case Gte:
			parts = append(parts, col+" >= "+next())
			args = append(args, sqlValue(c.Value))
		case Lt:
			parts = append(parts, col+" < "+next())
			args = append(args, sqlValue(c.Value))
		case Lte:
			parts = append(parts, col+" <= "+next())
			args = append(args, sqlValue(c.Value))
		case ILike:
			parts = append(parts, col+" "+b.dialect.likeOp+" "+next()+` ESCAPE '\'`)
			args = append(args, c.Value)
		case In:
			values, _ := c.Value.([]interface{})
			ph := make([]string, 0, len(values))
			for _, v := range values {
				ph = append(ph, next())
				args = append(args, sqlValue(v))
			}
			parts = append(parts, col+" IN ("+strings.Join(ph, ", ")+")")
		default:
			return "", nil, invalid("unknown operator %q", c.Op)
		}
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (b *sqlBackend) query(ctx context.Context, q queryer, query string, args []interface{}) ([]Record, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifySQLError("query", err)
	}
	defer rows.Close()

	// Mapeamento dinâmico de colunas para mapa
	columns, err := rows.Columns()
	if err != nil {
		return nil, classifySQLError("query", err)
	}
	values := make([]interface{}, len(columns))
	valuePtrs := make([]interface{}, len(columns))

	result := make([]Record, 0)
	for rows.Next() {
		for i := range columns {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, classifySQLError("scan", err)
		}

		entry := make(Record, len(columns))
		for i, col := range columns {
			if raw, ok := values[i].([]byte); ok {
				entry[col] = string(raw)
			} else {
				entry[col] = values[i]
			}
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, classifySQLError("query", err)
	}
	return result, nil
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// quoteIdent aceita apenas identificadores simples e os devolve entre aspas.
func quoteIdent(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", invalid("invalid identifier %q", name)
	}
	return `"` + name + `"`, nil
}

// sqlValue serializa mapas e listas como JSON, para colunas json/jsonb ou texto.
func sqlValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}, []interface{}, Record, []string:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(raw)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		return t.String()
	}
	return v
}

func sortedKeys(r Record) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// classifySQLError separa recusas do banco (StatusError) de falhas de conexão.
func classifySQLError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &StatusError{Code: string(pqErr.Code), Message: pqErr.Message, Err: err}
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return &StatusError{Code: strconv.Itoa(int(sqliteErr.Code)), Message: sqliteErr.Error(), Err: err}
	}
	return &TransportError{Op: op, Err: err}
}
