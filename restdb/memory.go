package restdb

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryBackend guarda as coleções em memória. Serve testes e desenvolvimento
// local; segue as mesmas regras dos backends remotos (ids e created_at
// atribuídos pelo store, cópias em toda leitura).
type MemoryBackend struct {
	mu          sync.RWMutex
	collections map[string][]Record
	// IDColumn é preenchida com um uuid quando o registro inserido não a traz.
	IDColumn string
	now      func() time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		collections: make(map[string][]Record),
		IDColumn:    "id",
		now:         time.Now,
	}
}

// Seed grava registros diretamente, sem atribuir id nem timestamps.
func (m *MemoryBackend) Seed(collection string, records ...Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.collections[collection] = append(m.collections[collection], r.Clone())
	}
}

// Snapshot devolve uma cópia da coleção inteira.
func (m *MemoryBackend) Snapshot(collection string) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneAll(m.collections[collection])
}

func (m *MemoryBackend) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryBackend) Close() error {
	return nil
}

func (m *MemoryBackend) Execute(ctx context.Context, req *Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Op: req.Operation.String(), Err: err}
	}

	switch req.Operation {
	case OpSelect:
		return m.selectRows(req), nil
	case OpCount:
		m.mu.RLock()
		defer m.mu.RUnlock()
		n := 0
		for _, r := range m.collections[req.Collection] {
			if matchAll(r, req.Conditions) {
				n++
			}
		}
		return &Result{Count: n}, nil
	case OpInsert:
		return m.insert(req), nil
	case OpUpdate:
		return m.update(req), nil
	case OpDelete:
		return m.delete(req), nil
	}
	return nil, invalid("unknown operation %s", req.Operation)
}

func (m *MemoryBackend) selectRows(req *Request) *Result {
	m.mu.RLock()
	matched := make([]Record, 0)
	for _, r := range m.collections[req.Collection] {
		if matchAll(r, req.Conditions) {
			matched = append(matched, r.Clone())
		}
	}
	m.mu.RUnlock()

	sortRecords(matched, req.Order)
	matched = window(matched, req.Limit, req.Offset)
	return &Result{Records: project(matched, req.Columns)}
}

func (m *MemoryBackend) insert(req *Request) *Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	out := make([]Record, 0, len(req.Rows))
	for _, row := range req.Rows {
		rec := row.Clone()
		if _, ok := rec[m.IDColumn]; !ok && m.IDColumn != "" {
			rec[m.IDColumn] = uuid.NewString()
		}
		if _, ok := rec["created_at"]; !ok {
			rec["created_at"] = now.Format(time.RFC3339Nano)
		}
		m.collections[req.Collection] = append(m.collections[req.Collection], rec)
		out = append(out, rec.Clone())
	}
	return &Result{Records: out}
}

func (m *MemoryBackend) update(req *Request) *Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Record, 0)
	for _, rec := range m.collections[req.Collection] {
		if !matchAll(rec, req.Conditions) {
			continue
		}
		for k, v := range req.Patch {
			rec[k] = v
		}
		out = append(out, rec.Clone())
	}
	return &Result{Records: out}
}

func (m *MemoryBackend) delete(req *Request) *Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := make([]Record, 0, len(m.collections[req.Collection]))
	removed := make([]Record, 0)
	for _, rec := range m.collections[req.Collection] {
		if matchAll(rec, req.Conditions) {
			removed = append(removed, rec)
			continue
		}
		kept = append(kept, rec)
	}
	m.collections[req.Collection] = kept
	return &Result{Records: removed}
}

func cloneAll(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		out = append(out, r.Clone())
	}
	return out
}

func project(records []Record, columns []string) []Record {
	if len(columns) == 0 || (len(columns) == 1 && columns[0] == "*") {
		return records
	}
	out := make([]Record, 0, len(records))
	for _, r := range records {
		p := make(Record, len(columns))
		for _, col := range columns {
			if v, ok := r[col]; ok {
				p[col] = v
			}
		}
		out = append(out, p)
	}
	return out
}
