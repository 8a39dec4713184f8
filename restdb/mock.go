package restdb

import (
	"context"
	"sync"
)

// MockBackend é um Backend para testes. Os campos de função definem o
// comportamento; sem eles, toda operação devolve um Result vazio.
// Os requests recebidos ficam em Requests, na ordem de chegada.
type MockBackend struct {
	ExecuteFn func(ctx context.Context, req *Request) (*Result, error)
	PingFn    func(ctx context.Context) error
	CloseFn   func() error

	mu       sync.Mutex
	requests []Request
}

func (m *MockBackend) Execute(ctx context.Context, req *Request) (*Result, error) {
	m.mu.Lock()
	m.requests = append(m.requests, *req)
	m.mu.Unlock()

	if m.ExecuteFn != nil {
		return m.ExecuteFn(ctx, req)
	}
	return &Result{Records: []Record{}}, nil
}

func (m *MockBackend) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn(ctx)
	}
	return nil
}

func (m *MockBackend) Close() error {
	if m.CloseFn != nil {
		return m.CloseFn()
	}
	return nil
}

// Requests devolve uma cópia dos requests recebidos.
func (m *MockBackend) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// LastRequest devolve o último request recebido.
func (m *MockBackend) LastRequest() (Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return Request{}, false
	}
	return m.requests[len(m.requests)-1], true
}
