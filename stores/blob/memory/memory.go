package memory

import (
	"context"
	"net/http"
	"sync"

	"github.com/bsv-blockchain/marabu/errors"
)

type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func New() *Memory {
	return &Memory{
		blobs: make(map[string][]byte),
	}
}

func (m *Memory) Health(_ context.Context, _ bool) (int, string, error) {
	return http.StatusOK, "Memory Store", nil
}

func (m *Memory) Close(_ context.Context) error {
	return nil
}

func (m *Memory) Set(_ context.Context, key []byte, value []byte) error {
	// the caller may reuse value
	b := make([]byte, len(value))
	copy(b, value)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.blobs[string(key)] = b

	return nil
}

func (m *Memory) Get(_ context.Context, key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blobs[string(key)]
	if !ok {
		return nil, errors.NewNotFoundError("blob %s not found", key)
	}

	return b, nil
}

func (m *Memory) Exists(_ context.Context, key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.blobs[string(key)]

	return ok, nil
}

func (m *Memory) Del(_ context.Context, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.blobs, string(key))

	return nil
}

// Len returns the number of stored blobs.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.blobs)
}
