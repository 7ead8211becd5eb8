package filestore

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"acp_dues/internal/apperr"
)

// Memory is an in-process file store. FailStore and FailDelete let tests
// force the corresponding operation to fail.
type Memory struct {
	mu    sync.Mutex
	files map[string][]byte

	FailStore  bool
	FailDelete bool
}

func NewMemory() *Memory {
	return &Memory{files: map[string][]byte{}}
}

var errInjected = errors.New("injected failure")

func (m *Memory) Store(_ context.Context, data []byte, suggestedName string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailStore {
		return "", apperr.Storage(errInjected, "store %s", suggestedName)
	}
	handle := receiptsPrefix + uuid.NewString() + "-" + safeName(suggestedName)
	m.files[handle] = append([]byte(nil), data...)
	return handle, nil
}

func (m *Memory) Read(_ context.Context, handle string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[handle]
	if !ok {
		return nil, apperr.NotFound("file %s", handle)
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) Delete(_ context.Context, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDelete {
		return apperr.Storage(errInjected, "delete %s", handle)
	}
	delete(m.files, handle)
	return nil
}

// Len reports how many files are held.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

func (m *Memory) Has(handle string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[handle]
	return ok
}
