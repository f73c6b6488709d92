// Package calls keeps the in-memory rendezvous of in-flight call metadata.
package calls

import (
	"errors"
	"sync"

	"github.com/ringline/backend/internal/models"
)

// ErrNotFound is returned by Lookup when no call is registered under the id.
var ErrNotFound = errors.New("call data not found")

// Registry stores call metadata keyed by call id.
type Registry interface {
	Register(rec models.CallRecord)
	Lookup(callID string) (models.CallRecord, error)
}

// Memory is a process-local Registry (thread-safe). Entries are never expired;
// a registration with an existing call id replaces the previous entry.
type Memory struct {
	mu    sync.RWMutex
	calls map[string]models.CallRecord
}

// NewMemory creates an empty in-memory call registry.
func NewMemory() *Memory {
	return &Memory{calls: make(map[string]models.CallRecord)}
}

// Register stores rec under rec.CallID, overwriting any previous entry (last write wins).
func (m *Memory) Register(rec models.CallRecord) {
	m.mu.Lock()
	m.calls[rec.CallID] = rec
	m.mu.Unlock()
}

// Lookup returns the record registered for callID or ErrNotFound.
func (m *Memory) Lookup(callID string) (models.CallRecord, error) {
	m.mu.RLock()
	rec, ok := m.calls[callID]
	m.mu.RUnlock()
	if !ok {
		return models.CallRecord{}, ErrNotFound
	}
	return rec, nil
}

// Len returns the number of registered calls.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.calls)
}
