// Package params holds key/value settings shared with the rest of the device.
// Values are strings; booleans are stored as "1"/"0" and integers in decimal.
// Missing keys read as the zero value with no error.
package params

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Store is the settings interface the daemon and its jobs consume
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	GetBool(ctx context.Context, key string) (bool, error)
	GetInt(ctx context.Context, key string) (int, error)
	Put(ctx context.Context, key, value string) error
	PutBool(ctx context.Context, key string, value bool) error
	// PutNonBlocking queues the write and returns immediately; failures are logged
	PutNonBlocking(key, value string)
	Remove(ctx context.Context, key string) error
}

func formatBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func parseBool(s string) bool {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseInt(key, s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("param %s: %w", key, err)
	}
	return v, nil
}

// MemoryStore is the ephemeral store: process-local and cleared on restart.
// Used for one-shot requests and cross-worker flags.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) GetBool(ctx context.Context, key string) (bool, error) {
	v, _, _ := m.Get(ctx, key)
	return parseBool(v), nil
}

func (m *MemoryStore) GetInt(ctx context.Context, key string) (int, error) {
	v, _, _ := m.Get(ctx, key)
	return parseInt(key, v)
}

func (m *MemoryStore) Put(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStore) PutBool(ctx context.Context, key string, value bool) error {
	return m.Put(ctx, key, formatBool(value))
}

func (m *MemoryStore) PutNonBlocking(key, value string) {
	_ = m.Put(context.Background(), key, value)
}

func (m *MemoryStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
