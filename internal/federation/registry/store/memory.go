package store

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// Memory keeps the registry state in process memory. Used in tests and when no
// persistent backend is configured.
type Memory struct {
	mu      sync.Mutex
	entries map[string][]string
	saves   int
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]string)}
}

func (m *Memory) Load(_ context.Context) (map[string][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneEntries(m.entries), nil
}

func (m *Memory) Save(_ context.Context, entries map[string][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = cloneEntries(entries)
	m.saves++
	return nil
}

// Saves reports how many times Save has been called.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func cloneEntries(entries map[string][]string) map[string][]string {
	out := make(map[string][]string, len(entries))
	for k, v := range maps.All(entries) {
		out[k] = slices.Clone(v)
	}
	return out
}
