package database

import (
	"context"
	"sync"
)

// MemoryStore keeps tokens for the life of the process only.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]string)}
}

func (ms *MemoryStore) LoadToken(_ context.Context, appName string) (string, error) {
	if appName == "" {
		return "", ErrAppNameEmpty
	}
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.tokens[appName], nil
}

func (ms *MemoryStore) SaveToken(_ context.Context, appName, token string) error {
	if appName == "" {
		return ErrAppNameEmpty
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.tokens[appName] = token
	return nil
}
