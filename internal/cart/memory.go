package cart

import (
	"context"
	"sync"

	"github.com/fjod/go_shop/internal/domain"
)

// MemoryStore is a process-local Store used when no Redis is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string]domain.CartSnapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string]domain.CartSnapshot)}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (domain.CartSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, exists := s.carts[userID]
	if !exists {
		return nil, ErrCartNotFound
	}
	copied := make(domain.CartSnapshot, len(snapshot))
	for id, qty := range snapshot {
		copied[id] = qty
	}
	return copied, nil
}

func (s *MemoryStore) Set(_ context.Context, userID string, snapshot domain.CartSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make(domain.CartSnapshot, len(snapshot))
	for id, qty := range snapshot {
		copied[id] = qty
	}
	s.carts[userID] = copied
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, userID)
	return nil
}
