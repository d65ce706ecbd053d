package costs

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu   sync.RWMutex
	data map[string]float64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]float64)}
}

func (s *memoryStore) All(ctx context.Context) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64, len(s.data))
	for tier, cost := range s.data {
		out[tier] = cost
	}
	return out, nil
}

func (s *memoryStore) Set(ctx context.Context, licenseType string, monthlyCost float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[licenseType] = monthlyCost
	return nil
}
