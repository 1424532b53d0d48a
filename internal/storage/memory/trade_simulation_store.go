package memory

import (
	"context"
	"sort"
	"sync"

	"candle-learning-lab/internal/domain"
	"candle-learning-lab/internal/storage"
)

// TradeSimulationStore is an in-memory implementation of storage.TradeSimulationStore.
type TradeSimulationStore struct {
	mu    sync.RWMutex
	data  map[string]*domain.TradeSimulation // keyed by id
	order []string                           // insertion order, breaks created_at ties
}

// NewTradeSimulationStore creates a new in-memory trade simulation store.
func NewTradeSimulationStore() *TradeSimulationStore {
	return &TradeSimulationStore{
		data: make(map[string]*domain.TradeSimulation),
	}
}

// Insert adds a new simulation. Returns ErrDuplicateKey if id exists.
func (s *TradeSimulationStore) Insert(_ context.Context, t *domain.TradeSimulation) error {
	if t == nil || t.ID == "" || t.StrategyID == "" || !t.Result.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.ID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *t
	s.data[t.ID] = &copy
	s.order = append(s.order, t.ID)
	return nil
}

// Recent retrieves up to limit simulations ordered by created_at DESC.
func (s *TradeSimulationStore) Recent(_ context.Context, limit int) ([]*domain.TradeSimulation, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// Walk newest-first so equal timestamps keep reverse insertion order.
	result := make([]*domain.TradeSimulation, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		copy := *s.data[s.order[i]]
		result = append(result, &copy)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Count returns the number of simulations.
func (s *TradeSimulationStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.data)), nil
}

var _ storage.TradeSimulationStore = (*TradeSimulationStore)(nil)
