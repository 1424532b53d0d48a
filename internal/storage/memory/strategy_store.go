package memory

import (
	"context"
	"sort"
	"sync"

	"candle-learning-lab/internal/domain"
	"candle-learning-lab/internal/storage"
)

// StrategyStore is an in-memory implementation of storage.StrategyStore.
type StrategyStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Strategy // keyed by name
}

// NewStrategyStore creates a new in-memory strategy store.
func NewStrategyStore() *StrategyStore {
	return &StrategyStore{
		data: make(map[string]*domain.Strategy),
	}
}

// GetByName retrieves a strategy by its pattern key. Returns ErrNotFound if not exists.
func (s *StrategyStore) GetByName(_ context.Context, name string) (*domain.Strategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, exists := s.data[name]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyStrategy(st), nil
}

// Upsert inserts or replaces the strategy identified by Name.
func (s *StrategyStore) Upsert(_ context.Context, st *domain.Strategy) error {
	if st == nil || st.Name == "" || st.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// the surrogate id is immutable once assigned
	stCopy := copyStrategy(st)
	if existing, ok := s.data[st.Name]; ok {
		stCopy.ID = existing.ID
	}
	s.data[st.Name] = stCopy
	return nil
}

// TopByWinRate retrieves the best strategies with at least minSimulations samples.
func (s *StrategyStore) TopByWinRate(_ context.Context, minSimulations int64, limit int) ([]*domain.Strategy, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Strategy
	for _, st := range s.data {
		if st.TotalSimulations >= minSimulations {
			result = append(result, copyStrategy(st))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].WinRate != result[j].WinRate {
			return result[i].WinRate > result[j].WinRate
		}
		return result[i].Name < result[j].Name
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetAll retrieves all strategies ordered by name.
func (s *StrategyStore) GetAll(_ context.Context) ([]*domain.Strategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Strategy, 0, len(s.data))
	for _, st := range s.data {
		result = append(result, copyStrategy(st))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// Count returns the number of strategies.
func (s *StrategyStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.data)), nil
}

func copyStrategy(st *domain.Strategy) *domain.Strategy {
	c := *st
	if st.LastSeenAt != nil {
		seen := *st.LastSeenAt
		c.LastSeenAt = &seen
	}
	return &c
}

var _ storage.StrategyStore = (*StrategyStore)(nil)
