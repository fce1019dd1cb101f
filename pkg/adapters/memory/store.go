package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/aretw0/tickler/pkg/domain"
)

// Store implements ports.RunStore in memory.
// Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	data     map[string]*domain.RunRecord
	order    []string
	capacity int
}

// Option configures the Store.
type Option func(*Store)

// WithCapacity bounds the number of retained runs. The oldest run is evicted first.
// Zero means unbounded.
func WithCapacity(n int) Option {
	return func(s *Store) {
		s.capacity = n
	}
}

// NewStore creates a new in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		data: make(map[string]*domain.RunRecord),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save persists the record in memory.
func (s *Store) Save(ctx context.Context, record *domain.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[record.RunID]; !exists {
		s.order = append(s.order, record.RunID)
	}
	s.data[record.RunID] = clone(record)

	if s.capacity > 0 {
		for len(s.order) > s.capacity {
			oldest := s.order[0]
			s.order = s.order[1:]
			delete(s.data, oldest)
		}
	}
	return nil
}

// Load retrieves the record from memory.
func (s *Store) Load(ctx context.Context, runID string) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[runID]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	return clone(rec), nil
}

// Delete removes the record.
func (s *Store) Delete(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, runID)
	s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == runID })
	return nil
}

// List returns stored run IDs, oldest first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order), nil
}

// clone copies the record so callers can't mutate stored state through pointers.
func clone(rec *domain.RunRecord) *domain.RunRecord {
	c := *rec
	c.Outcomes = make([]domain.ItemOutcome, len(rec.Outcomes))
	for i, o := range rec.Outcomes {
		o.Item.Parameters = maps.Clone(o.Item.Parameters)
		c.Outcomes[i] = o
	}
	return &c
}
