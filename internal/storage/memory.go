package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/your-org/lostfound/internal/models"
)

// MemoryStore keeps reports in insertion order behind a RWMutex.
type MemoryStore struct {
	mu      sync.RWMutex
	reports []models.Report
	index   map[uuid.UUID]int
}

func NewMemoryStore(seed ...models.Report) *MemoryStore {
	s := &MemoryStore{index: make(map[uuid.UUID]int)}
	for i := range seed {
		r := seed[i]
		_, _ = s.Upsert(context.Background(), &r)
	}
	return s
}

// List returns a snapshot; callers may keep it across later writes.
func (s *MemoryStore) List(_ context.Context) ([]models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Report, len(s.reports))
	for i := range s.reports {
		out[i] = s.reports[i].Clone()
	}
	return out, nil
}

func (s *MemoryStore) FindByID(_ context.Context, id uuid.UUID) (*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return nil, nil
	}
	r := s.reports[i].Clone()
	return &r, nil
}

func (s *MemoryStore) Upsert(_ context.Context, r *models.Report) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[r.ID]; ok {
		s.reports[i] = r.Clone()
		return false, nil
	}
	s.index[r.ID] = len(s.reports)
	s.reports = append(s.reports, r.Clone())
	return true, nil
}

func (s *MemoryStore) Remove(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("report %s: %w", id, ErrNotFound)
	}
	s.reports = append(s.reports[:i], s.reports[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.reports); j++ {
		s.index[s.reports[j].ID] = j
	}
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() {}
