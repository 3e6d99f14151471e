package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	runerrors "github.com/stevehiehn/orquestator/internal/errors"
	"github.com/stevehiehn/orquestator/internal/state"
)

// MemoryStore keeps encoded records in process memory. Loads decode a fresh
// copy so callers never share a record.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
	locks   *Locker
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte), locks: NewLocker()}
}

func (s *MemoryStore) Save(ctx context.Context, run *state.Run) error {
	unlock := s.locks.Lock(run.ID)
	defer unlock()

	run.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(run)
	if err != nil {
		return runerrors.NewIOError("encoding run "+run.ID, err)
	}
	s.mu.Lock()
	s.records[run.ID] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, id string) (*state.Run, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	s.mu.RLock()
	data, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, runerrors.NewNotFound("run", id)
	}
	return decodeRun(id, data)
}

func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]*state.Run, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	var runs []*state.Run
	for _, id := range ids {
		run, err := s.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if filter.Match(run) {
			runs = append(runs, run)
		}
	}
	sortByID(runs)
	return runs, nil
}
