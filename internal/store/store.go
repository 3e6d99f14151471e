// Package store persists run records keyed by run id.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/stevehiehn/orquestator/internal/state"
)

// Store is durable key-value storage of runs. Save and Load on the same id
// never interleave; different ids proceed independently.
type Store interface {
	// Save overwrites the record for run.ID.
	Save(ctx context.Context, run *state.Run) error
	// Load returns the most recently saved record, or a NOT_FOUND error.
	Load(ctx context.Context, id string) (*state.Run, error)
	// List returns stored records matching filter, sorted by id.
	List(ctx context.Context, filter Filter) ([]*state.Run, error)
}

// Filter narrows List results. Zero value matches everything.
type Filter struct {
	Status []state.Status
}

// Match reports whether run passes the filter.
func (f Filter) Match(run *state.Run) bool {
	if len(f.Status) == 0 {
		return true
	}
	for _, s := range f.Status {
		if run.Status == s {
			return true
		}
	}
	return false
}

// Locker hands out one mutex per id. Mutexes are created on first use and
// kept for the life of the process, so the table grows with the number of
// distinct ids seen.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocker creates an empty lock table.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*sync.Mutex)}
}

// For returns the mutex guarding id.
func (l *Locker) For(id string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}

// Lock acquires the mutex for id and returns its release function.
func (l *Locker) Lock(id string) func() {
	m := l.For(id)
	m.Lock()
	return m.Unlock
}

// Len returns the number of ids with a lock.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func sortByID(runs []*state.Run) {
	sort.Slice(runs, func(i, j int) bool { return runs[i].ID < runs[j].ID })
}
