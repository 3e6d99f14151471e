package engine

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

// supervisor tracks one goroutine per run id.
type supervisor struct {
	logger *slog.Logger

	wg     sync.WaitGroup
	mu     sync.Mutex
	active map[string]struct{}
}

func newSupervisor(logger *slog.Logger) *supervisor {
	return &supervisor{logger: logger, active: map[string]struct{}{}}
}

// goRun starts fn for id unless a goroutine for id is already running.
// A returned error abandons the run; a panic is handed to onPanic.
func (s *supervisor) goRun(id string, logger *slog.Logger, fn func() error, onPanic func(p any)) bool {
	s.mu.Lock()
	if _, busy := s.active[id]; busy {
		s.mu.Unlock()
		return false
	}
	s.active[id] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.release(id)
		defer func() {
			if p := recover(); p != nil {
				logger.Error("run panicked", "panic", p, "stack", string(debug.Stack()))
				onPanic(p)
			}
		}()
		if err := fn(); err != nil {
			logger.Error("run abandoned", "error", err)
		}
	}()
	return true
}

func (s *supervisor) release(id string) {
	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()
}

func (s *supervisor) running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

func (s *supervisor) wait() {
	s.wg.Wait()
}
