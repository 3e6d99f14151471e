package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	runerrors "github.com/stevehiehn/orquestator/internal/errors"
	"github.com/stevehiehn/orquestator/internal/state"
)

const (
	recordExt = ".json"
	tmpExt    = ".json.tmp"
)

// FileStore keeps one pretty-printed JSON file per run in Dir.
type FileStore struct {
	Dir   string
	locks *Locker
}

// NewFileStore creates the directory if needed and recovers any
// interrupted writes left by a previous process.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, runerrors.NewIOError("creating runs dir", err)
	}
	if err := recoverInterruptedWrites(dir); err != nil {
		return nil, runerrors.NewIOError("recovering interrupted writes", err)
	}
	return &FileStore{Dir: dir, locks: NewLocker()}, nil
}

// recoverInterruptedWrites promotes a leftover temp file when its record is
// missing and discards it otherwise.
func recoverInterruptedWrites(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), tmpExt) {
			continue
		}
		tmpPath := filepath.Join(dir, entry.Name())
		mainPath := strings.TrimSuffix(tmpPath, ".tmp")
		if _, err := os.Stat(mainPath); err == nil {
			os.Remove(tmpPath)
			continue
		}
		if err := os.Rename(tmpPath, mainPath); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.Dir, id+recordExt)
}

// Save writes the record to <id>.json.tmp and renames it into place.
func (s *FileStore) Save(ctx context.Context, run *state.Run) error {
	if !validID(run.ID) {
		return runerrors.NewValidationError(fmt.Sprintf("invalid run id %q", run.ID), "")
	}
	if err := ctx.Err(); err != nil {
		return runerrors.NewIOError("saving run "+run.ID, err)
	}
	unlock := s.locks.Lock(run.ID)
	defer unlock()

	run.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return runerrors.NewIOError("encoding run "+run.ID, err)
	}
	path := s.path(run.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return runerrors.NewIOError("writing run "+run.ID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return runerrors.NewIOError("committing run "+run.ID, err)
	}
	return nil
}

// Load reads the record for id.
func (s *FileStore) Load(ctx context.Context, id string) (*state.Run, error) {
	if !validID(id) {
		return nil, runerrors.NewNotFound("run", id)
	}
	unlock := s.locks.Lock(id)
	defer unlock()
	return s.read(s.path(id), id)
}

func (s *FileStore) read(path, id string) (*state.Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, runerrors.NewNotFound("run", id)
		}
		return nil, runerrors.NewIOError("reading run "+id, err)
	}
	var run state.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, runerrors.NewIOError("decoding run "+id, err)
	}
	return &run, nil
}

// List reads every record in Dir.
func (s *FileStore) List(ctx context.Context, filter Filter) ([]*state.Run, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, runerrors.NewIOError("listing runs", err)
	}
	var runs []*state.Run
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, recordExt) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		run, err := s.Load(ctx, strings.TrimSuffix(name, recordExt))
		if err != nil {
			if runerrors.HasType(err, runerrors.NotFound) {
				continue
			}
			return nil, err
		}
		if filter.Match(run) {
			runs = append(runs, run)
		}
	}
	sortByID(runs)
	return runs, nil
}

func validID(id string) bool {
	if id == "" || strings.Contains(id, "..") {
		return false
	}
	return !strings.ContainsAny(id, `/\`)
}
