// Package filecheckpoint stores checkpoint records as JSON files, one file per
// run, under a directory of the workspace. Writes are atomic (temp file, sync,
// rename) so a crash never leaves a truncated record behind.
package filecheckpoint

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/specialistvlad/pipegrid/internal/checkpoint"
)

const fileExt = ".json"

// Store is a checkpoint.Store backed by a directory. A mutex serialises
// read-modify-write cycles within the process; concurrent processes sharing
// a directory are not coordinated.
type Store struct {
	dir string
	mu  sync.Mutex
}

// New creates the directory if needed and returns a store rooted at it.
func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("filecheckpoint: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filecheckpoint: create %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory holding the record files.
func (s *Store) Dir() string { return s.dir }

// Run ids may contain path separators or spaces; file names are the
// base64url encoding of the id.
func (s *Store) path(id string) string {
	return filepath.Join(s.dir, base64.RawURLEncoding.EncodeToString([]byte(id))+fileExt)
}

func (s *Store) read(path string) (*checkpoint.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, checkpoint.ErrNotFound
		}
		return nil, err
	}
	var rec checkpoint.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &rec, nil
}

func (s *Store) write(rec *checkpoint.Record) error {
	if rec.CompletedTasks == nil {
		rec.CompletedTasks = []string{}
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", rec.ID, err)
	}
	return writeFileAtomic(s.path(rec.ID), append(data, '\n'))
}

// FindLatest scans every record file and returns the newest for the name.
func (s *Store) FindLatest(ctx context.Context, pipelineName string) (*checkpoint.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("filecheckpoint: list %s: %w", s.dir, err)
	}
	var matching []*checkpoint.Record
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := s.read(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("filecheckpoint: %w", err)
		}
		if rec.PipelineName == pipelineName {
			matching = append(matching, rec)
		}
	}
	latest := checkpoint.Latest(matching)
	if latest == nil {
		return nil, checkpoint.ErrNotFound
	}
	return latest, nil
}

// CreateIfAbsent writes rec unless a file for its id exists.
func (s *Store) CreateIfAbsent(ctx context.Context, rec *checkpoint.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path(rec.ID)); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("filecheckpoint: stat %s: %w", rec.ID, err)
	}
	if err := s.write(rec.Clone()); err != nil {
		return false, fmt.Errorf("filecheckpoint: create %s: %w", rec.ID, err)
	}
	return true, nil
}

func (s *Store) update(id string, fn func(*checkpoint.Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read(s.path(id))
	if err != nil {
		return fmt.Errorf("filecheckpoint: load %s: %w", id, err)
	}
	fn(rec)
	if err := s.write(rec); err != nil {
		return fmt.Errorf("filecheckpoint: update %s: %w", id, err)
	}
	return nil
}

// MarkCompleted sets the completed flag of the record.
func (s *Store) MarkCompleted(ctx context.Context, id string) error {
	return s.update(id, func(r *checkpoint.Record) { r.IsCompleted = true })
}

// AppendCompletedTask appends hash to the record's completed tasks.
func (s *Store) AppendCompletedTask(ctx context.Context, id, hash string) error {
	return s.update(id, func(r *checkpoint.Record) {
		r.CompletedTasks = append(r.CompletedTasks, hash)
	})
}

// IsTaskCompleted reports whether hash was recorded for the run.
func (s *Store) IsTaskCompleted(ctx context.Context, id, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read(s.path(id))
	if errors.Is(err, checkpoint.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("filecheckpoint: load %s: %w", id, err)
	}
	return rec.HasTask(hash), nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}
