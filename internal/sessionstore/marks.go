package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yourorg/stockcast/internal/infrastructure/redis"
)

// Marks remember when a named action last succeeded. They live next to the session so
// every process sharing the session sees them. Logging out does not clear them.
type Marks interface {
	// LastMark returns the zero time when name was never marked
	LastMark(ctx context.Context, name string) (time.Time, error)
	Mark(ctx context.Context, name string, at time.Time) error
}

func (s *FileStore) marksPath() string {
	return s.path + ".marks"
}

func (s *FileStore) readMarks() (map[string]time.Time, error) {
	marks := map[string]time.Time{}
	data, err := os.ReadFile(s.marksPath())
	if errors.Is(err, os.ErrNotExist) {
		return marks, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read marks file: %w", err)
	}
	if err := json.Unmarshal(data, &marks); err != nil {
		return nil, fmt.Errorf("corrupt marks file: %w", err)
	}
	return marks, nil
}

func (s *FileStore) LastMark(_ context.Context, name string) (time.Time, error) {
	marks, err := s.readMarks()
	if err != nil {
		return time.Time{}, err
	}
	return marks[name], nil
}

func (s *FileStore) Mark(_ context.Context, name string, at time.Time) error {
	marks, err := s.readMarks()
	if err != nil {
		// a corrupt file is rewritten from scratch
		marks = map[string]time.Time{}
	}
	marks[name] = at.UTC()

	data, err := json.Marshal(marks)
	if err != nil {
		return fmt.Errorf("failed to encode marks: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session dir: %w", err)
	}
	tmp := s.marksPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write marks file: %w", err)
	}
	if err := os.Rename(tmp, s.marksPath()); err != nil {
		return fmt.Errorf("failed to replace marks file: %w", err)
	}
	return nil
}

// redis keys: stockcast:mark:<session name>:<mark name>
func (s *RedisStore) markKey(name string) string {
	return s.markPrefix + name
}

func (s *RedisStore) LastMark(ctx context.Context, name string) (time.Time, error) {
	data, err := s.kv.Get(ctx, s.markKey(name))
	if errors.Is(err, redis.ErrKeyNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load mark %s: %w", name, err)
	}
	var at time.Time
	if err := at.UnmarshalText(data); err != nil {
		return time.Time{}, fmt.Errorf("corrupt mark %s: %w", name, err)
	}
	return at, nil
}

func (s *RedisStore) Mark(ctx context.Context, name string, at time.Time) error {
	data, err := at.UTC().MarshalText()
	if err != nil {
		return fmt.Errorf("failed to encode mark: %w", err)
	}
	if err := s.kv.Set(ctx, s.markKey(name), data, s.ttl); err != nil {
		return fmt.Errorf("failed to save mark %s: %w", name, err)
	}
	return nil
}

func (s *MemoryStore) LastMark(_ context.Context, name string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marks[name], nil
}

func (s *MemoryStore) Mark(_ context.Context, name string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.marks == nil {
		s.marks = map[string]time.Time{}
	}
	s.marks[name] = at
	return nil
}
