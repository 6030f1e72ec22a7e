// Package sessionstore persists the backend session cookie between processes.
// A record holds the store id and cookies; never the password.
package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yourorg/stockcast/internal/infrastructure/redis"
)

// ErrNotFound is returned by Load when nothing has been saved
var ErrNotFound = errors.New("no saved session")

// Cookie is the persisted part of an http.Cookie
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Record is one saved session
type Record struct {
	StoreID string    `json:"store_id"`
	Cookies []Cookie  `json:"cookies"`
	SavedAt time.Time `json:"saved_at"`
}

// NewRecord captures cookies from a jar
func NewRecord(storeID string, cookies []*http.Cookie) *Record {
	rec := &Record{StoreID: storeID, SavedAt: time.Now().UTC()}
	for _, c := range cookies {
		rec.Cookies = append(rec.Cookies, Cookie{Name: c.Name, Value: c.Value})
	}
	return rec
}

// HTTPCookies converts the record back for a cookie jar
func (r *Record) HTTPCookies() []*http.Cookie {
	out := make([]*http.Cookie, 0, len(r.Cookies))
	for _, c := range r.Cookies {
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return out
}

// Store persists session records
type Store interface {
	Load(ctx context.Context) (*Record, error)
	Save(ctx context.Context, rec *Record) error
	Clear(ctx context.Context) error
}

// FileStore keeps the record in a 0600 JSON file
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(_ context.Context) (*Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	return decode(data)
}

func (s *FileStore) Save(_ context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

func (s *FileStore) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// KV is the subset of the redis client used by RedisStore
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisStore shares one session between several processes (e.g. agents behind a load balancer)
type RedisStore struct {
	kv         KV
	key        string
	markPrefix string
	ttl        time.Duration
}

// NewRedisStore stores the record under stockcast:session:<name>
func NewRedisStore(kv KV, name string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		kv:         kv,
		key:        "stockcast:session:" + name,
		markPrefix: "stockcast:mark:" + name + ":",
		ttl:        ttl,
	}
}

func (s *RedisStore) Load(ctx context.Context) (*Record, error) {
	data, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, redis.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return decode(data)
}

func (s *RedisStore) Save(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, data, s.ttl); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// MemoryStore keeps the record in process; used when persistence is disabled
type MemoryStore struct {
	mu    sync.Mutex
	rec   *Record
	marks map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return nil, ErrNotFound
	}
	cp := *s.rec
	cp.Cookies = append([]Cookie(nil), s.rec.Cookies...)
	return &cp, nil
}

func (s *MemoryStore) Save(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	cp.Cookies = append([]Cookie(nil), rec.Cookies...)
	s.rec = &cp
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = nil
	return nil
}

func decode(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("corrupt session record: %w", err)
	}
	return &rec, nil
}
