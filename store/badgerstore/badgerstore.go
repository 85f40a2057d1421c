// Package badgerstore is a durable store.Store backed by BadgerDB.
//
// Writes go through to Badger before the in-memory view is updated, so a
// process restart reloads the last committed entries. Values are encoded
// as JSON; numbers therefore read back as float64 after a reload, and
// ±Inf and NaN are stored as tagged objects so they survive it.
package badgerstore

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/kbukum/nodeflow/errors"
	"github.com/kbukum/nodeflow/logger"
	"github.com/kbukum/nodeflow/observability"
	"github.com/kbukum/nodeflow/resilience"
	"github.com/kbukum/nodeflow/store"
)

var keyPrefix = []byte("nodeflow/store/")

// Config holds configuration for the Badger-backed store.
type Config struct {
	// Path is the directory for Badger files. Ignored when InMemory is set.
	Path     string `yaml:"path" mapstructure:"path"`
	InMemory bool   `yaml:"in_memory" mapstructure:"in_memory"`
	// SyncWrites fsyncs every commit.
	SyncWrites bool `yaml:"sync_writes" mapstructure:"sync_writes"`
	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval     time.Duration `yaml:"gc_interval" mapstructure:"gc_interval"`
	GCDiscardRatio float64       `yaml:"gc_discard_ratio" mapstructure:"gc_discard_ratio"`
	// OpenAttempts bounds the tries while another process holds the
	// directory lock, as when a previous run is still closing.
	OpenAttempts int `yaml:"open_attempts" mapstructure:"open_attempts"`
}

// DefaultConfig returns production defaults for a store at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
		OpenAttempts:   5,
	}
}

// InMemoryConfig returns a configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// Store implements store.Store on top of Badger.
type Store struct {
	db  *badger.DB
	log *logger.Logger

	mu    sync.RWMutex
	cache map[string]any

	stopGC chan struct{}
	gcDone chan struct{}
}

var _ store.Store = (*Store)(nil)

// Open opens the database and loads every entry into memory.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.InvalidInput("store.path", "path is required for a persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, errors.Storage("create directory", err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	log := logger.Get("store")
	opts = opts.WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{log: log})

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = max(cfg.OpenAttempts, 1)
	retry.RetryIf = isLockError
	retry.OnRetry = func(attempt int, err error, wait time.Duration) {
		log.Warn("badger directory locked, retrying", logger.Fields("path", cfg.Path, "attempt", attempt, "wait", wait.String()))
	}
	db, err := resilience.Retry(context.Background(), retry, func() (*badger.DB, error) {
		return badger.Open(opts)
	})
	if err != nil {
		return nil, errors.Storage("open", err)
	}

	s := &Store{db: db, log: log, cache: make(map[string]any)}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		ratio := cfg.GCDiscardRatio
		if ratio <= 0 || ratio >= 1 {
			ratio = 0.5
		}
		s.stopGC = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval, ratio)
	}

	log.Info("badger store opened", logger.Fields("path", cfg.Path, "in_memory", cfg.InMemory, "entries", len(s.cache)))
	return s, nil
}

func isLockError(err error) bool {
	return strings.Contains(err.Error(), "directory lock")
}

func (s *Store) load() error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key()[len(keyPrefix):])
			err := item.Value(func(val []byte) error {
				v, err := decode(val)
				if err != nil {
					return fmt.Errorf("decode %q: %w", key, err)
				}
				s.cache[key] = v
				return nil
			})
			if err != nil {
				return errors.Storage("load", err)
			}
		}
		return nil
	})
}

func dbKey(key string) []byte {
	return append(append([]byte{}, keyPrefix...), key...)
}

// Get retrieves a value by key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.cache[key]
	return v, ok
}

// Set encodes value and commits it before updating the in-memory view.
func (s *Store) Set(key string, value any) error {
	raw, err := encode(value)
	if err != nil {
		return errors.Storage("encode "+key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(dbKey(key), raw)
	}); err != nil {
		return errors.Storage("set "+key, err)
	}
	s.cache[key] = value
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(dbKey(key))
	}); err != nil {
		return errors.Storage("delete "+key, err)
	}
	delete(s.cache, key)
	return nil
}

// Clear removes every entry.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.DropPrefix(keyPrefix); err != nil {
		return errors.Storage("clear", err)
	}
	s.cache = make(map[string]any)
	return nil
}

// Keys returns the sorted keys.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.cache))
	for k := range s.cache {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a shallow copy of the contents.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.cache))
	for k, v := range s.cache {
		out[k] = v
	}
	return out
}

// CheckHealth reports whether the database is still open.
func (s *Store) CheckHealth(_ context.Context) observability.Health {
	h := observability.Health{Name: "store", Status: observability.HealthStatusUp,
		Details: map[string]string{"backend": "badger"}}
	if s.db.IsClosed() {
		h.Status = observability.HealthStatusDown
		h.Message = "database closed"
	}
	return h
}

// Close stops background GC and closes the database.
func (s *Store) Close() error {
	if s.stopGC != nil {
		close(s.stopGC)
		<-s.gcDone
		s.stopGC = nil
	}
	if err := s.db.Close(); err != nil {
		return errors.Storage("close", err)
	}
	return nil
}

func (s *Store) runGC(interval time.Duration, ratio float64) {
	defer close(s.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			// ErrNoRewrite means nothing was worth collecting.
			if err := s.db.RunValueLogGC(ratio); err != nil && !stderrors.Is(err, badger.ErrNoRewrite) {
				s.log.Warn("badger value log GC failed", logger.Fields(logger.FieldError, err.Error()))
			}
		}
	}
}

// badgerLogger adapts the zerolog wrapper to Badger's Logger interface.
type badgerLogger struct {
	log *logger.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}
