// Package store caches fetched backend data in BoltDB so project lists
// and deck orders survive restarts and stay browsable offline.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"shotdeck/internal/domain"
)

// Bucket names
var (
	bucketProjects = []byte("projects")
	bucketScreens  = []byte("screens")
)

// DeckStore implements domain.Cache using BoltDB with an in-memory
// promotion cache for hot-path reads.
type DeckStore struct {
	db *bolt.DB
	mu sync.RWMutex // protects cache

	cache map[string][]byte
}

// NewDeckStore opens (or creates) the cache database under cacheDir.
// An empty cacheDir yields a memory-only store with no persistence.
func NewDeckStore(cacheDir string) (*DeckStore, error) {
	if cacheDir == "" {
		return &DeckStore{cache: make(map[string][]byte)}, nil
	}

	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(cacheDir, "shotdeck.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketProjects, bucketScreens} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &DeckStore{db: db, cache: make(map[string][]byte)}, nil
}

func (s *DeckStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// === Generic helpers ===

func (s *DeckStore) get(bucket []byte, key string, dest interface{}) bool {
	cacheKey := string(bucket) + ":" + key

	s.mu.RLock()
	if data, ok := s.cache[cacheKey]; ok {
		s.mu.RUnlock()
		return json.Unmarshal(data, dest) == nil
	}
	s.mu.RUnlock()

	if s.db == nil {
		return false
	}

	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})

	if data == nil {
		return false
	}

	// Promote to memory cache
	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	return json.Unmarshal(data, dest) == nil
}

func (s *DeckStore) set(bucket []byte, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	cacheKey := string(bucket) + ":" + key

	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	if s.db == nil {
		return nil // memory-only mode
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		return b.Put([]byte(key), data)
	})
}

func (s *DeckStore) delete(bucket []byte, key string) {
	cacheKey := string(bucket) + ":" + key

	s.mu.Lock()
	delete(s.cache, cacheKey)
	s.mu.Unlock()

	if s.db == nil {
		return
	}

	s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b != nil {
			b.Delete([]byte(key))
		}
		return nil
	})
}

func (s *DeckStore) deleteAll(bucket []byte) {
	s.mu.Lock()
	prefix := string(bucket) + ":"
	for k := range s.cache {
		if strings.HasPrefix(k, prefix) {
			delete(s.cache, k)
		}
	}
	s.mu.Unlock()

	if s.db == nil {
		return
	}

	s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// === Projects ===

func (s *DeckStore) GetProjects() ([]domain.Project, bool) {
	var projects []domain.Project
	ok := s.get(bucketProjects, "list", &projects)
	return projects, ok
}

func (s *DeckStore) SaveProjects(projects []domain.Project) error {
	return s.set(bucketProjects, "list", projects)
}

// === Screens ===

func (s *DeckStore) GetScreens(project string) ([]domain.ScreenshotRef, bool) {
	var screens []domain.ScreenshotRef
	ok := s.get(bucketScreens, project, &screens)
	return screens, ok
}

func (s *DeckStore) SaveScreens(project string, screens []domain.ScreenshotRef) error {
	return s.set(bucketScreens, project, screens)
}

// === Invalidation ===

func (s *DeckStore) InvalidateProject(project string) {
	s.delete(bucketScreens, project)
}

func (s *DeckStore) InvalidateAll() {
	s.deleteAll(bucketProjects)
	s.deleteAll(bucketScreens)
}
