// Package memory provides an in-memory ObjectStore used for local mode and
// tests. Failure hooks allow fault injection at any operation boundary,
// which the pipeline tests use to simulate crashes between write and delete.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tiervault/tiervault/internal/integrity"
	"github.com/tiervault/tiervault/internal/storage"
	"github.com/tiervault/tiervault/pkg/errors"
	"github.com/tiervault/tiervault/pkg/types"
)

type entry struct {
	data         []byte
	digest       string
	lastModified time.Time
}

// Store is a thread-safe in-memory object store for one tier.
type Store struct {
	mu      sync.RWMutex
	tier    types.Tier
	objects map[string]entry

	// now allows tests to control object timestamps.
	now func() time.Time

	// Failure hooks. When set, the corresponding operation consults the
	// hook before touching state and returns its error when non-nil.
	FailGet    func(key string) error
	FailPut    func(key string) error
	FailDelete func(key string) error
	FailList   func() error
}

// New creates an empty in-memory store for the given tier.
func New(tier types.Tier) *Store {
	return &Store{
		tier:    tier,
		objects: make(map[string]entry),
		now:     time.Now,
	}
}

// NewWithClock creates a store whose timestamps come from the given clock.
func NewWithClock(tier types.Tier, now func() time.Time) *Store {
	s := New(tier)
	s.now = now
	return s
}

// Tier reports which lifecycle tier this store backs.
func (s *Store) Tier() types.Tier {
	return s.tier
}

// Get retrieves an object by key.
func (s *Store) Get(ctx context.Context, key string) (*storage.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeOperationCanceled, "get canceled", err)
	}
	if s.FailGet != nil {
		if err := s.FailGet(key); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.objects[key]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeObjectNotFound, "object %q not found in %s tier", key, s.tier)
	}

	data := make([]byte, len(e.data))
	copy(data, e.data)

	return &storage.Object{
		Key:          key,
		Data:         data,
		Digest:       e.digest,
		LastModified: e.lastModified,
	}, nil
}

// Put stores an object, overwriting existing content under the same key.
func (s *Store) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Wrap(errors.ErrCodeOperationCanceled, "put canceled", err)
	}
	if s.FailPut != nil {
		if err := s.FailPut(key); err != nil {
			return "", err
		}
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	digest := integrity.Digest(stored)

	s.mu.Lock()
	s.objects[key] = entry{
		data:         stored,
		digest:       digest,
		lastModified: s.now(),
	}
	s.mu.Unlock()

	return digest, nil
}

// Delete removes an object. Deleting a missing key is a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeOperationCanceled, "delete canceled", err)
	}
	if s.FailDelete != nil {
		if err := s.FailDelete(key); err != nil {
			return err
		}
	}

	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()

	return nil
}

// List enumerates all objects. Order is unspecified.
func (s *Store) List(ctx context.Context) ([]types.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeOperationCanceled, "list canceled", err)
	}
	if s.FailList != nil {
		if err := s.FailList(); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]types.ObjectInfo, 0, len(s.objects))
	for key, e := range s.objects {
		infos = append(infos, types.ObjectInfo{
			Key:          key,
			SizeBytes:    int64(len(e.data)),
			LastModified: e.lastModified,
		})
	}
	return infos, nil
}

// SetLastModified backdates an object, used by tests to age objects past
// the archival threshold.
func (s *Store) SetLastModified(key string, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.objects[key]; ok {
		e.lastModified = ts
		s.objects[key] = e
	}
}

// Len returns the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Has reports whether key exists in the store.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok
}
