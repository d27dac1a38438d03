// Package storage defines the object store contract shared by all three
// lifecycle tiers. Each tier is backed by an independent store namespace;
// the pipeline holds no durable state of its own and reconstructs the world
// by listing the stores on every run.
package storage

import (
	"context"
	"time"

	"github.com/tiervault/tiervault/pkg/types"
)

// Object is the full content of one stored object plus its metadata.
type Object struct {
	Key          string
	Data         []byte
	Digest       string
	LastModified time.Time
}

// ObjectStore abstracts one tier's blob namespace. Implementations report
// transport failures as STORE_UNAVAILABLE and missing keys as
// OBJECT_NOT_FOUND so callers can tell a vanished object from a dead store.
type ObjectStore interface {
	// Get retrieves an object with its content digest and last-modified time.
	Get(ctx context.Context, key string) (*Object, error)

	// Put stores an object under key, overwriting any existing content,
	// and returns the digest of the stored bytes.
	Put(ctx context.Context, key string, data []byte) (string, error)

	// Delete removes an object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List enumerates all objects in the namespace. Order is unspecified.
	List(ctx context.Context) ([]types.ObjectInfo, error)

	// Tier reports which lifecycle tier this store backs.
	Tier() types.Tier
}
