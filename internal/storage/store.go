// Package storage holds the client's persisted local state: the mirrored
// session, the role cache entries, the remembered dashboard path and the
// markers that survive an external sign-in redirect.  It is a plain
// last-write-wins key/value store with no locking across calls.
package storage

import (
	"context"
	"errors"
)

// ErrMissing is returned by Get when the key has no value.
var ErrMissing = errors.New("storage: key not set")

// Store is the key/value contract both backends satisfy.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// SetNX stores value only when key is unset and reports whether it did.
	SetNX(ctx context.Context, key, value string) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}
