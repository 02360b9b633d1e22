// Package rolecache remembers the last resolved role per subject so guards
// can skip a remote lookup.  It is not a trusted source: a cached role is
// only accepted when it belongs to the capability set the calling guard
// requires.
package rolecache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aswinmurali/servicehub/internal/model"
	"github.com/aswinmurali/servicehub/internal/storage"
)

const (
	keyPrefix   = "role:"
	keyFallback = "role:last"
)

// Entry is one cached resolution.
type Entry struct {
	SubjectID string     `json:"subject_id"`
	Role      model.Role `json:"role"`
	CachedAt  time.Time  `json:"cached_at"`
}

// Cache reads and writes role entries in the persisted local state.
type Cache struct {
	store storage.Store
	now   func() time.Time
}

// New returns a Cache over s.
func New(s storage.Store) *Cache {
	return &Cache{store: s, now: time.Now}
}

// Key returns the storage key of subjectID's entry, used by logout to
// clear it.
func Key(subjectID string) string { return keyPrefix + subjectID }

// FallbackKey is the storage key of the last-known-role entry.
const FallbackKey = keyFallback

// Write stores role for subjectID and updates the last-known-role
// fallback.  Invalid roles are ignored.
func (c *Cache) Write(ctx context.Context, subjectID string, role model.Role) error {
	if subjectID == "" || !role.Valid() {
		return nil
	}
	b, err := json.Marshal(Entry{SubjectID: subjectID, Role: role, CachedAt: c.now().UTC()})
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, Key(subjectID), string(b)); err != nil {
		return err
	}
	return c.store.Set(ctx, keyFallback, string(b))
}

// Read returns the entry of subjectID.
func (c *Cache) Read(ctx context.Context, subjectID string) (Entry, bool) {
	if subjectID == "" {
		return Entry{}, false
	}
	return c.read(ctx, Key(subjectID))
}

// ReadGlobalFallback returns the last entry written for any subject.
func (c *Cache) ReadGlobalFallback(ctx context.Context) (Entry, bool) {
	return c.read(ctx, keyFallback)
}

// Trusted returns the cached role of subjectID when it is a member of
// allowed.  An empty allowed set trusts nothing: guards without a
// required set never need the cache.
func (c *Cache) Trusted(ctx context.Context, subjectID string, allowed model.RoleSet) (model.Role, bool) {
	e, ok := c.Read(ctx, subjectID)
	if !ok || !allowed.Has(e.Role) {
		return "", false
	}
	return e.Role, true
}

func (c *Cache) read(ctx context.Context, key string) (Entry, bool) {
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		return Entry{}, false
	}
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Entry{}, false
	}
	role, ok := model.ParseRole(string(e.Role))
	if !ok {
		return Entry{}, false
	}
	e.Role = role
	return e, true
}
