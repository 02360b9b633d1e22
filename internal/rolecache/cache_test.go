package rolecache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aswinmurali/servicehub/internal/model"
	"github.com/aswinmurali/servicehub/internal/storage"
)

func TestWriteAndRead(t *testing.T) {
	ctx := context.Background()
	c := New(storage.NewMemory())
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	require.NoError(t, c.Write(ctx, "u1", model.RoleDriver))
	e, ok := c.Read(ctx, "u1")
	require.True(t, ok)
	assert.Equal(t, model.RoleDriver, e.Role)
	assert.Equal(t, fixed, e.CachedAt)

	fb, ok := c.ReadGlobalFallback(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", fb.SubjectID)

	_, ok = c.Read(ctx, "u2")
	assert.False(t, ok)
	_, ok = c.Read(ctx, "")
	assert.False(t, ok)
}

func TestWriteIgnoresInvalid(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemory()
	c := New(s)
	require.NoError(t, c.Write(ctx, "u1", model.Role("root")))
	require.NoError(t, c.Write(ctx, "", model.RoleAdmin))
	_, err := s.Get(ctx, FallbackKey)
	assert.ErrorIs(t, err, storage.ErrMissing)
}

func TestTrustedRequiresMembership(t *testing.T) {
	ctx := context.Background()
	c := New(storage.NewMemory())
	require.NoError(t, c.Write(ctx, "u1", model.RoleCustomer))

	r, ok := c.Trusted(ctx, "u1", model.NewRoleSet(model.RoleCustomer, model.RoleDriver))
	assert.True(t, ok)
	assert.Equal(t, model.RoleCustomer, r)

	_, ok = c.Trusted(ctx, "u1", model.NewRoleSet(model.RoleAdmin))
	assert.False(t, ok)
	_, ok = c.Trusted(ctx, "u1", model.NewRoleSet())
	assert.False(t, ok)
}

func TestReadRejectsTamperedEntries(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemory()
	c := New(s)

	require.NoError(t, s.Set(ctx, Key("u1"), `{"subject_id":"u1","role":"superuser"}`))
	_, ok := c.Read(ctx, "u1")
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, Key("u2"), `not json`))
	_, ok = c.Read(ctx, "u2")
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, Key("u3"), `{"subject_id":"u3","role":"Provider"}`))
	e, ok := c.Read(ctx, "u3")
	require.True(t, ok)
	assert.Equal(t, model.RoleServiceProvider, e.Role)
}
