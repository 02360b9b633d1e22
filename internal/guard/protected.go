package guard

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aswinmurali/servicehub/internal/model"
	"github.com/aswinmurali/servicehub/internal/rolecache"
	"github.com/aswinmurali/servicehub/internal/utils"
)

// DefaultRoleTimeout bounds the remote role lookup of a Protected guard.
const DefaultRoleTimeout = 5 * time.Second

var errRoleUnknown = errors.New("role unknown")

// Protected gates a view behind a required capability set.  An empty set
// admits any authenticated actor.
type Protected struct {
	sess     Session
	cache    *rolecache.Cache
	required model.RoleSet
	timeout  time.Duration
	logger   *slog.Logger

	gen atomic.Uint64
}

// NewProtected builds a guard for required.  timeout <= 0 selects
// DefaultRoleTimeout.
func NewProtected(sess Session, cache *rolecache.Cache, required model.RoleSet, timeout time.Duration, logger *slog.Logger) *Protected {
	if timeout <= 0 {
		timeout = DefaultRoleTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Protected{
		sess:     sess,
		cache:    cache,
		required: required,
		timeout:  timeout,
		logger:   logger.With("component", "guard.protected"),
	}
}

// Evaluate runs the guard for a navigation to location.  A transient
// failure to resolve the role never redirects; it keeps the actor on the
// loading placeholder.  An evaluation overtaken by a newer one, or whose
// ctx ends, returns Loading and writes nothing.
func (g *Protected) Evaluate(ctx context.Context, location string) Decision {
	my := g.gen.Add(1)
	live := func() bool { return ctx.Err() == nil && g.gen.Load() == my }

	st := g.sess.State()
	if !st.Initialized {
		return loading(ReasonInitializing)
	}
	if !st.Authenticated() {
		return toSignIn(location, ReasonUnauthenticated)
	}
	if g.required.Empty() {
		return render(ReasonNoRoleCheck)
	}
	subject := st.Session.SubjectID
	if _, ok := g.cache.Trusted(ctx, subject, g.required); ok {
		return render(ReasonCached)
	}

	role, outcome, err := utils.Race(ctx, g.timeout, func(ctx context.Context) (model.Role, error) {
		r, ok := g.sess.GetRole(ctx)
		if !ok {
			return "", errRoleUnknown
		}
		return r, nil
	})
	if !live() {
		return loading(ReasonSuperseded)
	}

	if outcome == utils.RaceResolved && err == nil {
		if !g.required.Has(role) {
			g.logger.Info("role not permitted", "subject", subject, "role", role, "location", location)
			return toSignIn(location, ReasonRoleMismatch)
		}
		if err := g.cache.Write(ctx, subject, role); err != nil {
			g.logger.Warn("role cache write failed", "subject", subject, "err", err)
		}
		return render(ReasonAuthorized)
	}

	if _, ok := g.cache.Trusted(ctx, subject, g.required); ok {
		return render(ReasonCachedFallback)
	}
	g.logger.Info("role unresolved, waiting", "subject", subject, "location", location, "err", err)
	return loading(ReasonAwaitingRole)
}
