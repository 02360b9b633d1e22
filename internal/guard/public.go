package guard

import (
	"context"
	"sync"
	"time"

	"github.com/aswinmurali/servicehub/internal/model"
	"github.com/aswinmurali/servicehub/internal/rolecache"
	"github.com/aswinmurali/servicehub/internal/storage"
)

// DefaultRedirectDebounce is the minimum gap between two redirects of
// the same PublicOnly guard to the same target.
const DefaultRedirectDebounce = time.Second

// PublicOnly keeps authenticated actors away from sign-in and
// registration views.  It remembers the redirects it issued so it can
// break redirect loops.
type PublicOnly struct {
	sess   Session
	local  *storage.Local
	cache  *rolecache.Cache
	window time.Duration
	now    func() time.Time

	mu         sync.Mutex
	location   string
	redirected bool
	lastTarget string
	lastAt     time.Time
}

// NewPublicOnly builds a guard.  window <= 0 selects
// DefaultRedirectDebounce.
func NewPublicOnly(sess Session, local *storage.Local, cache *rolecache.Cache, window time.Duration) *PublicOnly {
	if window <= 0 {
		window = DefaultRedirectDebounce
	}
	return &PublicOnly{sess: sess, local: local, cache: cache, window: window, now: time.Now}
}

// WithClock replaces the guard's clock.
func (g *PublicOnly) WithClock(now func() time.Time) *PublicOnly {
	g.now = now
	return g
}

// Observe tells the guard the actor is now at location.  Moving to a
// different location re-arms the once-per-location redirect.
func (g *PublicOnly) Observe(location string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if location != g.location {
		g.location = location
		g.redirected = false
	}
}

// Evaluate runs the guard for a navigation to location.
func (g *PublicOnly) Evaluate(ctx context.Context, location string) Decision {
	g.Observe(location)

	st := g.sess.State()
	if !st.Initialized {
		return loading(ReasonInitializing)
	}
	evidence := st.Authenticated() || g.sess.HasSessionEvidence(ctx)
	if !evidence {
		return render(ReasonPublic)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.redirected {
		return render(ReasonLoopSuppressed)
	}

	target := g.target(ctx, st.Session)
	if target == "" {
		if isAuthView(location) {
			return loading(ReasonAwaitingTarget)
		}
		return render(ReasonPublic)
	}
	if target != g.lastTarget {
		g.lastTarget = target
		g.lastAt = time.Time{}
	}

	now := g.now()
	if !g.lastAt.IsZero() && now.Sub(g.lastAt) < g.window {
		return render(ReasonDebounced)
	}
	g.lastAt = now
	g.redirected = true
	return Decision{Kind: Redirect, Target: target, From: location, Replace: true, Reason: ReasonSignedIn}
}

// target prefers the remembered dashboard, then the cached role.
func (g *PublicOnly) target(ctx context.Context, sess *model.Session) string {
	if p := g.local.LastDashboardPath(ctx); model.IsRoleDashboard(p) {
		return p
	}
	if sess == nil {
		if saved, err := g.local.LoadSession(ctx); err == nil {
			sess = saved
		}
	}
	var (
		e  rolecache.Entry
		ok bool
	)
	if sess.Authenticated() {
		e, ok = g.cache.Read(ctx, sess.SubjectID)
	}
	if !ok {
		e, ok = g.cache.ReadGlobalFallback(ctx)
	}
	if !ok {
		return ""
	}
	if p := model.DashboardFor(e.Role); model.IsRoleDashboard(p) {
		return p
	}
	return ""
}

func isAuthView(location string) bool {
	switch location {
	case model.SignInPath, model.RegisterPath, model.ForgotPath, model.ExternalPath:
		return true
	}
	return false
}
