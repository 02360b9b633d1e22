package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aswinmurali/servicehub/internal/model"
)

// Keys of the persisted local state.
const (
	KeySession         = "session:current"
	KeySessionPresent  = "session:present"
	KeyLastDashboard   = "nav:last_dashboard"
	KeyPendingRole     = "auth:pending_role"
	KeyFinalizedPrefix = "auth:finalized:"
	KeyProviderToken   = "idp:token"
	KeyOAuthState      = "idp:oauth_state"
	KeyOAuthVerifier   = "idp:oauth_verifier"
	KeyOAuthRedirect   = "idp:oauth_redirect"
)

// Local is the typed view of the persisted local state used by the session
// manager and the guards.
type Local struct {
	Store
}

// NewLocal wraps s.
func NewLocal(s Store) *Local { return &Local{Store: s} }

// SaveSession mirrors sess and raises the session-present flag.
func (l *Local) SaveSession(ctx context.Context, sess *model.Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := l.Set(ctx, KeySession, string(b)); err != nil {
		return err
	}
	return l.Set(ctx, KeySessionPresent, "1")
}

// LoadSession returns the mirrored session or ErrMissing.
func (l *Local) LoadSession(ctx context.Context) (*model.Session, error) {
	raw, err := l.Get(ctx, KeySession)
	if err != nil {
		return nil, err
	}
	var sess model.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, err
	}
	if !sess.Authenticated() {
		return nil, ErrMissing
	}
	return &sess, nil
}

// HasSession reports persisted session evidence.  Read errors count as
// no evidence.
func (l *Local) HasSession(ctx context.Context) bool {
	v, err := l.Get(ctx, KeySessionPresent)
	return err == nil && v == "1"
}

// ClearSession removes the mirrored session and its flag.
func (l *Local) ClearSession(ctx context.Context) error {
	return l.Delete(ctx, KeySession, KeySessionPresent)
}

// LastDashboardPath returns the remembered dashboard path, or "" when none.
func (l *Local) LastDashboardPath(ctx context.Context) string {
	v, err := l.Get(ctx, KeyLastDashboard)
	if err != nil {
		return ""
	}
	return v
}

// SetLastDashboardPath remembers path for the public-only guard.
func (l *Local) SetLastDashboardPath(ctx context.Context, path string) error {
	return l.Set(ctx, KeyLastDashboard, path)
}

// SetPendingRole records the role requested before an external sign-in
// redirect.
func (l *Local) SetPendingRole(ctx context.Context, r model.Role) error {
	return l.Set(ctx, KeyPendingRole, string(r))
}

// TakePendingRole returns and clears the pending role marker.
func (l *Local) TakePendingRole(ctx context.Context) (model.Role, bool) {
	v, err := l.Get(ctx, KeyPendingRole)
	if err != nil {
		return "", false
	}
	_ = l.Delete(ctx, KeyPendingRole)
	return model.ParseRole(v)
}

// ClaimFinalization marks subject as finalized and reports whether this
// call was the first to do so.  The marker outlives logout.
func (l *Local) ClaimFinalization(ctx context.Context, subjectID string) (bool, error) {
	if subjectID == "" {
		return false, errors.New("storage: empty subject")
	}
	return l.SetNX(ctx, KeyFinalizedPrefix+subjectID, time.Now().UTC().Format(time.RFC3339))
}

// Clear removes everything a logout must forget: the session mirror, the
// remembered dashboard, the pending role, the provider token and any
// extra keys supplied by the caller (role cache entries).
func (l *Local) Clear(ctx context.Context, extra ...string) error {
	keys := append([]string{
		KeySession, KeySessionPresent, KeyLastDashboard, KeyPendingRole,
		KeyProviderToken, KeyOAuthState, KeyOAuthVerifier, KeyOAuthRedirect,
	}, extra...)
	return l.Delete(ctx, keys...)
}
