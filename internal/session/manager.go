// Package session owns the process-wide session state.  The Manager is
// the only writer of that state; guards and handlers read snapshots of it
// and call its operations, which never return a failure as a Go error
// across the render boundary but as a typed result.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aswinmurali/servicehub/internal/events"
	"github.com/aswinmurali/servicehub/internal/identity"
	"github.com/aswinmurali/servicehub/internal/model"
	"github.com/aswinmurali/servicehub/internal/nav"
	"github.com/aswinmurali/servicehub/internal/repository"
	"github.com/aswinmurali/servicehub/internal/rolecache"
	"github.com/aswinmurali/servicehub/internal/storage"
	"github.com/aswinmurali/servicehub/internal/utils"
)

// State is a snapshot of the session state.
type State struct {
	Initialized bool
	Session     *model.Session
}

// Authenticated reports whether the snapshot holds a usable session.
func (s State) Authenticated() bool { return s.Session.Authenticated() }

// Deps are the collaborators of a Manager.  Bus, Notices and Logger are
// optional.
type Deps struct {
	Provider identity.Provider
	Roles    RoleStore
	Local    *storage.Local
	Cache    *rolecache.Cache
	Bus      *events.Bus
	Notices  Notifier
	Logger   *slog.Logger
	// SiteURL is the public base URL of the client, used to build
	// provider redirect targets.
	SiteURL string
}

// Manager holds the session of the actor using this client.
type Manager struct {
	provider identity.Provider
	roles    RoleStore
	local    *storage.Local
	cache    *rolecache.Cache
	bus      *events.Bus
	notices  Notifier
	logger   *slog.Logger
	siteURL  string
	now      func() time.Time

	mu    sync.RWMutex
	state State

	subscribe sync.Once
	unsub     func() // guarded by mu
	quiet     atomic.Int32
}

// New builds a Manager.  It panics when a required collaborator is nil.
func New(d Deps) *Manager {
	if d.Provider == nil || d.Roles == nil || d.Local == nil || d.Cache == nil {
		panic("session: missing dependency")
	}
	m := &Manager{
		provider: d.Provider,
		roles:    d.Roles,
		local:    d.Local,
		cache:    d.Cache,
		bus:      d.Bus,
		notices:  d.Notices,
		logger:   d.Logger,
		siteURL:  strings.TrimRight(d.SiteURL, "/"),
		now:      time.Now,
	}
	if m.notices == nil {
		m.notices = discard{}
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("component", "session")
	return m
}

// State returns a snapshot of the current session state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// HasSessionEvidence reports an in-memory session or a persisted
// session-present flag.
func (m *Manager) HasSessionEvidence(ctx context.Context) bool {
	if m.State().Authenticated() {
		return true
	}
	return m.local.HasSession(ctx)
}

// Initialize loads the provider's current session and subscribes to
// session changes.  It always marks the manager initialized.
func (m *Manager) Initialize(ctx context.Context) {
	m.subscribe.Do(func() {
		unsub := m.provider.SubscribeToSessionChanges(m.onChange)
		m.mu.Lock()
		m.unsub = unsub
		m.mu.Unlock()
	})

	sess, err := m.provider.GetCurrentSession(ctx)
	if err != nil {
		m.logger.Warn("restore session failed", "err", err)
		sess = nil
	}
	m.setSession(ctx, sess)

	m.mu.Lock()
	m.state.Initialized = true
	m.mu.Unlock()
}

// Close drops the provider subscription.  It is safe to call more than
// once and concurrently with Initialize.
func (m *Manager) Close() {
	m.mu.Lock()
	unsub := m.unsub
	m.unsub = nil
	m.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (m *Manager) onChange(ev identity.Event) {
	ctx := context.Background()
	before := m.State()
	next := ev.Session
	if ev.Kind == identity.EventSignedOut {
		next = nil
	}
	m.setSession(ctx, next)

	if m.quiet.Load() > 0 || !before.Initialized {
		return
	}
	switch {
	case !before.Authenticated() && next.Authenticated():
		m.notices.Notify(Notice{Level: LevelSuccess, Message: "Signed in successfully"})
		m.bus.Publish(events.Event{Topic: events.TopicSignedIn, SubjectID: next.SubjectID, Email: next.Email})
	case before.Authenticated() && !next.Authenticated():
		m.notices.Notify(Notice{Level: LevelInfo, Message: "Logged out"})
		m.bus.Publish(events.Event{Topic: events.TopicSignedOut, SubjectID: before.Session.SubjectID, Email: before.Session.Email})
	}
}

// setSession replaces the in-memory session and its persisted copy.
func (m *Manager) setSession(ctx context.Context, sess *model.Session) {
	if !sess.Authenticated() {
		sess = nil
	}
	m.mu.Lock()
	m.state.Session = sess
	m.mu.Unlock()

	var err error
	if sess != nil {
		err = m.local.SaveSession(ctx, sess)
	} else {
		err = m.local.ClearSession(ctx)
	}
	if err != nil {
		m.logger.Warn("persist session failed", "err", err)
	}
}

// Login exchanges credentials and resolves the actor's role.
func (m *Manager) Login(ctx context.Context, cred model.Credentials) model.LoginResult {
	email := strings.TrimSpace(cred.Email)
	if email == "" || cred.Password == "" {
		return model.LoginResult{Error: m.fail("Email and password are required")}
	}
	sess, err := m.provider.ExchangeCredentials(ctx, email, cred.Password)
	if err != nil {
		return model.LoginResult{Error: m.fail(errorMessage(err))}
	}
	if !sess.Authenticated() {
		return model.LoginResult{Error: m.fail("Sign-in returned no session")}
	}
	m.setSession(ctx, sess)

	res := m.syncRole(ctx, subjectOf(sess), clampHint(cred.Role))
	m.remember(ctx, sess.SubjectID, res)
	return model.LoginResult{
		Success:       true,
		Role:          res.Role,
		DashboardPath: res.DashboardPath,
		Degraded:      res.Degraded,
	}
}

// Register creates an account and its role record but leaves the actor
// signed out: the provider session created by sign-up is revoked.
func (m *Manager) Register(ctx context.Context, data model.RegisterData) model.RegisterResult {
	email := strings.TrimSpace(data.Email)
	if email == "" {
		return model.RegisterResult{Error: m.fail("Email is required")}
	}
	if err := utils.ValidatePassword(data.Password); err != nil {
		return model.RegisterResult{Error: m.fail(errorMessage(err))}
	}
	hint := clampHint(data.Role)

	m.quiet.Add(1)
	defer m.quiet.Add(-1)

	subj, err := m.provider.CreateAccount(ctx, email, data.Password, map[string]string{
		"full_name": data.FullName,
		"phone":     data.Phone,
		"role":      string(hint),
	})
	if err != nil {
		m.signOutQuietly(ctx)
		return model.RegisterResult{Error: m.fail(errorMessage(err))}
	}
	if subj != nil && subj.Name == "" {
		subj.Name = data.FullName
	}
	res := m.syncRole(ctx, subj, hint)
	if !res.Degraded {
		m.saveProfile(ctx, subj, data)
	}
	m.signOutQuietly(ctx)

	msg := "Registration successful. Please verify your email, then sign in."
	m.notices.Notify(Notice{Level: LevelSuccess, Message: msg})
	return model.RegisterResult{Success: true, Message: msg, Degraded: res.Degraded}
}

// saveProfile stores the contact details collected at sign-up.  Failures
// are logged; the account already exists.
func (m *Manager) saveProfile(ctx context.Context, subj *model.Subject, data model.RegisterData) {
	if subj == nil || subj.ID == "" {
		return
	}
	p := model.Profile{SubjectID: subj.ID, FullName: strings.TrimSpace(data.FullName), Phone: strings.TrimSpace(data.Phone)}
	if p.FullName == "" && p.Phone == "" {
		return
	}
	if err := m.roles.SaveProfile(ctx, p); err != nil {
		m.logger.Warn("save profile failed", "subject", subj.ID, "err", err)
	}
}

func (m *Manager) signOutQuietly(ctx context.Context) {
	if err := m.provider.RevokeSession(ctx); err != nil {
		m.logger.Warn("revoke sign-up session failed", "err", err)
	}
	m.setSession(ctx, nil)
}

// SignInWithExternalProvider records the default role as the pending
// role and returns the provider URL to redirect to.
func (m *Manager) SignInWithExternalProvider(ctx context.Context) (model.ExternalSignIn, error) {
	if err := m.local.SetPendingRole(ctx, model.DefaultRole); err != nil {
		m.logger.Warn("store pending role failed", "err", err)
	}
	u, err := m.provider.BeginExternalSignIn(ctx, m.siteURL+model.CallbackPath)
	if err != nil {
		m.local.TakePendingRole(ctx)
		m.fail(errorMessage(err))
		return model.ExternalSignIn{}, err
	}
	return model.ExternalSignIn{RedirectURL: u}, nil
}

// FinalizeExternalAuth completes a redirect-based sign-in.  Only the first
// finalization of a subject can be classified as new.
func (m *Manager) FinalizeExternalAuth(ctx context.Context, cb identity.Callback) model.FinalizeResult {
	if cb.Error != "" {
		msg := cb.ErrorDescription
		if msg == "" {
			msg = cb.Error
		}
		return model.FinalizeResult{Error: msg}
	}
	if cb.Code != "" || cb.Token != "" {
		if err := m.provider.CompleteExternalSignIn(ctx, cb); err != nil {
			return model.FinalizeResult{Error: errorMessage(err)}
		}
	}
	subj, err := m.provider.GetCurrentSubject(ctx)
	if err != nil {
		return model.FinalizeResult{Error: errorMessage(err)}
	}
	if subj == nil || subj.ID == "" {
		return model.FinalizeResult{Error: "Sign-in returned no subject"}
	}
	if sess, err := m.provider.GetCurrentSession(ctx); err == nil && sess.Authenticated() {
		m.setSession(ctx, sess)
	}
	m.local.TakePendingRole(ctx)

	claimed, err := m.local.ClaimFinalization(ctx, subj.ID)
	if err != nil {
		m.logger.Warn("claim finalization failed", "subject", subj.ID, "err", err)
	}
	res := m.syncRole(ctx, subj, model.DefaultRole)
	m.remember(ctx, subj.ID, res)
	return model.FinalizeResult{
		Success:       true,
		IsNew:         res.IsNew && claimed,
		Recovery:      cb.Type == identity.CallbackTypeRecovery,
		Role:          res.Role,
		DashboardPath: res.DashboardPath,
		Degraded:      res.Degraded,
	}
}

// remember caches a confirmed role and the dashboard path for the
// public-only guard.
func (m *Manager) remember(ctx context.Context, subjectID string, res SyncResult) {
	if !res.Degraded {
		if err := m.cache.Write(ctx, subjectID, res.Role); err != nil {
			m.logger.Warn("role cache write failed", "subject", subjectID, "err", err)
		}
	}
	if err := m.local.SetLastDashboardPath(ctx, res.DashboardPath); err != nil {
		m.logger.Warn("store dashboard path failed", "err", err)
	}
}

// RequestPasswordReset asks the provider to send a reset link.
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) model.Result {
	email = strings.TrimSpace(email)
	if email == "" {
		return model.Result{Error: m.fail("Email is required")}
	}
	if err := m.provider.RequestPasswordReset(ctx, email, m.siteURL+model.CallbackPath); err != nil {
		return model.Result{Error: m.fail(errorMessage(err))}
	}
	msg := "Password reset email sent"
	m.notices.Notify(Notice{Level: LevelSuccess, Message: msg})
	return model.Result{Success: true, Message: msg}
}

// UpdatePassword changes the signed-in actor's password.
func (m *Manager) UpdatePassword(ctx context.Context, newPassword string) model.Result {
	if err := m.provider.UpdatePassword(ctx, newPassword); err != nil {
		return model.Result{Error: m.fail(errorMessage(err))}
	}
	msg := "Password updated"
	m.notices.Notify(Notice{Level: LevelSuccess, Message: msg})
	return model.Result{Success: true, Message: msg}
}

// Logout revokes the provider session, forgets every piece of local
// session state and hard-navigates to the sign-in view.
func (m *Manager) Logout(ctx context.Context, n nav.Navigator) {
	subjectID := ""
	if s := m.State().Session; s != nil {
		subjectID = s.SubjectID
	}
	if err := m.provider.RevokeSession(ctx); err != nil {
		m.logger.Warn("revoke session failed", "err", err)
	}
	m.setSession(ctx, nil)

	extra := []string{rolecache.FallbackKey}
	if subjectID != "" {
		extra = append(extra, rolecache.Key(subjectID))
	}
	if err := m.local.Clear(ctx, extra...); err != nil {
		m.logger.Warn("clear local state failed", "err", err)
	}
	n.Navigate(model.SignInPath, nav.Options{Replace: true, Hard: true})
}

// RefreshSession refreshes the provider token.  Failures are logged.
func (m *Manager) RefreshSession(ctx context.Context) bool {
	sess, err := m.provider.RefreshToken(ctx)
	if err != nil {
		m.logger.Warn("session refresh failed", "err", err)
		return false
	}
	if !sess.Authenticated() {
		return false
	}
	m.setSession(ctx, sess)
	return true
}

// GetRole looks up the role of the current subject.  false means the role
// is unknown, not that the actor is unauthorized.
func (m *Manager) GetRole(ctx context.Context) (model.Role, bool) {
	sess := m.State().Session
	if !sess.Authenticated() {
		return "", false
	}
	rec, err := m.roles.FindBySubject(ctx, sess.SubjectID)
	if err != nil || rec == nil {
		m.logger.Info("role lookup failed", "subject", sess.SubjectID, "err", err)
		return "", false
	}
	role, ok := model.ParseRole(rec.Role)
	if !ok {
		m.logger.Info("role lookup returned unknown role", "subject", sess.SubjectID, "role", rec.Role)
		return "", false
	}
	return role, true
}

// GetCompleteProfile reads the role record, the profile row and the
// role-specific details of the current subject.
func (m *Manager) GetCompleteProfile(ctx context.Context) (*model.CompleteProfile, bool) {
	sess := m.State().Session
	if !sess.Authenticated() {
		return nil, false
	}
	id := sess.SubjectID

	var (
		rec     *model.RoleRecord
		profile *model.Profile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := m.roles.FindBySubject(gctx, id)
		rec = r
		return err
	})
	g.Go(func() error {
		p, err := m.roles.FindProfile(gctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		profile = p
		return err
	})
	if err := g.Wait(); err != nil || rec == nil {
		m.logger.Info("profile read failed", "subject", id, "err", err)
		return nil, false
	}
	role, ok := model.ParseRole(rec.Role)
	if !ok {
		return nil, false
	}
	details, err := m.roles.FindRoleDetails(ctx, id, role)
	if err != nil {
		m.logger.Info("role details read failed", "subject", id, "err", err)
		return nil, false
	}
	return &model.CompleteProfile{Record: *rec, Role: role, Profile: profile, Details: details}, true
}

func (m *Manager) fail(msg string) string {
	m.notices.Notify(Notice{Level: LevelError, Message: msg})
	return msg
}

func subjectOf(s *model.Session) *model.Subject {
	return &model.Subject{ID: s.SubjectID, Email: s.Email, Name: s.Name, AvatarURL: s.AvatarURL}
}

// errorMessage turns a provider error into the message shown to the
// actor.  It never returns "".
func errorMessage(err error) string {
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		return "Invalid email or password"
	case errors.Is(err, identity.ErrEmailExists):
		return "An account with this email already exists"
	case errors.Is(err, identity.ErrNoSession):
		return "You are not signed in"
	case errors.Is(err, identity.ErrExternalUnsupported):
		return "External sign-in is not available"
	case errors.Is(err, identity.ErrInvalidState), errors.Is(err, identity.ErrInvalidCallback):
		return "The sign-in link is invalid or has expired"
	case errors.Is(err, utils.ErrWeakPassword):
		return err.Error()
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return "Unexpected error"
}
