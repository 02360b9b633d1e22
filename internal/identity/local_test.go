package identity

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aswinmurali/servicehub/internal/repository"
	"github.com/aswinmurali/servicehub/internal/storage"
	"github.com/aswinmurali/servicehub/internal/utils"
)

type memUsers struct {
	mu    sync.Mutex
	byID  map[string]repository.User
	email map[string]string
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]repository.User{}, email: map[string]string{}}
}

func (m *memUsers) Create(_ context.Context, email, password, fullName string, cost int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.email[email]; ok {
		return "", repository.ErrEmailExists
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	m.byID[id] = repository.User{ID: id, Email: email, PasswordHash: hash, FullName: fullName, IsActive: true}
	m.email[email] = id
	return id, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.email[email]
	if !ok {
		return repository.User{}, repository.ErrNotFound
	}
	return m.byID[id], nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return repository.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id, password string, cost int) error {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	m.byID[id] = u
	return nil
}

type memTokens struct {
	mu      sync.Mutex
	refresh map[string]string
	reset   map[string]string
}

func newMemTokens() *memTokens {
	return &memTokens{refresh: map[string]string{}, reset: map[string]string{}}
}

func (m *memTokens) StoreRefresh(_ context.Context, userID, hash string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh[hash] = userID
	return nil
}

func (m *memTokens) ValidateRefresh(_ context.Context, hash string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.refresh[hash]
	if !ok {
		return "", repository.ErrNotFound
	}
	return id, nil
}

func (m *memTokens) RevokeByHash(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.refresh, hash)
	return nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for h, id := range m.refresh {
		if id == userID {
			delete(m.refresh, h)
		}
	}
	return nil
}

func (m *memTokens) StoreReset(_ context.Context, userID, hash string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset[hash] = userID
	return nil
}

func (m *memTokens) ConsumeReset(_ context.Context, hash string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.reset[hash]
	if !ok {
		return "", repository.ErrNotFound
	}
	delete(m.reset, hash)
	return id, nil
}

func (m *memTokens) live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.refresh)
}

type linkCatcher struct {
	mu    sync.Mutex
	links []string
}

func (c *linkCatcher) SendPasswordReset(_ context.Context, _, _, link string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.links = append(c.links, link)
	return nil
}

type recorder struct {
	mu    sync.Mutex
	kinds []EventKind
}

func (r *recorder) handle(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, ev.Kind)
}

func (r *recorder) seen() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]EventKind(nil), r.kinds...)
}

var testLocalConfig = LocalConfig{JWTSecret: "test-secret", AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: 4}

func newLocal(t *testing.T) (*LocalProvider, *memUsers, *memTokens, *linkCatcher, *storage.Local) {
	t.Helper()
	users, tokens, mail := newMemUsers(), newMemTokens(), &linkCatcher{}
	store := storage.NewLocal(storage.NewMemory())
	return NewLocalProvider(testLocalConfig, users, tokens, mail, store, nil), users, tokens, mail, store
}

func TestLocalSignUpSignsIn(t *testing.T) {
	ctx := context.Background()
	p, _, _, _, _ := newLocal(t)
	rec := &recorder{}
	unsub := p.SubscribeToSessionChanges(rec.handle)
	defer unsub()

	subj, err := p.CreateAccount(ctx, " Casey@Example.com", "Secret123", map[string]string{"full_name": "Casey"})
	require.NoError(t, err)
	assert.Equal(t, "casey@example.com", subj.Email)

	sess, err := p.GetCurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, subj.ID, sess.SubjectID)
	assert.Equal(t, "Casey", sess.Name)
	assert.Equal(t, []EventKind{EventSignedIn}, rec.seen())

	_, err = p.CreateAccount(ctx, "casey@example.com", "Secret123", nil)
	assert.ErrorIs(t, err, ErrEmailExists)

	_, err = p.CreateAccount(ctx, "short@example.com", "123", nil)
	assert.ErrorIs(t, err, utils.ErrWeakPassword)
}

func TestLocalCredentials(t *testing.T) {
	ctx := context.Background()
	p, _, _, _, _ := newLocal(t)
	_, err := p.CreateAccount(ctx, "casey@example.com", "Secret123", nil)
	require.NoError(t, err)
	require.NoError(t, p.RevokeSession(ctx))

	_, err = p.ExchangeCredentials(ctx, "casey@example.com", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = p.ExchangeCredentials(ctx, "nobody@example.com", "Secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	sess, err := p.ExchangeCredentials(ctx, "casey@example.com", "Secret123")
	require.NoError(t, err)
	assert.True(t, sess.Authenticated())

	subj, err := p.GetCurrentSubject(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess.SubjectID, subj.ID)
}

func TestLocalRevokeForgetsSession(t *testing.T) {
	ctx := context.Background()
	p, _, tokens, _, store := newLocal(t)
	rec := &recorder{}
	p.SubscribeToSessionChanges(rec.handle)

	_, err := p.CreateAccount(ctx, "casey@example.com", "Secret123", nil)
	require.NoError(t, err)
	require.Equal(t, 1, tokens.live())

	require.NoError(t, p.RevokeSession(ctx))
	assert.Equal(t, 0, tokens.live())
	sess, err := p.GetCurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess)
	_, err = store.Get(ctx, storage.KeyProviderToken)
	assert.ErrorIs(t, err, storage.ErrMissing)
	assert.Equal(t, []EventKind{EventSignedIn, EventSignedOut}, rec.seen())

	// nothing to revoke
	require.NoError(t, p.RevokeSession(ctx))
	assert.Len(t, rec.seen(), 2)
}

func TestLocalRefreshRotates(t *testing.T) {
	ctx := context.Background()
	p, _, tokens, _, _ := newLocal(t)
	_, err := p.CreateAccount(ctx, "casey@example.com", "Secret123", nil)
	require.NoError(t, err)
	before, _ := p.loadToken(ctx)
	oldRefresh := before.RefreshToken

	sess, err := p.RefreshToken(ctx)
	require.NoError(t, err)
	assert.True(t, sess.Authenticated())
	after, _ := p.loadToken(ctx)
	assert.NotEqual(t, oldRefresh, after.RefreshToken)
	assert.Equal(t, 1, tokens.live())

	_, err = tokens.ValidateRefresh(ctx, utils.HashToken(oldRefresh))
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestLocalResumesFromStore(t *testing.T) {
	ctx := context.Background()
	p, users, tokens, _, store := newLocal(t)
	subj, err := p.CreateAccount(ctx, "casey@example.com", "Secret123", nil)
	require.NoError(t, err)

	restarted := NewLocalProvider(testLocalConfig, users, tokens, nil, store, nil)
	sess, err := restarted.GetCurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, subj.ID, sess.SubjectID)
}

func TestLocalUndecodableSessionIsForgotten(t *testing.T) {
	ctx := context.Background()
	cfg := testLocalConfig
	cfg.AccessTTLMin = -1
	store := storage.NewLocal(storage.NewMemory())
	p := NewLocalProvider(cfg, newMemUsers(), newMemTokens(), nil, store, nil)

	_, err := p.CreateAccount(ctx, "casey@example.com", "Secret123", nil)
	require.NoError(t, err)

	// every issued access token is already expired, so rotation cannot
	// produce a usable session
	_, err = p.GetCurrentSession(ctx)
	assert.Error(t, err)
	_, err = store.Get(ctx, storage.KeyProviderToken)
	assert.ErrorIs(t, err, storage.ErrMissing)
}

func TestLocalPasswordResetLink(t *testing.T) {
	ctx := context.Background()
	p, _, _, mail, _ := newLocal(t)
	subj, err := p.CreateAccount(ctx, "casey@example.com", "Secret123", nil)
	require.NoError(t, err)
	require.NoError(t, p.RevokeSession(ctx))

	require.NoError(t, p.RequestPasswordReset(ctx, "nobody@example.com", "http://localhost:8080/auth/callback"))
	assert.Empty(t, mail.links)

	require.NoError(t, p.RequestPasswordReset(ctx, "casey@example.com", "http://localhost:8080/auth/callback"))
	require.Len(t, mail.links, 1)
	u, err := url.Parse(mail.links[0])
	require.NoError(t, err)
	assert.Equal(t, "/auth/callback", u.Path)
	assert.Equal(t, CallbackTypeRecovery, u.Query().Get("type"))
	token := u.Query().Get("token")
	require.NotEmpty(t, token)

	cb := Callback{Type: CallbackTypeRecovery, Token: token}
	require.NoError(t, p.CompleteExternalSignIn(ctx, cb))
	sess, err := p.GetCurrentSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, subj.ID, sess.SubjectID)

	err = p.CompleteExternalSignIn(ctx, cb)
	assert.ErrorIs(t, err, ErrInvalidCallback)
}

func TestLocalExternalUnsupported(t *testing.T) {
	ctx := context.Background()
	p, _, _, _, _ := newLocal(t)
	_, err := p.BeginExternalSignIn(ctx, "http://localhost/auth/callback")
	assert.ErrorIs(t, err, ErrExternalUnsupported)
	assert.ErrorIs(t, p.CompleteExternalSignIn(ctx, Callback{Code: "abc"}), ErrExternalUnsupported)
}

func TestLocalUpdatePassword(t *testing.T) {
	ctx := context.Background()
	p, _, tokens, _, _ := newLocal(t)

	assert.ErrorIs(t, p.UpdatePassword(ctx, "NewSecret1"), ErrNoSession)

	_, err := p.CreateAccount(ctx, "casey@example.com", "Secret123", nil)
	require.NoError(t, err)
	assert.ErrorIs(t, p.UpdatePassword(ctx, "123"), utils.ErrWeakPassword)
	require.NoError(t, p.UpdatePassword(ctx, "NewSecret1"))
	assert.Equal(t, 1, tokens.live())

	sess, err := p.GetCurrentSession(ctx)
	require.NoError(t, err)
	assert.NotNil(t, sess)

	require.NoError(t, p.RevokeSession(ctx))
	_, err = p.ExchangeCredentials(ctx, "casey@example.com", "Secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = p.ExchangeCredentials(ctx, "casey@example.com", "NewSecret1")
	assert.NoError(t, err)
}

func TestChangeFeedUnsubscribe(t *testing.T) {
	f := newChangeFeed()
	a, b := &recorder{}, &recorder{}
	unsubA := f.subscribe(a.handle)
	f.subscribe(b.handle)

	f.publish(Event{Kind: EventSignedIn})
	unsubA()
	unsubA()
	f.publish(Event{Kind: EventSignedOut})

	assert.Equal(t, []EventKind{EventSignedIn}, a.seen())
	assert.Equal(t, []EventKind{EventSignedIn, EventSignedOut}, b.seen())
}
