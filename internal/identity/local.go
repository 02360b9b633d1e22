package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aswinmurali/servicehub/internal/model"
	"github.com/aswinmurali/servicehub/internal/repository"
	"github.com/aswinmurali/servicehub/internal/storage"
	"github.com/aswinmurali/servicehub/internal/utils"
)

// UserRepo is the minimal user repository needed by LocalProvider.
type UserRepo interface {
	Create(ctx context.Context, email, password, fullName string, cost int) (string, error)
	GetByEmail(ctx context.Context, email string) (repository.User, error)
	GetByID(ctx context.Context, id string) (repository.User, error)
	UpdatePassword(ctx context.Context, id, password string, cost int) error
}

// TokenRepo is the minimal token repository needed by LocalProvider.
type TokenRepo interface {
	StoreRefresh(ctx context.Context, userID, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (string, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	StoreReset(ctx context.Context, userID, tokenHash string, exp time.Time) error
	ConsumeReset(ctx context.Context, tokenHash string) (string, error)
}

// ResetMailer delivers password reset links.
type ResetMailer interface {
	SendPasswordReset(ctx context.Context, subjectID, email, link string) error
}

// LocalConfig holds the token settings of the self-hosted provider.
type LocalConfig struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
	ResetTTL       time.Duration
}

type localToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
}

// LocalProvider is the self-hosted identity provider: users and refresh
// tokens live in MySQL, access tokens are HS256 JWTs.  Like the hosted
// backends it signs the new account in on registration.
type LocalProvider struct {
	cfg    LocalConfig
	users  UserRepo
	tokens TokenRepo
	mailer ResetMailer
	store  *storage.Local
	feed   *changeFeed
	logger *slog.Logger

	mu  sync.Mutex
	tok *localToken
}

var _ Provider = (*LocalProvider)(nil)

// NewLocalProvider wires a LocalProvider.  mailer may be nil, in which
// case reset links are only logged.
func NewLocalProvider(cfg LocalConfig, users UserRepo, tokens TokenRepo, mailer ResetMailer, store *storage.Local, logger *slog.Logger) *LocalProvider {
	if users == nil || tokens == nil || store == nil {
		panic("nil dependency passed to NewLocalProvider")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}
	return &LocalProvider{
		cfg:    cfg,
		users:  users,
		tokens: tokens,
		mailer: mailer,
		store:  store,
		feed:   newChangeFeed(),
		logger: logger.With("component", "identity.local"),
	}
}

// GetCurrentSession returns the stored session, rotating the refresh token
// when the access token has expired.
func (p *LocalProvider) GetCurrentSession(ctx context.Context) (*model.Session, error) {
	tok, err := p.loadToken(ctx)
	if err != nil || tok == nil {
		return nil, err
	}
	if time.Now().UTC().Before(tok.Expiry) {
		return p.sessionFromToken(tok)
	}
	sess, err := p.rotate(ctx, tok)
	if err != nil {
		p.forgetToken(ctx)
		return nil, err
	}
	return sess, nil
}

// ExchangeCredentials verifies email/password against the users table.
func (p *LocalProvider) ExchangeCredentials(ctx context.Context, email, password string) (*model.Session, error) {
	u, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	sess, err := p.issue(ctx, u.ID, u.Email, u.FullName)
	if err != nil {
		return nil, err
	}
	p.feed.publish(Event{Kind: EventSignedIn, Session: sess})
	return sess, nil
}

// CreateAccount inserts the user and signs it in.
func (p *LocalProvider) CreateAccount(ctx context.Context, email, password string, meta map[string]string) (*model.Subject, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, errors.New("email is required")
	}
	if err := utils.ValidatePassword(password); err != nil {
		return nil, err
	}
	id, err := p.users.Create(ctx, email, password, meta["full_name"], p.cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	sess, err := p.issue(ctx, id, email, meta["full_name"])
	if err != nil {
		p.logger.Warn("issue session after signup failed", "subject", id, "err", err)
	} else {
		p.feed.publish(Event{Kind: EventSignedIn, Session: sess})
	}
	return &model.Subject{ID: id, Email: email, Name: meta["full_name"]}, nil
}

// BeginExternalSignIn is not available without a federated backend.
func (p *LocalProvider) BeginExternalSignIn(context.Context, string) (string, error) {
	return "", ErrExternalUnsupported
}

// CompleteExternalSignIn redeems password-reset links; every other
// callback is unsupported.
func (p *LocalProvider) CompleteExternalSignIn(ctx context.Context, cb Callback) error {
	if cb.Type != CallbackTypeRecovery || cb.Token == "" {
		return ErrExternalUnsupported
	}
	userID, err := p.tokens.ConsumeReset(ctx, utils.HashToken(cb.Token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: reset link expired or used", ErrInvalidCallback)
		}
		return err
	}
	u, err := p.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	sess, err := p.issue(ctx, u.ID, u.Email, u.FullName)
	if err != nil {
		return err
	}
	p.feed.publish(Event{Kind: EventSignedIn, Session: sess})
	return nil
}

// GetCurrentSubject loads the signed-in user.
func (p *LocalProvider) GetCurrentSubject(ctx context.Context) (*model.Subject, error) {
	sess, err := p.GetCurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNoSession
	}
	u, err := p.users.GetByID(ctx, sess.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &model.Subject{ID: u.ID, Email: u.Email, Name: u.FullName, AvatarURL: u.AvatarURL, EmailVerified: u.EmailVerified}, nil
}

// RevokeSession revokes the current refresh token and forgets the session.
func (p *LocalProvider) RevokeSession(ctx context.Context) error {
	tok, _ := p.loadToken(ctx)
	if tok == nil {
		return nil
	}
	err := p.tokens.RevokeByHash(ctx, utils.HashToken(tok.RefreshToken))
	p.forgetToken(ctx)
	p.feed.publish(Event{Kind: EventSignedOut})
	return err
}

// RefreshToken rotates the refresh token unconditionally.
func (p *LocalProvider) RefreshToken(ctx context.Context) (*model.Session, error) {
	tok, err := p.loadToken(ctx)
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, ErrNoSession
	}
	return p.rotate(ctx, tok)
}

// SubscribeToSessionChanges registers handler until unsubscribe is called.
func (p *LocalProvider) SubscribeToSessionChanges(handler func(Event)) func() {
	return p.feed.subscribe(handler)
}

// RequestPasswordReset stores a single-use reset token and hands the link
// to the mailer.  Unknown emails succeed silently.
func (p *LocalProvider) RequestPasswordReset(ctx context.Context, email, redirectTarget string) error {
	u, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load user: %w", err)
	}
	raw, err := utils.RandomHex(32)
	if err != nil {
		return err
	}
	if err := p.tokens.StoreReset(ctx, u.ID, utils.HashToken(raw), time.Now().UTC().Add(p.cfg.ResetTTL)); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	link := resetLink(redirectTarget, raw)
	if p.mailer == nil {
		p.logger.Info("password reset link issued", "subject", u.ID)
		return nil
	}
	return p.mailer.SendPasswordReset(ctx, u.ID, u.Email, link)
}

// UpdatePassword changes the password of the signed-in user.
func (p *LocalProvider) UpdatePassword(ctx context.Context, newPassword string) error {
	if err := utils.ValidatePassword(newPassword); err != nil {
		return err
	}
	sess, err := p.GetCurrentSession(ctx)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrNoSession
	}
	if err := p.users.UpdatePassword(ctx, sess.SubjectID, newPassword, p.cfg.BcryptCost); err != nil {
		return err
	}
	// Sign out every other device, then reissue for this one.
	if err := p.tokens.RevokeAllForUser(ctx, sess.SubjectID); err != nil {
		p.logger.Warn("revoke refresh tokens failed", "subject", sess.SubjectID, "err", err)
	} else if fresh, err := p.issue(ctx, sess.SubjectID, sess.Email, sess.Name); err == nil {
		sess = fresh
	}
	p.feed.publish(Event{Kind: EventUserUpdated, Session: sess})
	return nil
}

func (p *LocalProvider) issue(ctx context.Context, subjectID, email, name string) (*model.Session, error) {
	access, err := utils.NewAccessToken(p.cfg.JWTSecret, subjectID, email, name, p.cfg.AccessTTLMin)
	if err != nil {
		return nil, fmt.Errorf("issue access: %w", err)
	}
	refresh, err := utils.NewRefreshToken(p.cfg.RefreshTTLDays)
	if err != nil {
		return nil, fmt.Errorf("issue refresh: %w", err)
	}
	if err := p.tokens.StoreRefresh(ctx, subjectID, utils.HashToken(refresh.Raw), refresh.Exp); err != nil {
		return nil, fmt.Errorf("save refresh: %w", err)
	}
	tok := &localToken{AccessToken: access.Token, RefreshToken: refresh.Raw, Expiry: access.Exp}
	if err := p.saveToken(ctx, tok); err != nil {
		p.logger.Warn("persist token failed", "err", err)
	}
	return p.sessionFromToken(tok)
}

func (p *LocalProvider) rotate(ctx context.Context, tok *localToken) (*model.Session, error) {
	hash := utils.HashToken(tok.RefreshToken)
	userID, err := p.tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh: %w", err)
	}
	_ = p.tokens.RevokeByHash(ctx, hash)
	u, err := p.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	sess, err := p.issue(ctx, u.ID, u.Email, u.FullName)
	if err != nil {
		return nil, err
	}
	p.feed.publish(Event{Kind: EventTokenRefreshed, Session: sess})
	return sess, nil
}

func (p *LocalProvider) sessionFromToken(tok *localToken) (*model.Session, error) {
	claims, err := utils.ParseAccessToken(tok.AccessToken, p.cfg.JWTSecret)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(tok)
	if err != nil {
		return nil, err
	}
	sess := &model.Session{
		SubjectID: claims.Subject,
		Email:     claims.Email,
		Name:      claims.DisplayName(),
		Raw:       string(raw),
		IssuedAt:  time.Now().UTC(),
	}
	if claims.IssuedAt != nil {
		sess.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	return sess, nil
}

func (p *LocalProvider) loadToken(ctx context.Context) (*localToken, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tok != nil {
		return p.tok, nil
	}
	raw, err := p.store.Get(ctx, storage.KeyProviderToken)
	if err != nil {
		if errors.Is(err, storage.ErrMissing) {
			return nil, nil
		}
		return nil, err
	}
	var tok localToken
	if err := json.Unmarshal([]byte(raw), &tok); err != nil || tok.AccessToken == "" {
		return nil, nil
	}
	p.tok = &tok
	return p.tok, nil
}

func (p *LocalProvider) saveToken(ctx context.Context, tok *localToken) error {
	p.mu.Lock()
	p.tok = tok
	p.mu.Unlock()
	b, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return p.store.Set(ctx, storage.KeyProviderToken, string(b))
}

func (p *LocalProvider) forgetToken(ctx context.Context) {
	p.mu.Lock()
	p.tok = nil
	p.mu.Unlock()
	if err := p.store.Delete(ctx, storage.KeyProviderToken); err != nil {
		p.logger.Warn("forget token failed", "err", err)
	}
}

func resetLink(target, raw string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target + "?type=recovery&token=" + url.QueryEscape(raw)
	}
	q := u.Query()
	q.Set("type", CallbackTypeRecovery)
	q.Set("token", raw)
	u.RawQuery = q.Encode()
	return u.String()
}
