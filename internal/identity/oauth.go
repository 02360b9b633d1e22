package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/aswinmurali/servicehub/internal/model"
	"github.com/aswinmurali/servicehub/internal/storage"
	"github.com/aswinmurali/servicehub/internal/utils"
)

// OAuthConfig configures the remote identity provider.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string // authorization endpoint for external sign-in
	TokenURL     string // token endpoint (password, code and refresh grants)
	APIURL       string // account API: /signup, /recover, /verify, /user, /logout
	Scopes       []string
	JWTSecret    string // optional; verifies access tokens when set
	HTTPClient   *http.Client
}

// OAuthProvider implements Provider against a remote backend-as-a-service.
// The current token is mirrored into the local store so a restarted
// client resumes the session.
type OAuthProvider struct {
	cfg    OAuthConfig
	oauth  *oauth2.Config
	store  *storage.Local
	http   *http.Client
	feed   *changeFeed
	logger *slog.Logger

	mu  sync.Mutex
	tok *oauth2.Token
}

var _ Provider = (*OAuthProvider)(nil)

// NewOAuthProvider returns a provider for cfg persisting state in store.
func NewOAuthProvider(cfg OAuthConfig, store *storage.Local, logger *slog.Logger) *OAuthProvider {
	if logger == nil {
		logger = slog.Default()
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &OAuthProvider{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
			Scopes: cfg.Scopes,
		},
		store:  store,
		http:   hc,
		feed:   newChangeFeed(),
		logger: logger.With("component", "identity.oauth"),
	}
}

func (p *OAuthProvider) clientCtx(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.http)
}

// GetCurrentSession returns the stored session, refreshing an expired
// access token first.  A refresh failure forgets the token.
func (p *OAuthProvider) GetCurrentSession(ctx context.Context) (*model.Session, error) {
	tok, err := p.loadToken(ctx)
	if err != nil || tok == nil {
		return nil, err
	}
	if !tok.Valid() {
		if tok.RefreshToken == "" {
			p.forgetToken(ctx)
			return nil, nil
		}
		fresh, err := p.oauth.TokenSource(p.clientCtx(ctx), tok).Token()
		if err != nil {
			p.forgetToken(ctx)
			return nil, fmt.Errorf("refresh stored session: %w", err)
		}
		tok = fresh
		if err := p.saveToken(ctx, tok); err != nil {
			p.logger.Warn("persist refreshed token failed", "err", err)
		}
	}
	return p.sessionFromToken(tok)
}

// ExchangeCredentials signs in with the password grant.
func (p *OAuthProvider) ExchangeCredentials(ctx context.Context, email, password string) (*model.Session, error) {
	tok, err := p.oauth.PasswordCredentialsToken(p.clientCtx(ctx), strings.TrimSpace(email), password)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < 500 {
			if re.ErrorDescription != "" {
				return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, re.ErrorDescription)
			}
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("password grant: %w", err)
	}
	sess, err := p.sessionFromToken(tok)
	if err != nil {
		return nil, err
	}
	if err := p.saveToken(ctx, tok); err != nil {
		p.logger.Warn("persist token failed", "err", err)
	}
	p.feed.publish(Event{Kind: EventSignedIn, Session: sess})
	return sess, nil
}

type apiUser struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at"`
	UserMetadata     map[string]any `json:"user_metadata"`
}

type apiSession struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	User         *apiUser `json:"user"`
	apiUser
}

func (s apiSession) token() *oauth2.Token {
	if s.AccessToken == "" {
		return nil
	}
	tok := &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
	}
	if s.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return tok
}

func (s apiSession) subject() *apiUser {
	if s.User != nil {
		return s.User
	}
	return &s.apiUser
}

// CreateAccount registers through the account API.  When the backend
// answers with a session (auto-confirm deployments) it becomes current.
func (p *OAuthProvider) CreateAccount(ctx context.Context, email, password string, meta map[string]string) (*model.Subject, error) {
	body := map[string]any{"email": strings.TrimSpace(email), "password": password, "data": meta}
	var out apiSession
	if err := p.doJSON(ctx, http.MethodPost, "/signup", "", body, &out); err != nil {
		var ae *apiError
		if errors.As(err, &ae) && strings.Contains(strings.ToLower(ae.Message), "already") {
			return nil, ErrEmailExists
		}
		return nil, err
	}
	u := out.subject()
	if u.ID == "" {
		return nil, errors.New("signup response carries no user id")
	}
	if tok := out.token(); tok != nil {
		if sess, err := p.sessionFromToken(tok); err == nil {
			if err := p.saveToken(ctx, tok); err != nil {
				p.logger.Warn("persist token failed", "err", err)
			}
			p.feed.publish(Event{Kind: EventSignedIn, Session: sess})
		}
	}
	return u.toSubject(), nil
}

// BeginExternalSignIn prepares an authorization-code request with PKCE.
// State, verifier and redirect target survive the redirect in the local
// store.
func (p *OAuthProvider) BeginExternalSignIn(ctx context.Context, redirectTarget string) (string, error) {
	if p.cfg.AuthURL == "" {
		return "", ErrExternalUnsupported
	}
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	for k, v := range map[string]string{
		storage.KeyOAuthState:    state,
		storage.KeyOAuthVerifier: verifier,
		storage.KeyOAuthRedirect: redirectTarget,
	} {
		if err := p.store.Set(ctx, k, v); err != nil {
			return "", fmt.Errorf("persist sign-in state: %w", err)
		}
	}
	cfg := *p.oauth
	cfg.RedirectURL = redirectTarget
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier)), nil
}

// CompleteExternalSignIn exchanges the callback code (or verifies a
// recovery token) and makes the resulting session current.
func (p *OAuthProvider) CompleteExternalSignIn(ctx context.Context, cb Callback) error {
	if cb.Error != "" {
		return fmt.Errorf("%w: %s %s", ErrInvalidCallback, cb.Error, cb.ErrorDescription)
	}
	var tok *oauth2.Token
	switch {
	case cb.Type == CallbackTypeRecovery && cb.Token != "":
		var out apiSession
		body := map[string]string{"type": CallbackTypeRecovery, "token": cb.Token}
		if err := p.doJSON(ctx, http.MethodPost, "/verify", "", body, &out); err != nil {
			return err
		}
		if tok = out.token(); tok == nil {
			return fmt.Errorf("%w: verify returned no session", ErrInvalidCallback)
		}
	case cb.Code != "":
		want, err := p.store.Get(ctx, storage.KeyOAuthState)
		if err != nil || want == "" || want != cb.State {
			return ErrInvalidState
		}
		verifier, _ := p.store.Get(ctx, storage.KeyOAuthVerifier)
		redirect, _ := p.store.Get(ctx, storage.KeyOAuthRedirect)
		_ = p.store.Delete(ctx, storage.KeyOAuthState, storage.KeyOAuthVerifier, storage.KeyOAuthRedirect)

		cfg := *p.oauth
		cfg.RedirectURL = redirect
		opts := []oauth2.AuthCodeOption{}
		if verifier != "" {
			opts = append(opts, oauth2.VerifierOption(verifier))
		}
		tok, err = cfg.Exchange(p.clientCtx(ctx), cb.Code, opts...)
		if err != nil {
			return fmt.Errorf("exchange code: %w", err)
		}
	default:
		return ErrInvalidCallback
	}
	sess, err := p.sessionFromToken(tok)
	if err != nil {
		return err
	}
	if err := p.saveToken(ctx, tok); err != nil {
		p.logger.Warn("persist token failed", "err", err)
	}
	p.feed.publish(Event{Kind: EventSignedIn, Session: sess})
	return nil
}

// GetCurrentSubject asks the account API who the current token belongs to.
func (p *OAuthProvider) GetCurrentSubject(ctx context.Context) (*model.Subject, error) {
	tok, err := p.loadToken(ctx)
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, ErrNoSession
	}
	var u apiUser
	if err := p.doJSON(ctx, http.MethodGet, "/user", tok.AccessToken, nil, &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, ErrNoSession
	}
	return u.toSubject(), nil
}

// RevokeSession signs out remotely and always forgets the local token.
func (p *OAuthProvider) RevokeSession(ctx context.Context) error {
	tok, _ := p.loadToken(ctx)
	if tok == nil {
		return nil
	}
	err := p.doJSON(ctx, http.MethodPost, "/logout", tok.AccessToken, nil, nil)
	p.forgetToken(ctx)
	p.feed.publish(Event{Kind: EventSignedOut})
	return err
}

// RefreshToken forces a refresh-token grant.
func (p *OAuthProvider) RefreshToken(ctx context.Context) (*model.Session, error) {
	tok, err := p.loadToken(ctx)
	if err != nil {
		return nil, err
	}
	if tok == nil || tok.RefreshToken == "" {
		return nil, ErrNoSession
	}
	stale := *tok
	stale.Expiry = time.Now().Add(-time.Minute)
	fresh, err := p.oauth.TokenSource(p.clientCtx(ctx), &stale).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	sess, err := p.sessionFromToken(fresh)
	if err != nil {
		return nil, err
	}
	if err := p.saveToken(ctx, fresh); err != nil {
		p.logger.Warn("persist refreshed token failed", "err", err)
	}
	p.feed.publish(Event{Kind: EventTokenRefreshed, Session: sess})
	return sess, nil
}

// SubscribeToSessionChanges registers handler until unsubscribe is called.
func (p *OAuthProvider) SubscribeToSessionChanges(handler func(Event)) func() {
	return p.feed.subscribe(handler)
}

// RequestPasswordReset asks the backend to mail a recovery link that lands
// on redirectTarget.
func (p *OAuthProvider) RequestPasswordReset(ctx context.Context, email, redirectTarget string) error {
	body := map[string]string{"email": strings.TrimSpace(email), "redirect_to": redirectTarget}
	return p.doJSON(ctx, http.MethodPost, "/recover", "", body, nil)
}

// UpdatePassword changes the password of the signed-in subject.
func (p *OAuthProvider) UpdatePassword(ctx context.Context, newPassword string) error {
	tok, err := p.loadToken(ctx)
	if err != nil {
		return err
	}
	if tok == nil {
		return ErrNoSession
	}
	var u apiUser
	if err := p.doJSON(ctx, http.MethodPut, "/user", tok.AccessToken, map[string]string{"password": newPassword}, &u); err != nil {
		return err
	}
	if sess, err := p.sessionFromToken(tok); err == nil {
		p.feed.publish(Event{Kind: EventUserUpdated, Session: sess})
	}
	return nil
}

func (p *OAuthProvider) sessionFromToken(tok *oauth2.Token) (*model.Session, error) {
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
		AvatarURL: claims.Avatar(),
		Raw:       string(raw),
	}
	if claims.IssuedAt != nil {
		sess.IssuedAt = claims.IssuedAt.Time.UTC()
	} else {
		sess.IssuedAt = time.Now().UTC()
	}
	return sess, nil
}

func (p *OAuthProvider) loadToken(ctx context.Context) (*oauth2.Token, error) {
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
	var tok oauth2.Token
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return nil, nil
	}
	p.tok = &tok
	return p.tok, nil
}

func (p *OAuthProvider) saveToken(ctx context.Context, tok *oauth2.Token) error {
	p.mu.Lock()
	p.tok = tok
	p.mu.Unlock()
	b, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return p.store.Set(ctx, storage.KeyProviderToken, string(b))
}

func (p *OAuthProvider) forgetToken(ctx context.Context) {
	p.mu.Lock()
	p.tok = nil
	p.mu.Unlock()
	if err := p.store.Delete(ctx, storage.KeyProviderToken); err != nil {
		p.logger.Warn("forget token failed", "err", err)
	}
}

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("identity api: %d %s", e.Status, e.Message)
}

func (p *OAuthProvider) doJSON(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(p.cfg.APIURL, "/")+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &apiError{Status: resp.StatusCode, Message: errorMessage(data, resp.Status)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func errorMessage(data []byte, fallback string) string {
	var m map[string]any
	if json.Unmarshal(data, &m) == nil {
		for _, k := range []string{"msg", "error_description", "message", "error"} {
			if v, ok := m[k].(string); ok && v != "" {
				return v
			}
		}
	}
	return fallback
}

func (u *apiUser) toSubject() *model.Subject {
	s := &model.Subject{ID: u.ID, Email: u.Email, EmailVerified: u.EmailConfirmedAt != nil}
	if v, ok := u.UserMetadata["full_name"].(string); ok {
		s.Name = v
	}
	if v, ok := u.UserMetadata["avatar_url"].(string); ok {
		s.AvatarURL = v
	}
	return s
}
