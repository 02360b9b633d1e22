// Package identity is the boundary to the identity provider: credential
// exchange, session issuance and refresh, external (OAuth-style) sign-in
// redirects and password operations.  The session manager only consumes
// the Provider contract; OAuthProvider talks to a remote
// backend-as-a-service and LocalProvider is the self-hosted variant.
package identity

import (
	"context"
	"errors"

	"github.com/aswinmurali/servicehub/internal/model"
)

// Sentinel errors for providers; the session manager turns them into
// user-visible messages.
var (
	ErrNoSession           = errors.New("no active session")
	ErrInvalidCredentials  = errors.New("invalid login credentials")
	ErrEmailExists         = errors.New("user already registered")
	ErrExternalUnsupported = errors.New("external sign-in is not supported by this provider")
	ErrInvalidState        = errors.New("sign-in state mismatch")
	ErrInvalidCallback     = errors.New("invalid sign-in callback")
)

// EventKind classifies a session-change notification.
type EventKind string

const (
	EventSignedIn       EventKind = "signed_in"
	EventSignedOut      EventKind = "signed_out"
	EventTokenRefreshed EventKind = "token_refreshed"
	EventUserUpdated    EventKind = "user_updated"
)

// Event is delivered to session-change subscribers.  Session is nil for
// EventSignedOut.
type Event struct {
	Kind    EventKind
	Session *model.Session
}

// Callback carries the query of a redirect back from the provider.
// Code/State complete an authorization-code sign-in; Type "recovery" with
// Token completes a password-reset link.
type Callback struct {
	Code             string
	State            string
	Type             string
	Token            string
	Error            string
	ErrorDescription string
}

// CallbackTypeRecovery marks a password-reset link callback.
const CallbackTypeRecovery = "recovery"

// Provider is the identity provider contract.
type Provider interface {
	// GetCurrentSession returns the active session, or nil with a nil
	// error when there is none.
	GetCurrentSession(ctx context.Context) (*model.Session, error)
	ExchangeCredentials(ctx context.Context, email, password string) (*model.Session, error)
	// CreateAccount may leave a provider session signed in; callers that
	// must not auto-authenticate revoke it.
	CreateAccount(ctx context.Context, email, password string, meta map[string]string) (*model.Subject, error)
	// BeginExternalSignIn returns the URL the actor must be sent to.
	BeginExternalSignIn(ctx context.Context, redirectTarget string) (string, error)
	// CompleteExternalSignIn consumes the redirect callback and
	// establishes the session.
	CompleteExternalSignIn(ctx context.Context, cb Callback) error
	GetCurrentSubject(ctx context.Context) (*model.Subject, error)
	RevokeSession(ctx context.Context) error
	RefreshToken(ctx context.Context) (*model.Session, error)
	SubscribeToSessionChanges(handler func(Event)) (unsubscribe func())
	RequestPasswordReset(ctx context.Context, email, redirectTarget string) error
	UpdatePassword(ctx context.Context, newPassword string) error
}
