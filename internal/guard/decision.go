// Package guard decides, per navigation, whether a view renders, the
// actor is redirected, or a loading placeholder is shown.
package guard

import (
	"context"

	"github.com/aswinmurali/servicehub/internal/model"
	"github.com/aswinmurali/servicehub/internal/session"
)

// Kind is the outcome of a guard evaluation.
type Kind int

const (
	Loading Kind = iota
	Render
	Redirect
)

func (k Kind) String() string {
	switch k {
	case Render:
		return "render"
	case Redirect:
		return "redirect"
	}
	return "loading"
}

// Decision is what a guard wants the shell to do with a navigation.
// From is the location the actor attempted, carried on redirects to
// sign-in so it can be resumed after login.
type Decision struct {
	Kind    Kind
	Target  string
	From    string
	Replace bool
	Reason  string
}

// Reasons.
const (
	ReasonInitializing    = "initializing"
	ReasonUnauthenticated = "unauthenticated"
	ReasonNoRoleCheck     = "no_role_check"
	ReasonCached          = "cached"
	ReasonAuthorized      = "authorized"
	ReasonRoleMismatch    = "role_mismatch"
	ReasonCachedFallback  = "cached_fallback"
	ReasonAwaitingRole    = "awaiting_role"
	ReasonSuperseded      = "superseded"
	ReasonPublic          = "public"
	ReasonLoopSuppressed  = "loop_suppressed"
	ReasonDebounced       = "debounced"
	ReasonAwaitingTarget  = "awaiting_target"
	ReasonSignedIn        = "signed_in"
)

// Session is the view of the session manager the guards need.
type Session interface {
	State() session.State
	GetRole(ctx context.Context) (model.Role, bool)
	HasSessionEvidence(ctx context.Context) bool
}

func loading(reason string) Decision { return Decision{Kind: Loading, Reason: reason} }

func render(reason string) Decision { return Decision{Kind: Render, Reason: reason} }

func toSignIn(from, reason string) Decision {
	return Decision{Kind: Redirect, Target: model.SignInPath, From: from, Reason: reason}
}
