// Package dispatch holds the one-shot navigations of the client: sending
// an actor to their role's dashboard and finishing an external sign-in.
package dispatch

import (
	"context"

	"github.com/aswinmurali/servicehub/internal/model"
	"github.com/aswinmurali/servicehub/internal/nav"
	"github.com/aswinmurali/servicehub/internal/session"
)

// Kind is the result of a dashboard dispatch.
type Kind int

const (
	// Pending means the session is still initializing.
	Pending Kind = iota
	AccessDenied
	RoleNotAssigned
	Navigated
)

func (k Kind) String() string {
	switch k {
	case AccessDenied:
		return "access_denied"
	case RoleNotAssigned:
		return "role_not_assigned"
	case Navigated:
		return "navigated"
	}
	return "pending"
}

// Outcome is what Dashboard did.  Path is set when Kind is Navigated.
type Outcome struct {
	Kind Kind
	Path string
}

// RoleSource is the view of the session manager Dashboard needs.
type RoleSource interface {
	State() session.State
	GetRole(ctx context.Context) (model.Role, bool)
}

// Dashboard sends the signed-in actor to their role's dashboard with a
// single navigation.  It never redirects an anonymous actor and never
// navigates back to the generic dashboard path.
func Dashboard(ctx context.Context, src RoleSource, n nav.Navigator) Outcome {
	st := src.State()
	if !st.Initialized {
		return Outcome{Kind: Pending}
	}
	if !st.Authenticated() {
		return Outcome{Kind: AccessDenied}
	}
	role, ok := src.GetRole(ctx)
	if !ok {
		return Outcome{Kind: RoleNotAssigned}
	}
	path := model.DashboardFor(role)
	if path == model.DashboardPath {
		path = model.HomePath
	}
	n.Navigate(path, nav.Options{Replace: true})
	return Outcome{Kind: Navigated, Path: path}
}
