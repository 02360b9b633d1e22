package model

import "strings"

// Role is a capability tag drawn from a fixed enumeration.  Values that
// come back from the role store are normalised through ParseRole before
// anything else in the application sees them.
type Role string

const (
    RoleCustomer        Role = "customer"
    RoleServiceProvider Role = "service_provider"
    RoleSupervisor      Role = "supervisor"
    RoleDriver          Role = "driver"
    RoleAdmin           Role = "admin"
)

// DefaultRole is the unprivileged role assigned to self-service sign-ups
// and to every external sign-in.
const DefaultRole = RoleCustomer

// Paths used by guards and the dispatcher.
const (
    HomePath      = "/"
    SignInPath    = "/login"
    RegisterPath  = "/register"
    ForgotPath    = "/forgot-password"
    DashboardPath = "/dashboard"
    ProfilePath   = "/profile"
    ExternalPath  = "/auth/external"
    CallbackPath  = "/auth/callback"
)

// dashboardPaths maps every role to its home view.  Adding a role without
// adding a path here makes DashboardFor fall back to the public home.
var dashboardPaths = map[Role]string{
    RoleCustomer:        "/dashboard/customer",
    RoleServiceProvider: "/dashboard/provider",
    RoleDriver:          "/dashboard/driver",
    RoleSupervisor:      "/dashboard/supervisor",
    RoleAdmin:           "/dashboard/admin",
}

// Roles lists the enumeration in a stable order.
func Roles() []Role {
    return []Role{RoleCustomer, RoleServiceProvider, RoleSupervisor, RoleDriver, RoleAdmin}
}

// ParseRole normalises a raw role string.  It accepts any case and the
// legacy "provider" alias; anything else is rejected.
func ParseRole(s string) (Role, bool) {
    r := Role(strings.ToLower(strings.TrimSpace(s)))
    if r == "provider" {
        r = RoleServiceProvider
    }
    if _, ok := dashboardPaths[r]; !ok {
        return "", false
    }
    return r, true
}

// Valid reports whether r is a member of the enumeration.
func (r Role) Valid() bool {
    _, ok := dashboardPaths[r]
    return ok
}

// SelfService reports whether r may be requested by the actor themself
// during registration or a first sign-in.  Supervisors and admins are
// assigned by an administrator.
func (r Role) SelfService() bool {
    switch r {
    case RoleCustomer, RoleServiceProvider, RoleDriver:
        return true
    }
    return false
}

// DashboardFor resolves the home view of a role.  Unknown or empty roles
// resolve to the public home, never to the generic /dashboard dispatcher.
func DashboardFor(r Role) string {
    if p, ok := dashboardPaths[r]; ok {
        return p
    }
    return HomePath
}

// IsRoleDashboard reports whether path is one of the concrete role
// dashboards (the generic /dashboard is not).
func IsRoleDashboard(path string) bool {
    for _, p := range dashboardPaths {
        if p == path {
            return true
        }
    }
    return false
}

// RoleSet is the capability set a guard requires.  An empty set means any
// authenticated actor is allowed.
type RoleSet map[Role]struct{}

// NewRoleSet builds a RoleSet from the given roles, dropping invalid ones.
func NewRoleSet(roles ...Role) RoleSet {
    s := make(RoleSet, len(roles))
    for _, r := range roles {
        if r.Valid() {
            s[r] = struct{}{}
        }
    }
    return s
}

// Has reports whether r is in the set.
func (s RoleSet) Has(r Role) bool {
    _, ok := s[r]
    return ok
}

// Empty reports whether the set requires no particular role.
func (s RoleSet) Empty() bool { return len(s) == 0 }
