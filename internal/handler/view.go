package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/aswinmurali/servicehub/internal/dispatch"
    "github.com/aswinmurali/servicehub/internal/model"
    "github.com/aswinmurali/servicehub/internal/nav"
    "github.com/aswinmurali/servicehub/internal/session"
)

// ViewHandler renders the view-models of the client shell.  Every rendered
// view drains the pending notices.
type ViewHandler struct {
    Sessions Sessions
    Notices  *session.Notices
}

func NewViewHandler(s Sessions, notices *session.Notices) *ViewHandler {
    if notices == nil {
        notices = &session.Notices{}
    }
    return &ViewHandler{Sessions: s, Notices: notices}
}

type profileView struct {
    SubjectID     string         `json:"subject_id"`
    Role          model.Role     `json:"role"`
    Status        string         `json:"status"`
    EmailVerified bool           `json:"email_verified"`
    FullName      string         `json:"full_name,omitempty"`
    Phone         string         `json:"phone,omitempty"`
    Address       string         `json:"address,omitempty"`
    AvatarURL     string         `json:"avatar_url,omitempty"`
    Details       map[string]any `json:"details,omitempty"`
}

func (h *ViewHandler) render(c echo.Context, code int, view string, body echo.Map) error {
    if body == nil {
        body = echo.Map{}
    }
    body["view"] = view
    notices := h.Notices.Drain()
    if notices == nil {
        notices = []session.Notice{}
    }
    body["notices"] = notices
    return c.JSON(code, body)
}

// Home is the public landing view.
func (h *ViewHandler) Home(c echo.Context) error {
    return h.render(c, http.StatusOK, "home", echo.Map{"authenticated": h.Sessions.State().Authenticated()})
}

// Page renders a static view by name (sign-in, registration, reset).
func (h *ViewHandler) Page(name string) echo.HandlerFunc {
    return func(c echo.Context) error {
        return h.render(c, http.StatusOK, name, nil)
    }
}

// Dashboard sends the actor to their role dashboard.
func (h *ViewHandler) Dashboard(c echo.Context) error {
    r := nav.NewRedirector(c)
    out := dispatch.Dashboard(c.Request().Context(), h.Sessions, r)
    switch out.Kind {
    case dispatch.Pending:
        c.Response().Header().Set("Refresh", "1")
        return c.JSON(http.StatusAccepted, echo.Map{"view": "loading", "reason": "session_pending"})
    case dispatch.AccessDenied:
        return h.render(c, http.StatusUnauthorized, "access_denied", echo.Map{"error": "Please sign in to view your dashboard"})
    case dispatch.RoleNotAssigned:
        return h.render(c, http.StatusOK, "role_not_assigned", echo.Map{"message": "Your account has no role yet. Please contact support."})
    }
    if _, err := r.Flush(); err != nil {
        return err
    }
    return nil
}

// RoleDashboard renders the home view of role.  The route guard has
// already admitted the actor.
func (h *ViewHandler) RoleDashboard(role model.Role) echo.HandlerFunc {
    return func(c echo.Context) error {
        body := echo.Map{"role": role}
        if s := h.Sessions.State().Session; s.Authenticated() {
            body["email"] = s.Email
            body["name"] = s.Name
        }
        return h.render(c, http.StatusOK, "dashboard", body)
    }
}

// Profile renders the complete profile of the signed-in actor.
func (h *ViewHandler) Profile(c echo.Context) error {
    p, ok := h.Sessions.GetCompleteProfile(c.Request().Context())
    if !ok {
        return h.render(c, http.StatusOK, "profile", echo.Map{"error": "Profile could not be loaded"})
    }
    v := profileView{
        SubjectID:     p.Record.SubjectID,
        Role:          p.Role,
        Status:        p.Record.Status,
        EmailVerified: p.Record.EmailVerified,
        FullName:      p.Record.FullName,
        AvatarURL:     p.Record.AvatarURL,
        Details:       p.Details,
    }
    if p.Profile != nil {
        if p.Profile.FullName != "" {
            v.FullName = p.Profile.FullName
        }
        if p.Profile.AvatarURL != "" {
            v.AvatarURL = p.Profile.AvatarURL
        }
        v.Phone = p.Profile.Phone
        v.Address = p.Profile.Address
    }
    return h.render(c, http.StatusOK, "profile", echo.Map{"profile": v})
}
