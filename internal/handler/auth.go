package handler

import (
    "log/slog"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/aswinmurali/servicehub/internal/dispatch"
    "github.com/aswinmurali/servicehub/internal/identity"
    "github.com/aswinmurali/servicehub/internal/model"
    "github.com/aswinmurali/servicehub/internal/nav"
    "github.com/aswinmurali/servicehub/internal/session"
)

// AuthHandler bundles the session endpoints.
type AuthHandler struct {
    Sessions Sessions
    Notices  *session.Notices
    Logger   *slog.Logger
}

func NewAuthHandler(s Sessions, notices *session.Notices, logger *slog.Logger) *AuthHandler {
    if logger == nil {
        logger = slog.Default()
    }
    if notices == nil {
        notices = &session.Notices{}
    }
    return &AuthHandler{Sessions: s, Notices: notices, Logger: logger.With("component", "handler.auth")}
}

// ----- DTOs -----

type emailReq struct {
    Email string `json:"email" form:"email"`
}

type passwordReq struct {
    Password string `json:"password" form:"password"`
}

// ----- Handlers -----

// Login signs the actor in and returns the role and dashboard to go to.
func (h *AuthHandler) Login(c echo.Context) error {
    var req model.Credentials
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    res := h.Sessions.Login(c.Request().Context(), req)
    if !res.Success {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": res.Error})
    }
    return c.JSON(http.StatusOK, res)
}

// Register creates an account.  The actor stays signed out.
func (h *AuthHandler) Register(c echo.Context) error {
    var req model.RegisterData
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    res := h.Sessions.Register(c.Request().Context(), req)
    if !res.Success {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": res.Error})
    }
    return c.JSON(http.StatusCreated, res)
}

// ForgotPassword sends a reset link to the given address.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
    var req emailReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    res := h.Sessions.RequestPasswordReset(c.Request().Context(), req.Email)
    if !res.Success {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": res.Error})
    }
    return c.JSON(http.StatusOK, res)
}

// External starts a redirect-based sign-in.
func (h *AuthHandler) External(c echo.Context) error {
    out, err := h.Sessions.SignInWithExternalProvider(c.Request().Context())
    if err != nil {
        // the manager has already queued the error notice
        return nav.Redirect(c, model.SignInPath, nav.Options{Replace: true})
    }
    return c.Redirect(http.StatusFound, out.RedirectURL)
}

// Callback completes a redirect-based sign-in and navigates exactly once.
func (h *AuthHandler) Callback(c echo.Context) error {
    q := c.QueryParams()
    cb := identity.Callback{
        Code:             q.Get("code"),
        State:            q.Get("state"),
        Type:             q.Get("type"),
        Token:            q.Get("token"),
        Error:            q.Get("error"),
        ErrorDescription: q.Get("error_description"),
    }
    r := nav.NewRedirector(c)
    out := dispatch.CompleteExternalSignIn(c.Request().Context(), h.Sessions, cb, h.Notices, r, h.Logger)
    h.Logger.Info("external sign-in completed", "branch", out.Branch, "path", out.Path)
    if ok, err := r.Flush(); !ok || err != nil {
        return nav.Redirect(c, model.SignInPath, nav.Options{Replace: true})
    }
    return nil
}

// Logout ends the session and hard-navigates to sign-in.
func (h *AuthHandler) Logout(c echo.Context) error {
    r := nav.NewRedirector(c)
    h.Sessions.Logout(c.Request().Context(), r)
    if ok, err := r.Flush(); !ok || err != nil {
        return nav.Redirect(c, model.SignInPath, nav.Options{Replace: true, Hard: true})
    }
    return nil
}

// UpdatePassword changes the signed-in actor's password.
func (h *AuthHandler) UpdatePassword(c echo.Context) error {
    var req passwordReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    res := h.Sessions.UpdatePassword(c.Request().Context(), req.Password)
    if !res.Success {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": res.Error})
    }
    return c.JSON(http.StatusOK, res)
}

// Refresh renews the provider token.
func (h *AuthHandler) Refresh(c echo.Context) error {
    if !h.Sessions.RefreshSession(c.Request().Context()) {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session could not be refreshed"})
    }
    return c.JSON(http.StatusOK, echo.Map{"refreshed": true})
}
