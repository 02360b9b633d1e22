// Package router registers the client shell's routes and the guard that
// fronts each of them.
package router

import (
    "log/slog"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/aswinmurali/servicehub/internal/config"
    "github.com/aswinmurali/servicehub/internal/guard"
    "github.com/aswinmurali/servicehub/internal/handler"
    "github.com/aswinmurali/servicehub/internal/middleware"
    "github.com/aswinmurali/servicehub/internal/model"
    "github.com/aswinmurali/servicehub/internal/rolecache"
    "github.com/aswinmurali/servicehub/internal/session"
    "github.com/aswinmurali/servicehub/internal/storage"
)

// Deps are what the routes need.  Redis may be nil, which disables rate
// limiting.
type Deps struct {
    Sessions  *session.Manager
    Notices   *session.Notices
    Local     *storage.Local
    Cache     *rolecache.Cache
    Guard     config.GuardConfig
    RateLimit config.RateLimitConfig
    Redis     *redis.Client
    Logger    *slog.Logger
}

// Register mounts every route on e.
func Register(e *echo.Echo, d Deps) {
    if d.Logger == nil {
        d.Logger = slog.Default()
    }
    auth := handler.NewAuthHandler(d.Sessions, d.Notices, d.Logger)
    views := handler.NewViewHandler(d.Sessions, d.Notices)

    // One guard per route: each keeps its own redirect memory.
    publicOnly := func() *guard.PublicOnly {
        return guard.NewPublicOnly(d.Sessions, d.Local, d.Cache, d.Guard.RedirectDebounce)
    }
    protected := func(roles ...model.Role) echo.MiddlewareFunc {
        g := guard.NewProtected(d.Sessions, d.Cache, model.NewRoleSet(roles...), d.Guard.RoleTimeout, d.Logger)
        return middleware.RequireRole(g)
    }

    login, register, forgot, external := publicOnly(), publicOnly(), publicOnly(), publicOnly()

    e.Use(middleware.SessionSubject(d.Sessions.State))
    e.Use(middleware.TrackNavigation(login, register, forgot, external))

    e.GET("/healthz", handler.Health)
    e.GET(model.HomePath, views.Home)

    // Views only an anonymous actor should see.
    e.GET(model.SignInPath, views.Page("login"), middleware.PublicOnly(login))
    e.GET(model.RegisterPath, views.Page("register"), middleware.PublicOnly(register))
    e.GET(model.ForgotPath, views.Page("forgot_password"), middleware.PublicOnly(forgot))

    // Credential endpoints.
    limit := middleware.RateLimit(d.RateLimit, d.Redis, d.Logger)
    g := e.Group("/auth")
    g.POST("/login", auth.Login, limit)
    g.POST("/register", auth.Register, limit)
    g.POST("/forgot-password", auth.ForgotPassword, limit)
    e.GET(model.ExternalPath, auth.External, middleware.PublicOnly(external))
    e.GET(model.CallbackPath, auth.Callback)
    g.POST("/logout", auth.Logout)
    g.POST("/password", auth.UpdatePassword, protected())
    g.POST("/refresh", auth.Refresh, protected())

    // Dashboards.
    e.GET(model.DashboardPath, views.Dashboard)
    for _, r := range model.Roles() {
        e.GET(model.DashboardFor(r), views.RoleDashboard(r), protected(r))
    }
    e.GET(model.ProfilePath, views.Profile, protected())
}
