package middleware // middleware provides shared request processing for handlers

import (
    "net/http"
    "net/url"

    "github.com/labstack/echo/v4"

    "github.com/aswinmurali/servicehub/internal/guard"
    "github.com/aswinmurali/servicehub/internal/model"
    "github.com/aswinmurali/servicehub/internal/nav"
)

// RequireRole wraps a route with an authenticated guard.  The guard's
// capability set decides which roles may render the view; an empty set
// admits any signed-in actor.  Role mismatches are answered exactly like
// missing sessions, with a redirect to sign-in.
func RequireRole(g *guard.Protected) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            d := g.Evaluate(c.Request().Context(), c.Request().URL.Path)
            if d.Kind == guard.Render {
                return next(c)
            }
            return WriteDecision(c, d)
        }
    }
}

// PublicOnly wraps sign-in and registration views so an authenticated
// actor is sent to their dashboard instead.
func PublicOnly(g *guard.PublicOnly) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            d := g.Evaluate(c.Request().Context(), c.Request().URL.Path)
            if d.Kind == guard.Render {
                return next(c)
            }
            return WriteDecision(c, d)
        }
    }
}

// TrackNavigation reports every GET the shell serves to the public-only
// guards, so their once-per-location redirect re-arms when the actor
// moves on.
func TrackNavigation(guards ...*guard.PublicOnly) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if c.Request().Method == http.MethodGet {
                for _, g := range guards {
                    g.Observe(c.Request().URL.Path)
                }
            }
            return next(c)
        }
    }
}

// WriteDecision renders a non-Render decision: a redirect, or the loading
// placeholder with a Refresh hint so the client polls again.
func WriteDecision(c echo.Context, d guard.Decision) error {
    switch d.Kind {
    case guard.Redirect:
        target := d.Target
        if target == model.SignInPath && d.From != "" && d.From != model.SignInPath {
            target += "?next=" + url.QueryEscape(d.From)
        }
        return nav.Redirect(c, target, nav.Options{Replace: d.Replace})
    case guard.Loading:
        c.Response().Header().Set("Refresh", "1")
        return c.JSON(http.StatusAccepted, echo.Map{"view": "loading", "reason": d.Reason})
    }
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "unexpected guard decision"})
}
