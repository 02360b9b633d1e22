package middleware

import (
    "github.com/labstack/echo/v4"

    "github.com/aswinmurali/servicehub/internal/session"
)

// ContextSubject is the echo context key holding the signed-in subject.
const ContextSubject = "subject_id"

// SessionSubject exposes the current subject to downstream middleware and
// handlers under ContextSubject.
func SessionSubject(st func() session.State) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if s := st(); s.Authenticated() {
                c.Set(ContextSubject, s.Session.SubjectID)
            }
            return next(c)
        }
    }
}

// subjectID returns the subject stored by SessionSubject or "anon".
func subjectID(c echo.Context) string {
    if s, ok := c.Get(ContextSubject).(string); ok && s != "" {
        return s
    }
    return "anon"
}
