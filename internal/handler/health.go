package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"
)

// Health is a liveness endpoint; it does not touch the session.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}
