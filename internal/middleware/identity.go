package middleware

// identity.go defines helpers shared across middleware files.

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/seat-registry/internal/auth"
)

// currentIdentity returns the identity verified by JWTAuth, or "anon" when
// the request is unauthenticated.
func currentIdentity(c echo.Context) string {
    if id, ok := auth.IdentityFrom(c.Request().Context()); ok {
        return id.String()
    }
    return "anon"
}
