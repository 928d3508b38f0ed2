package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http" // HTTP status codes for responses
    "strings"  // string utilities for prefix checking and trimming

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

    "github.com/iliyamo/seat-registry/internal/auth"
    "github.com/iliyamo/seat-registry/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token.
// The token's subject becomes the verified identity of the request: it is
// stored under "identity" in the echo context and attached to the request
// context with auth.WithIdentity, which is where the registry looks for
// its authorization proof.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw, ok := bearer(c.Request())
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token", "code": "unauthorized"})
            }
            id, err := utils.ParseAccessToken(secret, raw)
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token", "code": "unauthorized"})
            }
            c.Set("identity", id)
            req := c.Request()
            c.SetRequest(req.WithContext(auth.WithIdentity(req.Context(), id)))
            return next(c)
        }
    }
}

// bearer extracts the raw token of an "Authorization: Bearer <token>" header.
func bearer(r *http.Request) (string, bool) {
    h := r.Header.Get("Authorization")
    if !strings.HasPrefix(h, "Bearer ") {
        return "", false
    }
    raw := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
    return raw, raw != ""
}
