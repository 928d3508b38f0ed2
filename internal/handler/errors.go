package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/seat-registry/internal/registry"
    "github.com/iliyamo/seat-registry/internal/store"
)

// apiError is the JSON body of every failed request.
type apiError struct {
    Error string `json:"error"`
    Code  string `json:"code"`
}

func writeError(c echo.Context, status int, code, msg string) error {
    return c.JSON(status, apiError{Error: msg, Code: code})
}

func badRequest(c echo.Context, msg string) error {
    return writeError(c, http.StatusBadRequest, "invalid_request", msg)
}

// registryErrors maps registry sentinels to an HTTP status and error code.
// The first match wins.
var registryErrors = []struct {
    err    error
    status int
    code   string
}{
    {registry.ErrAlreadyInitialized, http.StatusConflict, "already_initialized"},
    {registry.ErrSeatAlreadyOwned, http.StatusConflict, "seat_already_owned"},
    {registry.ErrReceiverAlreadyHasSeat, http.StatusConflict, "receiver_already_has_seat"},
    {store.ErrConflict, http.StatusConflict, "concurrent_update"},
    {registry.ErrSeatNotFound, http.StatusNotFound, "seat_not_found"},
    {registry.ErrTokenNotFound, http.StatusNotFound, "token_not_found"},
    {registry.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
    {registry.ErrNotOwner, http.StatusForbidden, "not_owner"},
    {registry.ErrNotInitialized, http.StatusPreconditionFailed, "not_initialized"},
    {registry.ErrInvalidIdentity, http.StatusBadRequest, "invalid_identity"},
    {registry.ErrInvalidSymbol, http.StatusBadRequest, "invalid_symbol"},
    {registry.ErrInvalidName, http.StatusBadRequest, "invalid_name"},
}

// registryError writes the response for an error returned by the registry.
// Unknown errors are logged and reported as 500 without their detail.
func registryError(c echo.Context, log *zap.Logger, err error) error {
    for _, m := range registryErrors {
        if errors.Is(err, m.err) {
            return writeError(c, m.status, m.code, m.err.Error())
        }
    }
    log.Error("registry call failed",
        zap.String("method", c.Request().Method),
        zap.String("path", c.Path()),
        zap.Error(err))
    return writeError(c, http.StatusInternalServerError, "internal", "internal error")
}
