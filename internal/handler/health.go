package handler // declare the package name; contains HTTP handlers

import (
    "net/http"

    "github.com/labstack/echo/v4"
)

// Health reports liveness to load balancers.  It never touches the store,
// so a slow backend does not take the instance out of rotation.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}
