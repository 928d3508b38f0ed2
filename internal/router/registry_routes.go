package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-registry/internal/handler"
	"github.com/iliyamo/seat-registry/internal/middleware"
)

// RegisterRegistry mounts the registry and seat endpoints.  Mint and
// transfer run behind JWTAuth, which turns the bearer token into the
// authorization proof the registry checks; JWTAuth runs before the limiter
// so identity-based rate keys see the caller.  Only the metadata read goes
// through cache.
func RegisterRegistry(e *echo.Echo, h *handler.RegistryHandler, jwtSecret string, limit, cache echo.MiddlewareFunc) {
	pub := e.Group("/v1", limit)
	pub.POST("/registry/initialize", h.Initialize)
	pub.GET("/registry", h.Metadata, cache)
	pub.GET("/seats/:number", h.OwnerOf)

	priv := e.Group("/v1", middleware.JWTAuth(jwtSecret), limit)
	priv.POST("/seats", h.Mint)
	priv.POST("/seats/:number/transfer", h.Transfer)
}
