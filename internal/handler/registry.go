package handler

import (
    "context"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/seat-registry/internal/model"
    "github.com/iliyamo/seat-registry/internal/registry"
)

// callTimeout bounds every registry call made on behalf of a request.
const callTimeout = 5 * time.Second

// RegistryHandler exposes the registry singleton and the seat ledger over
// HTTP.  Authorization proofs reach the registry through the request
// context, where JWTAuth puts them.
type RegistryHandler struct {
    Registry *registry.Registry
    Log      *zap.Logger
}

func NewRegistryHandler(r *registry.Registry, log *zap.Logger) *RegistryHandler {
    if log == nil {
        log = zap.NewNop()
    }
    return &RegistryHandler{Registry: r, Log: log}
}

type initializeReq struct {
    Name   string `json:"name"`
    Symbol string `json:"symbol"`
    Admin  string `json:"admin"`
}

// Initialize handles POST /v1/registry/initialize.
func (h *RegistryHandler) Initialize(c echo.Context) error {
    var req initializeReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    admin, err := model.ParseIdentity(req.Admin)
    if err != nil {
        return registryError(c, h.Log, err)
    }
    md := model.Metadata{Name: req.Name, Symbol: strings.TrimSpace(req.Symbol), Admin: admin}

    ctx, cancel := context.WithTimeout(c.Request().Context(), callTimeout)
    defer cancel()

    if err := h.Registry.Initialize(ctx, md.Name, md.Symbol, md.Admin); err != nil {
        return registryError(c, h.Log, err)
    }
    return c.JSON(http.StatusCreated, md)
}

// Metadata handles GET /v1/registry.
func (h *RegistryHandler) Metadata(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), callTimeout)
    defer cancel()

    md, err := h.Registry.Metadata(ctx)
    if err != nil {
        return registryError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, md)
}
