package handler

import (
    "context"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/seat-registry/internal/model"
)

type mintReq struct {
    To         string  `json:"to"`
    SeatNumber *uint32 `json:"seat_number"`
}

type transferReq struct {
    From string `json:"from"`
    To   string `json:"to"`
}

// seatResp describes one ownership record.
type seatResp struct {
    SeatNumber model.SeatNumber `json:"seat_number"`
    Owner      model.Identity   `json:"owner"`
}

// Mint handles POST /v1/seats.  The bearer identity is the proof checked
// against the registry admin.
func (h *RegistryHandler) Mint(c echo.Context) error {
    var req mintReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    if req.SeatNumber == nil {
        return badRequest(c, "seat_number required")
    }
    // The registry validates to after its authorization check.
    to := model.Identity(strings.TrimSpace(req.To))
    seat := model.SeatNumber(*req.SeatNumber)

    ctx, cancel := context.WithTimeout(c.Request().Context(), callTimeout)
    defer cancel()

    if err := h.Registry.Mint(ctx, to, seat); err != nil {
        return registryError(c, h.Log, err)
    }
    return c.JSON(http.StatusCreated, seatResp{SeatNumber: seat, Owner: to})
}

// OwnerOf handles GET /v1/seats/:number.
func (h *RegistryHandler) OwnerOf(c echo.Context) error {
    seat, err := model.ParseSeatNumber(c.Param("number"))
    if err != nil {
        return badRequest(c, "invalid seat number")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), callTimeout)
    defer cancel()

    owner, err := h.Registry.OwnerOf(ctx, seat)
    if err != nil {
        return registryError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, seatResp{SeatNumber: seat, Owner: owner})
}

// Transfer handles POST /v1/seats/:number/transfer.  The bearer identity
// must be the one named in "from".
func (h *RegistryHandler) Transfer(c echo.Context) error {
    seat, err := model.ParseSeatNumber(c.Param("number"))
    if err != nil {
        return badRequest(c, "invalid seat number")
    }
    var req transferReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    from := model.Identity(strings.TrimSpace(req.From))
    to := model.Identity(strings.TrimSpace(req.To))

    ctx, cancel := context.WithTimeout(c.Request().Context(), callTimeout)
    defer cancel()

    if err := h.Registry.Transfer(ctx, from, to, seat); err != nil {
        return registryError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, seatResp{SeatNumber: seat, Owner: to})
}
