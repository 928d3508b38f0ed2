package handler

import (
    "context"  // provides context with cancellation for DB calls
    "errors"
    "net/http" // HTTP status codes and primitives
    "strings"  // string manipulation utilities
    "time"     // timeouts for DB calls

    "github.com/labstack/echo/v4" // Echo framework for HTTP routing
    "go.uber.org/zap"

    "github.com/iliyamo/seat-registry/internal/auth"
    "github.com/iliyamo/seat-registry/internal/config"     // app configuration
    "github.com/iliyamo/seat-registry/internal/model"
    "github.com/iliyamo/seat-registry/internal/repository" // DB repositories
    "github.com/iliyamo/seat-registry/internal/utils"      // helper functions (hashing, token issuing)
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Accounts *repository.AccountRepo
	Tokens   *repository.TokenRepo
	Log      *zap.Logger
}

func NewAuthHandler(cfg config.Config, a *repository.AccountRepo, t *repository.TokenRepo, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{Cfg: cfg, Accounts: a, Tokens: t, Log: log}
}

// ----- DTOs -----

type credentialsReq struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type authResp struct {
	Identity model.Identity `json:"identity"`
	Access   tokenPart      `json:"access"`
	Refresh  tokenPart      `json:"refresh"`
}

// bind reads and validates identity/password credentials.
func (req *credentialsReq) bind(c echo.Context) (model.Identity, error) {
	if err := c.Bind(req); err != nil {
		return "", err
	}
	if req.Password == "" {
		return "", errors.New("password required")
	}
	return model.ParseIdentity(req.Identity)
}

// Register: create the account and return tokens immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req credentialsReq
	id, err := req.bind(c)
	if err != nil {
		return badRequest(c, "identity/password required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Accounts.Create(ctx, id, req.Password, h.Cfg.BcryptCost); err != nil {
		if errors.Is(err, repository.ErrIdentityExists) {
			return writeError(c, http.StatusConflict, "identity_exists", "identity already registered")
		}
		h.Log.Error("create account", zap.String("identity", id.String()), zap.Error(err))
		return writeError(c, http.StatusInternalServerError, "internal", "create account failed")
	}
	return h.issuePair(c, ctx, id, http.StatusCreated)
}

// Login: verify and return a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req credentialsReq
	id, err := req.bind(c)
	if err != nil {
		return badRequest(c, "identity/password required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Accounts.Authenticate(ctx, id, req.Password); err != nil {
		if errors.Is(err, repository.ErrInvalidCredentials) {
			return writeError(c, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		}
		h.Log.Error("authenticate", zap.String("identity", id.String()), zap.Error(err))
		return writeError(c, http.StatusInternalServerError, "internal", "query failed")
	}
	return h.issuePair(c, ctx, id, http.StatusOK)
}

// Refresh: validate by hash, revoke old, issue new.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return writeError(c, http.StatusUnauthorized, "invalid_refresh", "invalid refresh")
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		h.Log.Warn("revoke rotated refresh token", zap.String("identity", id.String()), zap.Error(err))
	}
	return h.issuePair(c, ctx, id, http.StatusOK)
}

// RefreshAccess: return a new access token WITHOUT rotating the refresh token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
    var req refreshReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
        return badRequest(c, "refresh_token required")
    }
    hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    id, err := h.Tokens.ValidateRefresh(ctx, hash)
    if err != nil {
        return writeError(c, http.StatusUnauthorized, "invalid_refresh", "invalid refresh")
    }
    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, id, h.Cfg.AccessTTLMin)
    if err != nil {
        return writeError(c, http.StatusInternalServerError, "internal", "issue access failed")
    }
    return c.JSON(http.StatusOK, echo.Map{
        "access": tokenPart{Token: access.Token, Expires: access.Exp},
    })
}

// Logout revokes one session or all of them.  A refresh_token in the body
// revokes that token only.  Without one, a valid bearer token revokes every
// refresh token of its identity.
func (h *AuthHandler) Logout(c echo.Context) error {
    var req refreshReq
    _ = c.Bind(&req)
    refreshToken := strings.TrimSpace(req.RefreshToken)

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if refreshToken != "" {
        hash := utils.HashRefreshRaw(refreshToken)
        if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
            return writeError(c, http.StatusUnauthorized, "invalid_refresh", "invalid refresh token")
        }
        if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
            h.Log.Error("revoke refresh token", zap.Error(err))
            return writeError(c, http.StatusInternalServerError, "internal", "logout failed")
        }
        return c.NoContent(http.StatusNoContent)
    }

    // Logout is mounted outside JWTAuth, so the bearer is checked here.
    raw := strings.TrimSpace(strings.TrimPrefix(c.Request().Header.Get("Authorization"), "Bearer "))
    if raw == "" {
        return badRequest(c, "provide Authorization header or refresh_token")
    }
    id, err := utils.ParseAccessToken(h.Cfg.JWTSecret, raw)
    if err != nil {
        return writeError(c, http.StatusUnauthorized, "unauthorized", "invalid token")
    }
    if err := h.Tokens.RevokeAllForIdentity(ctx, id); err != nil {
        h.Log.Error("revoke all refresh tokens", zap.String("identity", id.String()), zap.Error(err))
        return writeError(c, http.StatusInternalServerError, "internal", "logout failed")
    }
    return c.NoContent(http.StatusNoContent)
}

// Me: simple protected endpoint.
func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := auth.IdentityFrom(c.Request().Context())
	if !ok {
		return writeError(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
	}
	return c.JSON(http.StatusOK, echo.Map{"identity": id})
}

// issuePair signs an access token, stores a fresh refresh token and writes
// both to the client.  Only the hash of the refresh token is persisted.
func (h *AuthHandler) issuePair(c echo.Context, ctx context.Context, id model.Identity, status int) error {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, id, h.Cfg.AccessTTLMin)
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "internal", "issue access failed")
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "internal", "issue refresh failed")
	}
	if err := h.Tokens.StoreRefresh(ctx, id, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		h.Log.Error("store refresh token", zap.String("identity", id.String()), zap.Error(err))
		return writeError(c, http.StatusInternalServerError, "internal", "save refresh failed")
	}
	return c.JSON(status, authResp{
		Identity: id,
		Access:   tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh:  tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	})
}
