package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-backend/internal/config"
	"github.com/iliyamo/marketplace-backend/internal/middleware"
	"github.com/iliyamo/marketplace-backend/internal/model"
	"github.com/iliyamo/marketplace-backend/internal/repository"
	"github.com/iliyamo/marketplace-backend/internal/utils"
)

// RoleHandler serves the public role catalog and the per-user role
// surface: listing assignments and switching the default role.
type RoleHandler struct {
	Cfg      config.Config
	Users    repository.UserStore
	Roles    repository.RoleStore
	Sessions repository.SessionStore
}

func NewRoleHandler(cfg config.Config, u repository.UserStore, r repository.RoleStore, s repository.SessionStore) *RoleHandler {
	return &RoleHandler{Cfg: cfg, Users: u, Roles: r, Sessions: s}
}

// ----- DTOs -----

type switchRoleReq struct {
	RoleID uint8 `json:"role_id"`
}

type rolePart struct {
	ID   uint8  `json:"id"`
	Name string `json:"name"`
}

type assignmentPart struct {
	ID        uint8  `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

type switchRoleResp struct {
	Token   tokenPart `json:"token"`
	Message string    `json:"message"`
}

// Catalog: public list of the role catalog. Sits behind the response
// cache — the catalog changes by migration only.
func (h *RoleHandler) Catalog(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	roles, err := h.Roles.Catalog(ctx)
	if err != nil {
		c.Logger().Errorf("load role catalog failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load roles failed"})
	}
	out := make([]rolePart, 0, len(roles))
	for _, r := range roles {
		out = append(out, rolePart{ID: uint8(r), Name: r.Name()})
	}
	return c.JSON(http.StatusOK, echo.Map{"roles": out})
}

// MyRoles: list the authenticated user's role assignments, default first.
func (h *RoleHandler) MyRoles(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	assigns, err := h.Roles.ListByUser(ctx, uid)
	if err != nil {
		c.Logger().Errorf("load roles failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load roles failed"})
	}
	out := make([]assignmentPart, 0, len(assigns))
	for _, a := range assigns {
		out = append(out, assignmentPart{ID: uint8(a.RoleID), Name: a.RoleID.Name(), IsDefault: a.IsDefault})
	}
	return c.JSON(http.StatusOK, echo.Map{"roles": out})
}

// Switch: move the default flag to the requested role and reissue a
// token carrying the refreshed snapshot. The clear-and-set runs as one
// transaction in the role store; the old token is superseded in the
// session registry because its embedded roles are now stale.
func (h *RoleHandler) Switch(c echo.Context) error {
	var req switchRoleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	role, err := model.RoleFromID(req.RoleID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid role"})
	}
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	message := "default role switched to " + role.Name()
	switch err := h.Roles.SwitchDefault(ctx, uid, role); err {
	case nil:
		// fall through to reissue from the refreshed snapshot
	case repository.ErrAlreadyDefault:
		// idempotent: no assignment rows were touched
		message = role.Name() + " is already the default role"
	case repository.ErrRoleNotAssociated:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "role not associated with user"})
	default:
		c.Logger().Errorf("role switch failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "role switch failed"})
	}

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		c.Logger().Errorf("role switch reload failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "role switch failed"})
	}
	assigns, err := h.Roles.ListByUser(ctx, uid)
	if err != nil {
		c.Logger().Errorf("role switch reload failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "role switch failed"})
	}

	ttl := time.Duration(h.Cfg.RoleTTLDays) * 24 * time.Hour
	tok, err := utils.IssueToken(h.Cfg.JWTSecret, claimsFor(u, assigns), ttl)
	if err != nil {
		c.Logger().Errorf("issue token failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "role switch failed"})
	}
	if err := h.Sessions.Start(ctx, uid, tok.Hash, tok.Exp); err != nil {
		c.Logger().Errorf("start session failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "role switch failed"})
	}

	return c.JSON(http.StatusOK, switchRoleResp{
		Token:   tokenPart{Token: tok.Token, Expires: tok.Exp},
		Message: message,
	})
}
