package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-backend/internal/config"
	"github.com/iliyamo/marketplace-backend/internal/repository"
	"github.com/iliyamo/marketplace-backend/internal/service"
	"github.com/iliyamo/marketplace-backend/internal/utils"
)

// ResetHandler implements the time-boxed password reset workflow:
// request and resend issue a 6-digit code, verify is an advisory
// read-only check, complete consumes the code. Request and resend never
// reveal whether an account exists.
type ResetHandler struct {
	Cfg    config.Config
	Users  repository.UserStore
	Mailer service.Mailer
}

func NewResetHandler(cfg config.Config, u repository.UserStore, m service.Mailer) *ResetHandler {
	return &ResetHandler{Cfg: cfg, Users: u, Mailer: m}
}

// ----- DTOs -----

type resetEmailReq struct {
	Email string `json:"email"`
}

type verifyCodeReq struct {
	Code string `json:"code"`
}

type completeResetReq struct {
	Code            string `json:"code"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// resetRequested is the uniform success payload for request/resend. The
// same shape goes back whether or not the email maps to an account.
var resetRequested = echo.Map{"success": true, "message": "if the account exists, a reset code has been sent"}

// Request: issue a fresh reset code for the account behind the email.
// Unknown addresses get the generic success response — this endpoint
// must not be usable to enumerate accounts. A previously issued,
// unconsumed code is overwritten; at most one code is pending per user.
func (h *ResetHandler) Request(c echo.Context) error {
	return h.issueCode(c, false)
}

// Resend: like Request, but rejects while an unexpired code is still
// pending. Reissuing early would let anyone who knows the email keep
// invalidating the legitimate pending code.
func (h *ResetHandler) Resend(c echo.Context) error {
	return h.issueCode(c, true)
}

func (h *ResetHandler) issueCode(c echo.Context, strict bool) error {
	var req resetEmailReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusOK, resetRequested)
		}
		c.Logger().Errorf("reset lookup failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset request failed"})
	}

	now := time.Now().UTC()
	if strict && u.ResetCode != nil && u.ResetCodeExpires != nil && u.ResetCodeExpires.After(now) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "reset code still valid"})
	}

	code, err := utils.NewResetCode()
	if err != nil {
		c.Logger().Errorf("generate reset code failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset request failed"})
	}
	expires := now.Add(time.Duration(h.Cfg.ResetTTLMin) * time.Minute)
	if err := h.Users.SetResetCode(ctx, u.ID, code, expires); err != nil {
		c.Logger().Errorf("store reset code failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset request failed"})
	}

	// Fire and forget: mail dispatch must never fail the request, and
	// the core does not retry it.
	go func(email, code string, expires time.Time) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = h.Mailer.SendResetCode(ctx, email, code, expires)
	}(u.Email, code, expires)

	return c.JSON(http.StatusOK, resetRequested)
}

// Verify: advisory read-only check that a code is valid and unexpired.
// Consumption happens at Complete; verifying mutates nothing.
func (h *ResetHandler) Verify(c echo.Context) error {
	var req verifyCodeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if !validResetCode(req.Code) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired reset code"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if _, err := h.Users.FindByResetCode(ctx, req.Code, time.Now().UTC()); err != nil {
		if err == repository.ErrInvalidResetCode {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired reset code"})
		}
		c.Logger().Errorf("verify reset code failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "verify failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// Complete: consume a still-valid code and set the new password. The
// code is always required — completion is scoped to exactly the user
// holding it. The hash update, reset-state clear, audit append and
// session invalidation commit as one transaction in the user store.
func (h *ResetHandler) Complete(c echo.Context) error {
	var req completeResetReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.NewPassword != req.ConfirmPassword {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "passwords do not match"})
	}
	if len(req.NewPassword) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	}
	if !validResetCode(req.Code) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired reset code"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.FindByResetCode(ctx, req.Code, time.Now().UTC())
	if err != nil {
		if err == repository.ErrInvalidResetCode {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired reset code"})
		}
		c.Logger().Errorf("complete reset lookup failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset failed"})
	}

	newHash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		c.Logger().Errorf("hash password failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset failed"})
	}
	oldHash := ""
	if u.PasswordHash != nil {
		oldHash = *u.PasswordHash
	}
	if err := h.Users.CompleteReset(ctx, u.ID, req.Code, oldHash, newHash); err != nil {
		if err == repository.ErrInvalidResetCode {
			// consumed or expired between lookup and commit
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired reset code"})
		}
		c.Logger().Errorf("complete reset failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// validResetCode checks the 6-digit shape before touching storage.
func validResetCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return code[0] != '0'
}
