package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-backend/internal/config"
	"github.com/iliyamo/marketplace-backend/internal/middleware"
	"github.com/iliyamo/marketplace-backend/internal/model"
	"github.com/iliyamo/marketplace-backend/internal/repository"
	"github.com/iliyamo/marketplace-backend/internal/utils"
)

// AuthHandler bundles dependencies for the signup/signin/logout surface
// and the OAuth login upsert.
type AuthHandler struct {
	Cfg      config.Config
	Users    repository.UserStore
	Roles    repository.RoleStore
	Sessions repository.SessionStore
}

func NewAuthHandler(cfg config.Config, u repository.UserStore, r repository.RoleStore, s repository.SessionStore) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Roles: r, Sessions: s}
}

// ----- DTOs -----

type signupReq struct {
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	DisplayName *string `json:"display_name"`
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	Role        string  `json:"role"` // CUSTOMER | VENDOR
}

type signinReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type oauthReq struct {
	Provider  string  `json:"provider"`
	Email     string  `json:"email"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	AvatarURL *string `json:"avatar_url"`
}

type changePasswordReq struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (h *AuthHandler) sessionTTL() time.Duration {
	return time.Duration(h.Cfg.SessionTTLHours) * time.Hour
}

// Signup: create the account with its default role and initial session,
// return the user and a fresh token. Email conflicts surface as 409.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.Email == "" || req.Password == "" || req.FirstName == "" || req.LastName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "first_name/last_name/email/password required"})
	}
	if len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	}
	role, err := model.RoleFromName(strings.ToUpper(strings.TrimSpace(req.Role)))
	if err != nil || !role.SelfAssignable() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid role"})
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		c.Logger().Errorf("hash password failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	acc := repository.NewAccount{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		DisplayName:  req.DisplayName,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
	}
	u, tok, err := h.Users.CreateAccount(ctx, acc, func(u model.User) (utils.SignedToken, error) {
		claims := claimsFor(u, []model.RoleAssignment{{UserID: u.ID, RoleID: role, IsDefault: true}})
		return utils.IssueToken(h.Cfg.JWTSecret, claims, h.sessionTTL())
	})
	if err != nil {
		if err == repository.ErrEmailExists {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		c.Logger().Errorf("create account failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	return c.JSON(http.StatusCreated, authResp{
		User:  toUserPart(u),
		Token: tokenPart{Token: tok.Token, Expires: tok.Exp},
	})
}

// Signin: verify the credential, supersede any prior session and return
// a new token. Unknown email and bad password produce the identical
// response so the endpoint cannot be used to probe for accounts.
func (h *AuthHandler) Signin(c echo.Context) error {
	var req signinReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		c.Logger().Errorf("signin lookup failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}
	if !u.IsActive {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account disabled"})
	}
	// OAuth-only accounts have no local credential; verifying against a
	// missing hash must look exactly like a wrong password.
	if !u.HasPassword() || !utils.VerifyPassword(*u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	tok, err := h.issueAndStart(ctx, c, u, h.sessionTTL())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}

	return c.JSON(http.StatusOK, authResp{
		User:  toUserPart(u),
		Token: tokenPart{Token: tok.Token, Expires: tok.Exp},
	})
}

// OAuthLogin: upsert by provider-verified email and issue a fresh token
// reflecting current role state. First logins create the account with a
// null password, a verified email and the CUSTOMER default role.
func (h *AuthHandler) OAuthLogin(c echo.Context) error {
	var req oauthReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Provider == "" || req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "provider/email required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, created, err := h.Users.UpsertOAuth(ctx, repository.OAuthProfile{
		Email:     req.Email,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		AvatarURL: req.AvatarURL,
		Provider:  req.Provider,
	})
	if err != nil {
		c.Logger().Errorf("oauth upsert failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}
	if !u.IsActive {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account disabled"})
	}

	tok, err := h.issueAndStart(ctx, c, u, h.sessionTTL())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, authResp{
		User:  toUserPart(u),
		Token: tokenPart{Token: tok.Token, Expires: tok.Exp},
	})
}

// Logout: flip the user's active sessions inactive. Zero flipped rows
// means nothing was active — reported as an error so clients can detect
// a double logout.
func (h *AuthHandler) Logout(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	n, err := h.Sessions.InvalidateActive(ctx, uid)
	if err != nil {
		c.Logger().Errorf("logout failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	if n == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "no active session"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// Me: simple protected endpoint echoing the verified claims.
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"user_id": c.Get(middleware.CtxUserID),
		"email":   c.Get(middleware.CtxEmail),
		"role":    c.Get(middleware.CtxRole),
		"roles":   c.Get(middleware.CtxRoles),
	})
}

// ChangePassword: verify the current credential then replace it,
// appending the audit record in the same transaction.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.NewPassword != req.ConfirmPassword {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "passwords do not match"})
	}
	if len(req.NewPassword) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	}
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		c.Logger().Errorf("change password lookup failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "change password failed"})
	}
	if !u.HasPassword() || !utils.VerifyPassword(*u.PasswordHash, req.CurrentPassword) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	newHash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		c.Logger().Errorf("hash password failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "change password failed"})
	}
	if err := h.Users.ChangePassword(ctx, uid, *u.PasswordHash, newHash); err != nil {
		c.Logger().Errorf("change password failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "change password failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// issueAndStart loads the user's role snapshot, signs a token embedding
// it and registers the token as the user's single live session. The
// invalidate-then-insert pair commits atomically in the session store.
func (h *AuthHandler) issueAndStart(ctx context.Context, c echo.Context, u model.User, ttl time.Duration) (utils.SignedToken, error) {
	assigns, err := h.Roles.ListByUser(ctx, u.ID)
	if err != nil {
		c.Logger().Errorf("load roles failed: %v", err)
		return utils.SignedToken{}, err
	}
	tok, err := utils.IssueToken(h.Cfg.JWTSecret, claimsFor(u, assigns), ttl)
	if err != nil {
		c.Logger().Errorf("issue token failed: %v", err)
		return utils.SignedToken{}, err
	}
	if err := h.Sessions.Start(ctx, u.ID, tok.Hash, tok.Exp); err != nil {
		c.Logger().Errorf("start session failed: %v", err)
		return utils.SignedToken{}, err
	}
	return tok, nil
}
