package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/marketplace-backend/internal/config"
	"github.com/iliyamo/marketplace-backend/internal/middleware"
	"github.com/iliyamo/marketplace-backend/internal/model"
	"github.com/iliyamo/marketplace-backend/internal/utils"
)

const testSecret = "test-secret"

type testEnv struct {
	e      *echo.Echo
	store  *fakeStore
	mailer *fakeMailer
	auth   *AuthHandler
	roles  *RoleHandler
	reset  *ResetHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Config{
		JWTSecret:       testSecret,
		SessionTTLHours: 24,
		RoleTTLDays:     5,
		BcryptCost:      4, // floor cost keeps the suite fast
		ResetTTLMin:     15,
	}
	store := newFakeStore()
	mailer := &fakeMailer{}
	return &testEnv{
		e:      echo.New(),
		store:  store,
		mailer: mailer,
		auth:   NewAuthHandler(cfg, store, store, store),
		roles:  NewRoleHandler(cfg, store, store, store),
		reset:  NewResetHandler(cfg, store, mailer),
	}
}

// call invokes a handler with a JSON body. setup can seed context values
// that middleware would normally provide.
func (env *testEnv) call(t *testing.T, h echo.HandlerFunc, body string, setup func(echo.Context)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := env.e.NewContext(req, rec)
	if setup != nil {
		setup(c)
	}
	require.NoError(t, h(c))
	return rec
}

// asAuthed seeds the context the way JWTAuth would for the given token.
func asAuthed(claims utils.Claims, tokenHash string) func(echo.Context) {
	return func(c echo.Context) {
		c.Set(middleware.CtxUserID, claims.UserID)
		c.Set(middleware.CtxEmail, claims.Email)
		c.Set(middleware.CtxRole, claims.DefaultRole)
		c.Set(middleware.CtxRoles, claims.Roles)
		c.Set(middleware.CtxTokenHash, tokenHash)
	}
}

func (env *testEnv) signup(t *testing.T, email, password, role string) authResp {
	t.Helper()
	body := `{"first_name":"Ada","last_name":"Lovelace","email":"` + email + `","password":"` + password + `","role":"` + role + `"}`
	rec := env.call(t, env.auth.Signup, body, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out authResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestSignupIssuesTokenAndSession(t *testing.T) {
	env := newTestEnv(t)
	out := env.signup(t, "a@x.com", "secret123", "CUSTOMER")

	require.Equal(t, "a@x.com", out.User.Email)
	claims, err := utils.VerifyToken(testSecret, out.Token.Token)
	require.NoError(t, err)
	require.Equal(t, out.User.ID, claims.UserID)
	require.Equal(t, "a@x.com", claims.Email)
	require.Equal(t, "CUSTOMER", claims.DefaultRole)
	require.Equal(t, []string{"CUSTOMER"}, claims.Roles)
	require.Equal(t, 1, env.store.activeSessions(out.User.ID))
}

func TestSignupDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "a@x.com", "secret123", "CUSTOMER")

	body := `{"first_name":"Ada","last_name":"Lovelace","email":"a@x.com","password":"secret123","role":"VENDOR"}`
	rec := env.call(t, env.auth.Signup, body, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestSignupRejectsNonSelfAssignableRole(t *testing.T) {
	env := newTestEnv(t)
	for _, role := range []string{"ADMIN", "SUPPORT", "WIZARD", ""} {
		body := `{"first_name":"Ada","last_name":"Lovelace","email":"r@x.com","password":"secret123","role":"` + role + `"}`
		rec := env.call(t, env.auth.Signup, body, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, "role %q", role)
	}
}

func TestSigninWrongPasswordAndUnknownEmailLookAlike(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "a@x.com", "secret123", "CUSTOMER")

	wrongPw := env.call(t, env.auth.Signin, `{"email":"a@x.com","password":"wrong"}`, nil)
	unknown := env.call(t, env.auth.Signin, `{"email":"nobody@x.com","password":"wrong"}`, nil)
	require.Equal(t, http.StatusUnauthorized, wrongPw.Code)
	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	require.JSONEq(t, wrongPw.Body.String(), unknown.Body.String())
}

func TestSigninReturnsTokenWithEmailClaim(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "a@x.com", "secret123", "CUSTOMER")

	rec := env.call(t, env.auth.Signin, `{"email":"a@x.com","password":"secret123"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out authResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	claims, err := utils.VerifyToken(testSecret, out.Token.Token)
	require.NoError(t, err)
	require.Equal(t, "a@x.com", claims.Email)
}

func TestRepeatedSigninKeepsOneActiveSession(t *testing.T) {
	env := newTestEnv(t)
	out := env.signup(t, "a@x.com", "secret123", "CUSTOMER")

	first := env.call(t, env.auth.Signin, `{"email":"a@x.com","password":"secret123"}`, nil)
	require.Equal(t, http.StatusOK, first.Code)
	second := env.call(t, env.auth.Signin, `{"email":"a@x.com","password":"secret123"}`, nil)
	require.Equal(t, http.StatusOK, second.Code)

	require.Equal(t, 1, env.store.activeSessions(out.User.ID))

	// the superseded token is no longer the live session
	var firstResp authResp
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &firstResp))
	active, err := env.store.IsActive(t.Context(), out.User.ID, utils.HashToken(firstResp.Token.Token))
	require.NoError(t, err)
	require.False(t, active)
}

func TestLogoutReportsDoubleLogout(t *testing.T) {
	env := newTestEnv(t)
	out := env.signup(t, "a@x.com", "secret123", "CUSTOMER")
	claims, err := utils.VerifyToken(testSecret, out.Token.Token)
	require.NoError(t, err)
	authed := asAuthed(claims, utils.HashToken(out.Token.Token))

	rec := env.call(t, env.auth.Logout, `{}`, authed)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 0, env.store.activeSessions(out.User.ID))

	again := env.call(t, env.auth.Logout, `{}`, authed)
	require.Equal(t, http.StatusUnauthorized, again.Code)
	require.Contains(t, again.Body.String(), "no active session")
}

func TestOAuthLoginUpsert(t *testing.T) {
	env := newTestEnv(t)

	avatar := "https://img.example/p.png"
	first := env.call(t, env.auth.OAuthLogin,
		`{"provider":"google","email":"o@x.com","first_name":"Omar","last_name":"Khan"}`, nil)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	var created authResp
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &created))
	require.True(t, created.User.EmailVerified)

	u, err := env.store.GetByID(t.Context(), created.User.ID)
	require.NoError(t, err)
	require.False(t, u.HasPassword())
	require.Equal(t, []model.Role{model.RoleCustomer}, env.store.defaultRoles(u.ID))

	// second login fills the avatar only because it is unset
	second := env.call(t, env.auth.OAuthLogin,
		`{"provider":"google","email":"o@x.com","first_name":"Omar","last_name":"Khan","avatar_url":"`+avatar+`"}`, nil)
	require.Equal(t, http.StatusOK, second.Code)
	u, err = env.store.GetByID(t.Context(), created.User.ID)
	require.NoError(t, err)
	require.NotNil(t, u.AvatarURL)
	require.Equal(t, avatar, *u.AvatarURL)

	// a later login must not overwrite it
	third := env.call(t, env.auth.OAuthLogin,
		`{"provider":"google","email":"o@x.com","first_name":"Omar","last_name":"Khan","avatar_url":"https://img.example/other.png"}`, nil)
	require.Equal(t, http.StatusOK, third.Code)
	u, err = env.store.GetByID(t.Context(), created.User.ID)
	require.NoError(t, err)
	require.Equal(t, avatar, *u.AvatarURL)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	out := env.signup(t, "a@x.com", "secret123", "CUSTOMER")
	claims, err := utils.VerifyToken(testSecret, out.Token.Token)
	require.NoError(t, err)
	authed := asAuthed(claims, utils.HashToken(out.Token.Token))

	wrong := env.call(t, env.auth.ChangePassword,
		`{"current_password":"nope","new_password":"newsecret1","confirm_password":"newsecret1"}`, authed)
	require.Equal(t, http.StatusUnauthorized, wrong.Code)
	require.Empty(t, env.store.changes)

	mismatch := env.call(t, env.auth.ChangePassword,
		`{"current_password":"secret123","new_password":"newsecret1","confirm_password":"different1"}`, authed)
	require.Equal(t, http.StatusBadRequest, mismatch.Code)
	require.Empty(t, env.store.changes)

	ok := env.call(t, env.auth.ChangePassword,
		`{"current_password":"secret123","new_password":"newsecret1","confirm_password":"newsecret1"}`, authed)
	require.Equal(t, http.StatusOK, ok.Code)
	require.Len(t, env.store.changes, 1)

	u, err := env.store.GetByID(t.Context(), out.User.ID)
	require.NoError(t, err)
	require.True(t, utils.VerifyPassword(*u.PasswordHash, "newsecret1"))
}
