package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/marketplace-backend/internal/model"
	"github.com/iliyamo/marketplace-backend/internal/utils"
)

// grantRole seeds an extra non-default assignment directly in the fake
// store, the way an operator grant would.
func grantRole(env *testEnv, userID uint64, role model.Role) {
	env.store.mu.Lock()
	defer env.store.mu.Unlock()
	env.store.assigns[userID] = append(env.store.assigns[userID],
		model.RoleAssignment{UserID: userID, RoleID: role, IsDefault: false})
}

func TestSwitchDefaultRole(t *testing.T) {
	env := newTestEnv(t)
	out := env.signup(t, "v@x.com", "secret123", "CUSTOMER")
	grantRole(env, out.User.ID, model.RoleVendor)
	claims, err := utils.VerifyToken(testSecret, out.Token.Token)
	require.NoError(t, err)
	authed := asAuthed(claims, utils.HashToken(out.Token.Token))

	rec := env.call(t, env.roles.Switch, `{"role_id":2}`, authed)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp switchRoleResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	newClaims, err := utils.VerifyToken(testSecret, resp.Token.Token)
	require.NoError(t, err)
	require.Equal(t, "VENDOR", newClaims.DefaultRole)
	require.ElementsMatch(t, []string{"CUSTOMER", "VENDOR"}, newClaims.Roles)

	// exactly one default, and it moved
	require.Equal(t, []model.Role{model.RoleVendor}, env.store.defaultRoles(out.User.ID))

	// the reissued token supersedes the old session
	require.Equal(t, 1, env.store.activeSessions(out.User.ID))
	active, err := env.store.IsActive(t.Context(), out.User.ID, utils.HashToken(out.Token.Token))
	require.NoError(t, err)
	require.False(t, active)
}

func TestSwitchRoleNotAssociated(t *testing.T) {
	env := newTestEnv(t)
	out := env.signup(t, "v@x.com", "secret123", "CUSTOMER")
	claims, err := utils.VerifyToken(testSecret, out.Token.Token)
	require.NoError(t, err)
	authed := asAuthed(claims, utils.HashToken(out.Token.Token))

	rec := env.call(t, env.roles.Switch, `{"role_id":2}`, authed)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, []model.Role{model.RoleCustomer}, env.store.defaultRoles(out.User.ID))
}

func TestSwitchRoleAlreadyDefault(t *testing.T) {
	env := newTestEnv(t)
	out := env.signup(t, "v@x.com", "secret123", "CUSTOMER")
	grantRole(env, out.User.ID, model.RoleVendor)
	claims, err := utils.VerifyToken(testSecret, out.Token.Token)
	require.NoError(t, err)
	authed := asAuthed(claims, utils.HashToken(out.Token.Token))

	rec := env.call(t, env.roles.Switch, `{"role_id":1}`, authed)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp switchRoleResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Contains(t, resp.Message, "already")
	require.Equal(t, []model.Role{model.RoleCustomer}, env.store.defaultRoles(out.User.ID))

	newClaims, err := utils.VerifyToken(testSecret, resp.Token.Token)
	require.NoError(t, err)
	require.Equal(t, "CUSTOMER", newClaims.DefaultRole)
}

func TestSwitchRoleInvalidID(t *testing.T) {
	env := newTestEnv(t)
	out := env.signup(t, "v@x.com", "secret123", "CUSTOMER")
	claims, err := utils.VerifyToken(testSecret, out.Token.Token)
	require.NoError(t, err)
	authed := asAuthed(claims, utils.HashToken(out.Token.Token))

	rec := env.call(t, env.roles.Switch, `{"role_id":99}`, authed)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSwitchSequenceKeepsSingleDefault(t *testing.T) {
	env := newTestEnv(t)
	out := env.signup(t, "v@x.com", "secret123", "CUSTOMER")
	grantRole(env, out.User.ID, model.RoleVendor)
	grantRole(env, out.User.ID, model.RoleSupport)
	claims, err := utils.VerifyToken(testSecret, out.Token.Token)
	require.NoError(t, err)
	authed := asAuthed(claims, utils.HashToken(out.Token.Token))

	for _, id := range []string{"2", "4", "2", "1", "1", "4"} {
		rec := env.call(t, env.roles.Switch, `{"role_id":`+id+`}`, authed)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, env.store.defaultRoles(out.User.ID), 1)
	}
	require.Equal(t, []model.Role{model.RoleSupport}, env.store.defaultRoles(out.User.ID))
}
