package api

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuomag9/kabomba-status/internal/models"
)

func (h *harness) createInvite(token string, body any) models.Invite {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/api/invites", token, body)
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		Invite models.Invite `json:"invite"`
	}
	data(h.t, rec, &resp)
	return resp.Invite
}

func (h *harness) validateInvite(code string) (bool, string) {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/api/invites/validate", "", map[string]string{"code": code})
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Valid bool   `json:"valid"`
		Error string `json:"error"`
	}
	data(h.t, rec, &resp)
	return resp.Valid, resp.Error
}

func TestInvites_RegisterRedeemsOnce(t *testing.T) {
	h := newHarness(t)
	admin := h.setupAdmin()

	invite := h.createInvite(admin, map[string]int{"expiresInDays": 7})
	require.Len(t, invite.Code, inviteCodeLength)
	for _, c := range invite.Code {
		assert.True(t, strings.ContainsRune(inviteAlphabet, c), "unexpected symbol %q", c)
	}
	require.NotNil(t, invite.ExpiresAt)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 7), *invite.ExpiresAt, time.Minute)

	valid, _ := h.validateInvite(strings.ToLower(invite.Code))
	assert.True(t, valid)

	rec := h.do(http.MethodPost, "/api/auth/register", "", RegisterRequest{
		Username: "carol", Password: "password123", InviteCode: strings.ToLower(invite.Code),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var login LoginResponse
	data(t, rec, &login)
	assert.Equal(t, models.RoleUser, login.User.Role)

	rec = h.do(http.MethodGet, "/api/auth/me", login.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	valid, msg := h.validateInvite(invite.Code)
	assert.False(t, valid)
	assert.Equal(t, "Invite already used", msg)

	rec = h.do(http.MethodPost, "/api/auth/register", "", RegisterRequest{
		Username: "dave", Password: "password123", InviteCode: invite.Code,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invite already used", errorOf(t, rec))

	rec = h.do(http.MethodGet, "/api/invites", admin, nil)
	var list struct {
		Invites []models.Invite `json:"invites"`
	}
	data(t, rec, &list)
	require.Len(t, list.Invites, 1)
	require.NotNil(t, list.Invites[0].UsedByUsername)
	assert.Equal(t, "carol", *list.Invites[0].UsedByUsername)
	assert.NotNil(t, list.Invites[0].UsedAt)
}

func TestInvites_RejectedCodes(t *testing.T) {
	h := newHarness(t)
	admin := h.setupAdmin()

	valid, msg := h.validateInvite("NOPE2345")
	assert.False(t, valid)
	assert.Equal(t, "Invalid invite code", msg)

	past := time.Now().Add(-time.Hour).UTC()
	expired := &models.Invite{Code: "EXPRD234", CreatedBy: "someone", ExpiresAt: &past}
	require.NoError(t, h.store.CreateInvite(context.Background(), expired))
	valid, msg = h.validateInvite("exprd234")
	assert.False(t, valid)
	assert.Equal(t, "Invite expired", msg)

	rec := h.do(http.MethodPost, "/api/auth/register", "", RegisterRequest{Username: "erin", Password: "password123", InviteCode: "EXPRD234"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invite expired", errorOf(t, rec))

	rec = h.do(http.MethodPost, "/api/auth/register", "", RegisterRequest{Username: "erin", Password: "password123"})
	assert.Equal(t, "Invite code required", errorOf(t, rec))

	invite := h.createInvite(admin, nil)
	assert.Nil(t, invite.ExpiresAt)
	rec = h.do(http.MethodPost, "/api/auth/register", "", RegisterRequest{Username: "admin", Password: "password123", InviteCode: invite.Code})
	assert.Equal(t, http.StatusConflict, rec.Code)
	// a refused registration leaves the code redeemable
	valid, _ = h.validateInvite(invite.Code)
	assert.True(t, valid)

	rec = h.do(http.MethodPost, "/api/invites", admin, map[string]int{"expiresInDays": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = h.do(http.MethodPost, "/api/invites/validate", "", map[string]string{"code": " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvites_AdminOnlyAndDelete(t *testing.T) {
	h := newHarness(t)
	admin := h.setupAdmin()
	_, user := h.regularUser("bob")

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPost, "/api/invites", user, nil).Code)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/api/invites", user, nil).Code)

	invite := h.createInvite(admin, nil)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodDelete, "/api/invites/"+invite.ID, user, nil).Code)
	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/api/invites/"+invite.ID, admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, "/api/invites/"+invite.ID, admin, nil).Code)

	valid, msg := h.validateInvite(invite.Code)
	assert.False(t, valid)
	assert.Equal(t, "Invalid invite code", msg)
}

func TestUsers_GetSelfOrAdmin(t *testing.T) {
	h := newHarness(t)
	admin := h.setupAdmin()
	bob, bobToken := h.regularUser("bob")
	carol, _ := h.regularUser("carol")

	rec := h.do(http.MethodGet, "/api/users/"+bob.ID, bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = h.do(http.MethodGet, "/api/users/"+carol.ID, bobToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Cannot access other users", errorOf(t, rec))

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/users/"+carol.ID, admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/users/missing", admin, nil).Code)

	rec = h.do(http.MethodGet, "/api/users", admin, nil)
	var list struct {
		Users []models.User `json:"users"`
	}
	data(t, rec, &list)
	assert.Len(t, list.Users, 3)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/api/users", bobToken, nil).Code)
}

func TestUsers_ChangePassword(t *testing.T) {
	h := newHarness(t)
	h.setupAdmin()
	bob, bobToken := h.regularUser("bob")
	carol, _ := h.regularUser("carol")
	path := "/api/users/" + bob.ID + "/password"

	rec := h.do(http.MethodPut, "/api/users/"+carol.ID+"/password", bobToken, map[string]string{"currentPassword": "password123", "newPassword": "new-password"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodPut, path, bobToken, map[string]string{"currentPassword": "password123", "newPassword": "short"})
	assert.Equal(t, "New password must be at least 8 characters", errorOf(t, rec))

	rec = h.do(http.MethodPut, path, bobToken, map[string]string{"currentPassword": "wrong-password", "newPassword": "new-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Current password is incorrect", errorOf(t, rec))

	rec = h.do(http.MethodPut, path, bobToken, map[string]string{"currentPassword": "password123", "newPassword": "new-password"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Username: "bob", Password: "new-password"})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = h.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Username: "bob", Password: "password123"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUsers_RoleAndDelete(t *testing.T) {
	h := newHarness(t)
	admin := h.setupAdmin()
	bob, bobToken := h.regularUser("bob")

	rec := h.do(http.MethodGet, "/api/auth/me", admin, nil)
	var me struct {
		User models.User `json:"user"`
	}
	data(t, rec, &me)

	rec = h.do(http.MethodPut, "/api/users/"+me.User.ID+"/role", admin, map[string]string{"role": models.RoleUser})
	assert.Equal(t, "Cannot change your own role", errorOf(t, rec))
	rec = h.do(http.MethodPut, "/api/users/"+bob.ID+"/role", admin, map[string]string{"role": "owner"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPut, "/api/users/"+bob.ID+"/role", bobToken, map[string]string{"role": models.RoleAdmin}).Code)

	rec = h.do(http.MethodPut, "/api/users/"+bob.ID+"/role", admin, map[string]string{"role": models.RoleAdmin})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	// the promotion applies to the existing session
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/audit", bobToken, nil).Code)

	rec = h.do(http.MethodDelete, "/api/users/"+me.User.ID, admin, nil)
	assert.Equal(t, "Cannot delete yourself", errorOf(t, rec))

	key := &models.APIKey{UserID: bob.ID, Name: "ci", KeyHash: "x", Prefix: "abcd1234"}
	require.NoError(t, h.store.CreateAPIKey(context.Background(), key))

	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/api/users/"+bob.ID, admin, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/auth/me", bobToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, "/api/users/"+bob.ID, admin, nil).Code)

	keys, err := h.store.ListAPIKeys(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.Empty(t, keys)
}
