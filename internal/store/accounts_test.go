package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuomag9/kabomba-status/internal/models"
)

func TestRegisterWithInvite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	invite := &models.Invite{Code: "ABCD2345", CreatedBy: "admin-id"}
	require.NoError(t, s.CreateInvite(ctx, invite))

	_, err := s.CheckInvite(ctx, "abcd2345", now)
	require.NoError(t, err)

	first := &models.User{Username: "carol", Password: "h", Role: models.RoleUser}
	require.NoError(t, s.RegisterWithInvite(ctx, first, "abcd2345", now))

	second := &models.User{Username: "dave", Password: "h", Role: models.RoleUser}
	assert.ErrorIs(t, s.RegisterWithInvite(ctx, second, "ABCD2345", now), ErrInviteUsed)
	_, err = s.GetUserByUsername(ctx, "dave")
	assert.ErrorIs(t, err, ErrNotFound)

	invites, err := s.ListInvites(ctx)
	require.NoError(t, err)
	require.Len(t, invites, 1)
	require.NotNil(t, invites[0].UsedBy)
	assert.Equal(t, first.ID, *invites[0].UsedBy)
	require.NotNil(t, invites[0].UsedByUsername)
	assert.Equal(t, "carol", *invites[0].UsedByUsername)

	_, err = s.CheckInvite(ctx, "ZZZZ2345", now)
	assert.ErrorIs(t, err, ErrInviteInvalid)
}

func TestRegisterWithInvite_ExpiredAndTakenName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	past := now.Add(-time.Minute).UTC()
	require.NoError(t, s.CreateInvite(ctx, &models.Invite{Code: "OLDC2345", CreatedBy: "a", ExpiresAt: &past}))
	require.NoError(t, s.CreateInvite(ctx, &models.Invite{Code: "NEWC2345", CreatedBy: "a"}))
	require.NoError(t, s.CreateUser(ctx, &models.User{Username: "taken", Password: "h", Role: models.RoleUser}))

	err := s.RegisterWithInvite(ctx, &models.User{Username: "erin", Password: "h", Role: models.RoleUser}, "OLDC2345", now)
	assert.ErrorIs(t, err, ErrInviteExpired)

	err = s.RegisterWithInvite(ctx, &models.User{Username: "taken", Password: "h", Role: models.RoleUser}, "NEWC2345", now)
	assert.ErrorIs(t, err, ErrUsernameTaken)
	invite, err := s.CheckInvite(ctx, "NEWC2345", now)
	require.NoError(t, err)
	assert.False(t, invite.IsUsed())

	require.NoError(t, s.DeleteInvite(ctx, invite.ID))
	assert.ErrorIs(t, s.DeleteInvite(ctx, invite.ID), ErrNotFound)
}

func TestUsers_AdminOperations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bob := &models.User{Username: "bob", Password: "old", Role: models.RoleUser}
	require.NoError(t, s.CreateUser(ctx, bob))
	require.NoError(t, s.CreateUser(ctx, &models.User{Username: "alice", Password: "h", Role: models.RoleAdmin}))
	require.NoError(t, s.CreateAPIKey(ctx, &models.APIKey{UserID: bob.ID, Name: "ci", KeyHash: "h", Prefix: "ks_bob0"}))

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)

	require.NoError(t, s.UpdateUserRole(ctx, bob.ID, models.RoleAdmin))
	require.NoError(t, s.UpdateUserPassword(ctx, bob.ID, "new"))
	got, err := s.GetUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAdmin())
	assert.Equal(t, "new", got.Password)
	assert.ErrorIs(t, s.UpdateUserRole(ctx, "missing", models.RoleAdmin), ErrNotFound)

	require.NoError(t, s.DeleteUser(ctx, bob.ID))
	keys, err := s.APIKeysByPrefix(ctx, "ks_bob0")
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.ErrorIs(t, s.DeleteUser(ctx, bob.ID), ErrNotFound)
}

func TestEvents_FiltersAndResolve(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertGroup(ctx, &models.Group{Name: "core"}))
	base := time.Now().UTC().Add(-time.Hour)

	mk := func(title, status string, group *string, offset time.Duration) *models.Event {
		e := &models.Event{Title: title, Type: models.EventIncident, Status: status, GroupName: group, StartedAt: base.Add(offset)}
		require.NoError(t, s.CreateEvent(ctx, e))
		return e
	}
	global := mk("global", models.EventOngoing, nil, 0)
	core := mk("core", models.EventScheduled, strPtr("core"), time.Minute)
	other := mk("other", models.EventOngoing, strPtr("other"), 2*time.Minute)

	events, err := s.ListEvents(ctx, EventFilter{Group: "core"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, core.ID, events[0].ID)
	assert.Equal(t, global.ID, events[1].ID)

	events, err = s.ListEvents(ctx, EventFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, other.ID, events[0].ID)

	require.NoError(t, s.ResolveEvent(ctx, other.ID, time.Now()))
	active, err := s.ListActiveEvents(ctx, "")
	require.NoError(t, err)
	assert.Len(t, active, 2)

	resolved, err := s.GetEvent(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventResolved, resolved.Status)
	assert.NotNil(t, resolved.ResolvedAt)

	resolved.Title = "other (fixed)"
	require.NoError(t, s.UpdateEvent(ctx, resolved))
	got, err := s.GetEvent(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "other (fixed)", got.Title)

	require.NoError(t, s.DeleteEvent(ctx, other.ID))
	assert.ErrorIs(t, s.ResolveEvent(ctx, other.ID, time.Now()), ErrNotFound)
	_, err = s.GetEvent(ctx, other.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestImport_UniqueGroupNames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertGroup(ctx, &models.Group{Name: "core"}))
	require.NoError(t, s.UpsertGroup(ctx, &models.Group{Name: "core-(1)"}))

	data := models.ExportData{
		Groups: []models.ExportedGroup{{Name: "core", EmailNotifications: true}},
		Services: []models.ExportedService{
			{Name: "api", URL: "https://api.example.com", ExpectedStatus: 200, CheckInterval: 60, Enabled: true, GroupName: strPtr("core")},
			{Name: "loose", URL: "https://loose.example.com", ExpectedStatus: 200, CheckInterval: 60, GroupName: strPtr("nowhere")},
		},
	}
	created, stats, err := s.Import(ctx, data, ImportOptions{Owner: "u1"})
	require.NoError(t, err)
	assert.Equal(t, ImportStats{GroupsCreated: 1, GroupsRenamed: 1, ServicesCreated: 2}, stats)
	require.Len(t, created, 2)
	require.NotNil(t, created[0].GroupName)
	assert.Equal(t, "core-(2)", *created[0].GroupName)
	assert.Nil(t, created[1].GroupName)
	assert.Equal(t, "u1", created[0].CreatedBy)
	assert.NotEmpty(t, created[0].ID)

	in, err := s.ListServicesInGroup(ctx, "core-(2)")
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, created[0].ID, in[0].ID)
}
