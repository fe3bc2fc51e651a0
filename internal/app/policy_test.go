package app

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pankajbaid567/DevHub-sub000/internal/domain"
)

func policyRoom(kind domain.RoomKind) *domain.Room {
	return &domain.Room{
		ID:      "rm_policy",
		Name:    "policy",
		Kind:    kind,
		OwnerID: "u_owner",
		Status:  domain.StatusLive,
		Settings: domain.RoomSettings{
			RecordingAllowed: true,
			ChatAllowed:      true,
		},
		Capacity: 8,
	}
}

func member(id domain.UserID, role domain.Role) *domain.Participant {
	return &domain.Participant{
		UserID:    id,
		Username:  string(id),
		Role:      role,
		IsPresent: true,
	}
}

func TestAuthorizeKick_RankRules(t *testing.T) {
	e := NewEngine()
	room := policyRoom(domain.KindVideoSession)

	owner := member("u_owner", domain.RoleHost)
	coHost := member("u_cohost", domain.RoleCoHost)
	mod := member("u_mod", domain.RoleModerator)
	plain := member("u_plain", domain.RoleParticipant)

	// participants hold no kick permission at all
	err := e.AuthorizeKick(room, plain, mod)
	require.ErrorIs(t, err, domain.ErrNotAllowed)

	// self-kick is refused even for the owner
	require.ErrorIs(t, e.AuthorizeKick(room, owner, owner), domain.ErrNotAllowed)

	// the owner cannot be removed by anyone
	require.ErrorIs(t, e.AuthorizeKick(room, coHost, owner), domain.ErrNotAllowed)

	// peers cannot target each other
	mod2 := member("u_mod2", domain.RoleModerator)
	require.ErrorIs(t, e.AuthorizeKick(room, mod, mod2), domain.ErrNotAllowed)

	// nor can a lower rank reach upward
	require.ErrorIs(t, e.AuthorizeKick(room, mod, coHost), domain.ErrNotAllowed)

	// strictly lower rank is fair game
	require.NoError(t, e.AuthorizeKick(room, mod, plain))
	require.NoError(t, e.AuthorizeKick(room, coHost, mod))
	require.NoError(t, e.AuthorizeKick(room, owner, coHost))
}

func TestAuthorizeMute_SelfAlwaysAllowed(t *testing.T) {
	e := NewEngine()
	room := policyRoom(domain.KindVoiceRoom)

	plain := member("u_plain", domain.RoleParticipant)
	require.NoError(t, e.AuthorizeMute(room, plain, plain))

	other := member("u_other", domain.RoleParticipant)
	require.ErrorIs(t, e.AuthorizeMute(room, plain, other), domain.ErrNotAllowed)

	mod := member("u_mod", domain.RoleModerator)
	require.NoError(t, e.AuthorizeMute(room, mod, other))
	// peer moderators cannot mute each other
	mod2 := member("u_mod2", domain.RoleModerator)
	require.ErrorIs(t, e.AuthorizeMute(room, mod, mod2), domain.ErrNotAllowed)
}

func TestAuthorizeRecording(t *testing.T) {
	e := NewEngine()
	room := policyRoom(domain.KindVideoSession)

	host := member("u_owner", domain.RoleHost)
	mod := member("u_mod", domain.RoleModerator)
	plain := member("u_plain", domain.RoleParticipant)

	// the room setting gates everyone, including the host
	room.Settings.RecordingAllowed = false
	require.ErrorIs(t, e.AuthorizeStartRecording(room, host), domain.ErrNotAllowed)
	room.Settings.RecordingAllowed = true

	require.NoError(t, e.AuthorizeStartRecording(room, host))
	// moderators lack can_record in video sessions
	require.ErrorIs(t, e.AuthorizeStartRecording(room, mod), domain.ErrNotAllowed)

	rec := domain.NewRecording(room.ID, mod.UserID)

	// whoever started it may always stop it
	require.NoError(t, e.AuthorizeStopRecording(room, mod, rec))
	// anyone holding can_record may stop a recording they did not start
	require.NoError(t, e.AuthorizeStopRecording(room, host, rec))
	// everyone else is refused
	require.ErrorIs(t, e.AuthorizeStopRecording(room, plain, rec), domain.ErrNotAllowed)
}

func TestAuthorizeSetRole(t *testing.T) {
	e := NewEngine()
	room := policyRoom(domain.KindVideoSession)

	owner := member("u_owner", domain.RoleHost)
	coHost := member("u_cohost", domain.RoleCoHost)
	mod := member("u_mod", domain.RoleModerator)
	plain := member("u_plain", domain.RoleParticipant)

	// roles outside the kind's set are rejected outright
	err := e.AuthorizeSetRole(room, owner, plain, domain.RoleAdmin)
	require.ErrorIs(t, err, domain.ErrNotAllowed)

	// only the owner may touch the owner's role
	require.ErrorIs(t, e.AuthorizeSetRole(room, coHost, owner, domain.RoleModerator), domain.ErrNotAllowed)

	// targeting follows the same rank rule as kick
	require.ErrorIs(t, e.AuthorizeSetRole(room, mod, coHost, domain.RoleParticipant), domain.ErrNotAllowed)

	// minting a role at or above your own rank needs ownership
	require.ErrorIs(t, e.AuthorizeSetRole(room, coHost, mod, domain.RoleCoHost), domain.ErrNotAllowed)
	require.ErrorIs(t, e.AuthorizeSetRole(room, coHost, mod, domain.RoleHost), domain.ErrNotAllowed)
	require.NoError(t, e.AuthorizeSetRole(room, coHost, plain, domain.RoleModerator))

	// the owner may grant their own rank, which is how ownership moves
	require.NoError(t, e.AuthorizeSetRole(room, owner, coHost, domain.RoleHost))
}

func TestAuthorizeSetPermissions(t *testing.T) {
	e := NewEngine()
	room := policyRoom(domain.KindCollab)

	owner := member("u_owner", domain.RoleOwner)
	maxNotOwner := member("u_max", domain.RoleOwner)
	mod := member("u_mod", domain.RoleModerator)
	plain := member("u_plain", domain.RoleParticipant)

	require.NoError(t, e.AuthorizeSetPermissions(room, owner, plain))
	require.NoError(t, e.AuthorizeSetPermissions(room, maxNotOwner, plain))
	require.ErrorIs(t, e.AuthorizeSetPermissions(room, mod, plain), domain.ErrNotAllowed)

	// nobody but the owner may override the owner
	require.ErrorIs(t, e.AuthorizeSetPermissions(room, maxNotOwner, owner), domain.ErrNotAllowed)
	require.NoError(t, e.AuthorizeSetPermissions(room, owner, owner))
}

func TestAuthorizeEndRoomAndSettings(t *testing.T) {
	e := NewEngine()
	room := policyRoom(domain.KindVoiceRoom)

	owner := member("u_owner", domain.RoleAdmin)
	admin := member("u_admin", domain.RoleAdmin)
	mod := member("u_mod", domain.RoleModerator)

	require.NoError(t, e.AuthorizeEndRoom(room, owner))
	require.NoError(t, e.AuthorizeEndRoom(room, admin))
	require.ErrorIs(t, e.AuthorizeEndRoom(room, mod), domain.ErrNotAllowed)

	require.NoError(t, e.AuthorizeUpdateSettings(room, owner))
	require.NoError(t, e.AuthorizeUpdateSettings(room, admin))
	require.ErrorIs(t, e.AuthorizeUpdateSettings(room, mod), domain.ErrNotAllowed)
}

func TestAuthorizeChat(t *testing.T) {
	e := NewEngine()
	room := policyRoom(domain.KindCollab)
	plain := member("u_plain", domain.RoleParticipant)

	require.NoError(t, e.AuthorizeChat(room, plain))

	room.Settings.ChatAllowed = false
	require.ErrorIs(t, e.AuthorizeChat(room, plain), domain.ErrNotAllowed)
	room.Settings.ChatAllowed = true

	// a per-user override can take chat away
	off := false
	plain.Overrides = &domain.PermissionOverrides{CanChat: &off}
	require.ErrorIs(t, e.AuthorizeChat(room, plain), domain.ErrNotAllowed)
}

func TestAuthorizeRoomData_KindBound(t *testing.T) {
	e := NewEngine()

	// collab rooms let every participant share data
	collab := policyRoom(domain.KindCollab)
	require.NoError(t, e.AuthorizeRoomData(collab, member("u_p", domain.RoleParticipant)))

	// voice rooms have no sharing surface for any role
	voice := policyRoom(domain.KindVoiceRoom)
	require.ErrorIs(t, e.AuthorizeRoomData(voice, member("u_a", domain.RoleAdmin)), domain.ErrNotAllowed)
}

func TestResolve(t *testing.T) {
	e := NewEngine()

	// unknown role resolves to nothing rather than panicking
	perms := e.Resolve(domain.KindVideoSession, domain.RoleAdmin, nil)
	require.Equal(t, domain.PermissionSet{}, perms)

	// overrides extend defaults upward as well as downward
	on := true
	perms = e.Resolve(domain.KindVideoSession, domain.RoleParticipant, &domain.PermissionOverrides{CanShare: &on})
	require.True(t, perms.CanShare)
	require.True(t, perms.CanSpeak)
	require.False(t, perms.CanKick)
}

func TestClampMedia(t *testing.T) {
	e := NewEngine()

	m := domain.MediaState{}
	m.Audio.Enabled = true
	m.Video.Enabled = true
	m.Screen.Enabled = true
	m.Speaking = true

	perms := domain.PermissionSet{CanSpeak: true}
	e.ClampMedia(perms, &m)
	require.True(t, m.Audio.Enabled)
	require.False(t, m.Video.Enabled)
	require.False(t, m.Screen.Enabled)
	require.True(t, m.Speaking)

	// a muted track cannot report speaking
	m.Audio.Muted = true
	e.ClampMedia(perms, &m)
	require.False(t, m.Speaking)
}

func TestNotAllowedDetail(t *testing.T) {
	e := NewEngine()
	room := policyRoom(domain.KindVideoSession)
	plain := member("u_plain", domain.RoleParticipant)

	err := e.AuthorizeStartRecording(room, plain)
	var na *domain.NotAllowedError
	require.True(t, errors.As(err, &na))
	require.Equal(t, "start_recording", na.Action)
	require.Equal(t, "can_record", na.Required)
}
