package app

import (
	"github.com/pankajbaid567/DevHub-sub000/internal/domain"
)

// Engine is the pure permission decision logic. It has no I/O and no
// locks; every privileged operation invokes it synchronously inside the
// room's serialized region.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// Resolve computes the effective permission set from the kind's role
// defaults plus per-participant overrides.
func (Engine) Resolve(kind domain.RoomKind, role domain.Role, overrides *domain.PermissionOverrides) domain.PermissionSet {
	defaults, ok := domain.DefaultPermissions(kind, role)
	if !ok {
		return domain.PermissionSet{}
	}
	return defaults.WithOverrides(overrides)
}

// ResolveFor is Resolve applied to a participant record.
func (e Engine) ResolveFor(room *domain.Room, p *domain.Participant) domain.PermissionSet {
	return e.Resolve(room.Kind, p.Role, p.Overrides)
}

// canTarget applies the rank rule: privileged actions may only aim at a
// strictly lower rank, never a peer or a superior.
func canTarget(kind domain.RoomKind, actor, target domain.Role) bool {
	return domain.RoleRank(kind, actor) > domain.RoleRank(kind, target)
}

func (e Engine) AuthorizeKick(room *domain.Room, actor, target *domain.Participant) error {
	perms := e.ResolveFor(room, actor)
	if !perms.CanKick {
		return domain.NotAllowed("kick", "can_kick")
	}
	if actor.UserID == target.UserID {
		return domain.NotAllowedReason("kick", "cannot kick yourself, leave instead")
	}
	if target.UserID == room.OwnerID {
		return domain.NotAllowedReason("kick", "cannot remove the room owner")
	}
	if !canTarget(room.Kind, actor.Role, target.Role) {
		return domain.NotAllowedReason("kick", "cannot target a peer or superior role")
	}
	return nil
}

func (e Engine) AuthorizeMute(room *domain.Room, actor, target *domain.Participant) error {
	if actor.UserID == target.UserID {
		// muting yourself is a presence update, always allowed
		return nil
	}
	perms := e.ResolveFor(room, actor)
	if !perms.CanMuteOthers {
		return domain.NotAllowed("mute", "can_mute_others")
	}
	if !canTarget(room.Kind, actor.Role, target.Role) {
		return domain.NotAllowedReason("mute", "cannot target a peer or superior role")
	}
	return nil
}

func (e Engine) AuthorizeStartRecording(room *domain.Room, actor *domain.Participant) error {
	if !room.Settings.RecordingAllowed {
		return domain.NotAllowedReason("start_recording", "recording disabled for this room")
	}
	perms := e.ResolveFor(room, actor)
	if !perms.CanRecord {
		return domain.NotAllowed("start_recording", "can_record")
	}
	return nil
}

// AuthorizeStopRecording allows the participant who started the active
// recording to stop it, and anyone holding can_record to stop any.
func (e Engine) AuthorizeStopRecording(room *domain.Room, actor *domain.Participant, rec *domain.Recording) error {
	if rec != nil && rec.StartedBy == actor.UserID {
		return nil
	}
	perms := e.ResolveFor(room, actor)
	if !perms.CanRecord {
		return domain.NotAllowed("stop_recording", "can_record")
	}
	return nil
}

// AuthorizeSetRole guards role changes. Minting a role needs a rank
// strictly above it, except the owner, who may assign their own rank to
// transfer the room.
func (e Engine) AuthorizeSetRole(room *domain.Room, actor, target *domain.Participant, newRole domain.Role) error {
	if !domain.ValidRole(room.Kind, newRole) {
		return domain.NotAllowedReason("set_role", "role not valid for this room kind")
	}
	if target.UserID == room.OwnerID && actor.UserID != room.OwnerID {
		return domain.NotAllowedReason("set_role", "cannot change the room owner's role")
	}
	if actor.UserID != target.UserID && !canTarget(room.Kind, actor.Role, target.Role) {
		return domain.NotAllowedReason("set_role", "cannot target a peer or superior role")
	}
	actorRank := domain.RoleRank(room.Kind, actor.Role)
	if domain.RoleRank(room.Kind, newRole) >= actorRank && actor.UserID != room.OwnerID {
		return domain.NotAllowedReason("set_role", "cannot grant a role at or above your own")
	}
	return nil
}

func (e Engine) AuthorizeSetPermissions(room *domain.Room, actor, target *domain.Participant) error {
	if actor.UserID != room.OwnerID && actor.Role != domain.MaxRole(room.Kind) {
		return domain.NotAllowedReason("set_permissions", "requires the room owner or maximal role")
	}
	if target.UserID == room.OwnerID && actor.UserID != room.OwnerID {
		return domain.NotAllowedReason("set_permissions", "cannot override the room owner")
	}
	return nil
}

func (e Engine) AuthorizeInvite(room *domain.Room, actor *domain.Participant) error {
	perms := e.ResolveFor(room, actor)
	if !perms.CanInvite {
		return domain.NotAllowed("invite", "can_invite")
	}
	return nil
}

// AuthorizeEndRoom restricts ending to the owner or the maximal role.
func (e Engine) AuthorizeEndRoom(room *domain.Room, actor *domain.Participant) error {
	if actor.UserID == room.OwnerID {
		return nil
	}
	if actor.Role != domain.MaxRole(room.Kind) {
		return domain.NotAllowedReason("end_room", "requires the room owner or maximal role")
	}
	return nil
}

func (e Engine) AuthorizeChat(room *domain.Room, actor *domain.Participant) error {
	if !room.Settings.ChatAllowed {
		return domain.NotAllowedReason("chat", "chat disabled for this room")
	}
	perms := e.ResolveFor(room, actor)
	if !perms.CanChat {
		return domain.NotAllowed("chat", "can_chat")
	}
	return nil
}

func (e Engine) AuthorizeRoomData(room *domain.Room, actor *domain.Participant) error {
	perms := e.ResolveFor(room, actor)
	if !perms.CanShare {
		return domain.NotAllowed("room_data", "can_share")
	}
	return nil
}

func (e Engine) AuthorizeUpdateSettings(room *domain.Room, actor *domain.Participant) error {
	if actor.UserID == room.OwnerID {
		return nil
	}
	if actor.Role != domain.MaxRole(room.Kind) {
		return domain.NotAllowedReason("update_settings", "requires the room owner or maximal role")
	}
	return nil
}

// ClampMedia forces a media state into what the permission set allows
// and keeps the speaking flag consistent with the audio track.
func (Engine) ClampMedia(perms domain.PermissionSet, m *domain.MediaState) {
	if !perms.CanSpeak {
		m.Audio.Enabled = false
	}
	if !perms.CanVideo {
		m.Video.Enabled = false
	}
	if !perms.CanShare {
		m.Screen.Enabled = false
	}
	if !m.Audio.Enabled || m.Audio.Muted {
		m.Speaking = false
	}
}
