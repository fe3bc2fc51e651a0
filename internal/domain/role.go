package domain

type Role string

const (
	RoleHost        Role = "host"
	RoleCoHost      Role = "co_host"
	RoleAdmin       Role = "admin"
	RoleOwner       Role = "owner"
	RoleModerator   Role = "moderator"
	RoleParticipant Role = "participant"
)

// PermissionSet is the effective capability vector of one participant,
// derived from the role defaults of the room kind plus any per-user
// overrides.
type PermissionSet struct {
	CanSpeak      bool `json:"can_speak"`
	CanVideo      bool `json:"can_video"`
	CanChat       bool `json:"can_chat"`
	CanShare      bool `json:"can_share"`
	CanInvite     bool `json:"can_invite"`
	CanKick       bool `json:"can_kick"`
	CanMuteOthers bool `json:"can_mute_others"`
	CanRecord     bool `json:"can_record"`
}

// PermissionOverrides is a sparse patch over role defaults; nil fields
// keep the default.
type PermissionOverrides struct {
	CanSpeak      *bool `json:"can_speak,omitempty"`
	CanVideo      *bool `json:"can_video,omitempty"`
	CanChat       *bool `json:"can_chat,omitempty"`
	CanShare      *bool `json:"can_share,omitempty"`
	CanInvite     *bool `json:"can_invite,omitempty"`
	CanKick       *bool `json:"can_kick,omitempty"`
	CanMuteOthers *bool `json:"can_mute_others,omitempty"`
	CanRecord     *bool `json:"can_record,omitempty"`
}

func (p PermissionSet) WithOverrides(o *PermissionOverrides) PermissionSet {
	if o == nil {
		return p
	}
	if o.CanSpeak != nil {
		p.CanSpeak = *o.CanSpeak
	}
	if o.CanVideo != nil {
		p.CanVideo = *o.CanVideo
	}
	if o.CanChat != nil {
		p.CanChat = *o.CanChat
	}
	if o.CanShare != nil {
		p.CanShare = *o.CanShare
	}
	if o.CanInvite != nil {
		p.CanInvite = *o.CanInvite
	}
	if o.CanKick != nil {
		p.CanKick = *o.CanKick
	}
	if o.CanMuteOthers != nil {
		p.CanMuteOthers = *o.CanMuteOthers
	}
	if o.CanRecord != nil {
		p.CanRecord = *o.CanRecord
	}
	return p
}

type roleEntry struct {
	rank  int
	perms PermissionSet
}

// Role sets are closed per room kind. Rank orders roles for targeting
// rules: privileged actions may only target a strictly lower rank.
var roleTables = map[RoomKind]map[Role]roleEntry{
	KindVideoSession: {
		RoleHost: {rank: 3, perms: PermissionSet{
			CanSpeak: true, CanVideo: true, CanChat: true, CanShare: true,
			CanInvite: true, CanKick: true, CanMuteOthers: true, CanRecord: true,
		}},
		RoleCoHost: {rank: 2, perms: PermissionSet{
			CanSpeak: true, CanVideo: true, CanChat: true, CanShare: true,
			CanInvite: true, CanKick: true, CanMuteOthers: true, CanRecord: true,
		}},
		RoleModerator: {rank: 1, perms: PermissionSet{
			CanSpeak: true, CanVideo: true, CanChat: true, CanShare: true,
			CanInvite: true, CanKick: true, CanMuteOthers: true,
		}},
		RoleParticipant: {rank: 0, perms: PermissionSet{
			CanSpeak: true, CanVideo: true, CanChat: true,
		}},
	},
	KindVoiceRoom: {
		RoleAdmin: {rank: 2, perms: PermissionSet{
			CanSpeak: true, CanChat: true,
			CanInvite: true, CanKick: true, CanMuteOthers: true, CanRecord: true,
		}},
		RoleModerator: {rank: 1, perms: PermissionSet{
			CanSpeak: true, CanChat: true,
			CanInvite: true, CanKick: true, CanMuteOthers: true,
		}},
		RoleParticipant: {rank: 0, perms: PermissionSet{
			CanSpeak: true, CanChat: true,
		}},
	},
	KindCollab: {
		RoleOwner: {rank: 2, perms: PermissionSet{
			CanSpeak: true, CanVideo: true, CanChat: true, CanShare: true,
			CanInvite: true, CanKick: true, CanMuteOthers: true, CanRecord: true,
		}},
		RoleModerator: {rank: 1, perms: PermissionSet{
			CanSpeak: true, CanVideo: true, CanChat: true, CanShare: true,
			CanInvite: true, CanKick: true, CanMuteOthers: true,
		}},
		RoleParticipant: {rank: 0, perms: PermissionSet{
			CanSpeak: true, CanVideo: true, CanChat: true, CanShare: true,
		}},
	},
}

// ValidRole reports whether role exists in the kind's closed set.
func ValidRole(kind RoomKind, role Role) bool {
	_, ok := roleTables[kind][role]
	return ok
}

// MaxRole is the role the room creator receives.
func MaxRole(kind RoomKind) Role {
	var best Role
	rank := -1
	for role, e := range roleTables[kind] {
		if e.rank > rank {
			best, rank = role, e.rank
		}
	}
	return best
}

// DefaultRole is the role a plain joiner receives.
func DefaultRole(kind RoomKind) Role { return RoleParticipant }

// RoleRank returns the targeting rank of role within kind, or -1 for a
// role outside the kind's set.
func RoleRank(kind RoomKind, role Role) int {
	e, ok := roleTables[kind][role]
	if !ok {
		return -1
	}
	return e.rank
}

// DefaultPermissions returns the kind's default permission set for role.
func DefaultPermissions(kind RoomKind, role Role) (PermissionSet, bool) {
	e, ok := roleTables[kind][role]
	return e.perms, ok
}

// KindRoles lists the kind's roles ordered by descending rank.
func KindRoles(kind RoomKind) []Role {
	table := roleTables[kind]
	out := make([]Role, 0, len(table))
	for role := range table {
		out = append(out, role)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && roleTables[kind][out[j]].rank > roleTables[kind][out[j-1]].rank; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
