package domain

import "time"

// TrackState is one media track as last reported (enabled) and as
// moderated (muted).
type TrackState struct {
	Enabled bool `json:"enabled"`
	Muted   bool `json:"muted"`
}

// MediaState is the transient media picture of one participant.
// ForcedMute is server-authoritative: while set, self-reported updates
// cannot clear the audio mute; only a moderator unmute clears it.
type MediaState struct {
	Audio      TrackState `json:"audio"`
	Video      TrackState `json:"video"`
	Screen     TrackState `json:"screen"`
	Speaking   bool       `json:"speaking"`
	Deafened   bool       `json:"deafened"`
	ForcedMute bool       `json:"forced_mute"`
}

// PresencePatch is a partial self-reported update; nil fields keep the
// current value.
type PresencePatch struct {
	Audio    *TrackState `json:"audio,omitempty"`
	Video    *TrackState `json:"video,omitempty"`
	Screen   *TrackState `json:"screen,omitempty"`
	Speaking *bool       `json:"speaking,omitempty"`
	Deafened *bool       `json:"deafened,omitempty"`
}

// Apply merges a patch into the state, preserving a forced mute.
func (m *MediaState) Apply(p *PresencePatch) {
	if p == nil {
		return
	}
	if p.Audio != nil {
		m.Audio = *p.Audio
	}
	if p.Video != nil {
		m.Video = *p.Video
	}
	if p.Screen != nil {
		m.Screen = *p.Screen
	}
	if p.Speaking != nil {
		m.Speaking = *p.Speaking
	}
	if p.Deafened != nil {
		m.Deafened = *p.Deafened
	}
	if m.ForcedMute {
		m.Audio.Muted = true
	}
}

// Participant is the durable (room, user) membership record. Exactly one
// present record may exist per pair; rejoining reactivates it.
type Participant struct {
	RoomID    RoomID               `json:"-"`
	UserID    UserID               `json:"user_id"`
	Username  string               `json:"username"`
	Role      Role                 `json:"role"`
	Overrides *PermissionOverrides `json:"overrides,omitempty"`
	IsPresent bool                 `json:"is_present"`
	Media     MediaState           `json:"media"`
	JoinedAt  time.Time            `json:"joined_at"`
	LastSeen  time.Time            `json:"last_seen"`
	LeftAt    *time.Time           `json:"left_at,omitempty"`
}

// NewParticipant builds a freshly joined record. muteOnEntry seeds the
// audio track muted without forcing it.
func NewParticipant(roomID RoomID, id Identity, role Role, muteOnEntry bool) *Participant {
	now := time.Now().UTC()
	p := &Participant{
		RoomID:    roomID,
		UserID:    id.UserID,
		Username:  id.Username,
		Role:      role,
		IsPresent: true,
		JoinedAt:  now,
		LastSeen:  now,
	}
	p.Media.Audio.Muted = muteOnEntry
	return p
}

// Rejoin reactivates a departed record in place.
func (p *Participant) Rejoin(username string, muteOnEntry bool) {
	now := time.Now().UTC()
	p.Username = username
	p.IsPresent = true
	p.JoinedAt = now
	p.LastSeen = now
	p.LeftAt = nil
	p.Media = MediaState{}
	p.Media.Audio.Muted = muteOnEntry
}

// Touch refreshes the activity stamp.
func (p *Participant) Touch() { p.LastSeen = time.Now().UTC() }

// Depart flips presence off and stamps LeftAt; no-op when already
// departed.
func (p *Participant) Depart() bool {
	if !p.IsPresent {
		return false
	}
	p.IsPresent = false
	now := time.Now().UTC()
	p.LeftAt = &now
	p.Media = MediaState{}
	return true
}
