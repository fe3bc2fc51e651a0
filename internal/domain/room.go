package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
)

type (
	RoomID     string
	RoomKind   string
	Visibility string
	RoomStatus string
)

const (
	KindVideoSession RoomKind = "video_session"
	KindVoiceRoom    RoomKind = "voice_room"
	KindCollab       RoomKind = "collab"
)

const (
	VisibilityPublic     Visibility = "public"
	VisibilityPrivate    Visibility = "private"
	VisibilityInviteOnly Visibility = "invite_only"
)

const (
	StatusScheduled RoomStatus = "scheduled"
	StatusLive      RoomStatus = "live"
	StatusEnded     RoomStatus = "ended"
)

const (
	MaxRoomNameLen  = 80
	MinRoomCapacity = 2
)

// RoomSettings are owner-tunable toggles applied at join time and during
// the session.
type RoomSettings struct {
	MuteOnEntry      bool `json:"mute_on_entry"`
	RecordingAllowed bool `json:"recording_allowed"`
	ChatAllowed      bool `json:"chat_allowed"`
	RequireApproval  bool `json:"require_approval"`
}

// RoomSpec is a room creation request. Zero Capacity, empty Visibility
// and an all-zero Settings block are filled with platform defaults
// before validation.
type RoomSpec struct {
	Name        string       `json:"name"`
	Kind        RoomKind     `json:"kind"`
	Visibility  Visibility   `json:"visibility"`
	Capacity    int          `json:"capacity"`
	Settings    RoomSettings `json:"settings"`
	ScheduledAt *time.Time   `json:"scheduled_at,omitempty"`
}

func (s *RoomSpec) Validate(maxCapacity int) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name required", ErrInvalidRoomSpec)
	}
	if len(s.Name) > MaxRoomNameLen {
		return fmt.Errorf("%w: name longer than %d", ErrInvalidRoomSpec, MaxRoomNameLen)
	}
	switch s.Kind {
	case KindVideoSession, KindVoiceRoom, KindCollab:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRoomSpec, s.Kind)
	}
	switch s.Visibility {
	case VisibilityPublic, VisibilityPrivate, VisibilityInviteOnly:
	default:
		return fmt.Errorf("%w: unknown visibility %q", ErrInvalidRoomSpec, s.Visibility)
	}
	if s.Capacity < MinRoomCapacity {
		return fmt.Errorf("%w: capacity below %d", ErrInvalidRoomSpec, MinRoomCapacity)
	}
	if s.Capacity > maxCapacity {
		return fmt.Errorf("%w: capacity above %d", ErrInvalidRoomSpec, maxCapacity)
	}
	return nil
}

type Room struct {
	ID          RoomID       `json:"id"`
	Name        string       `json:"name"`
	Kind        RoomKind     `json:"kind"`
	OwnerID     UserID       `json:"owner_id"`
	Visibility  Visibility   `json:"visibility"`
	Status      RoomStatus   `json:"status"`
	Capacity    int          `json:"capacity"`
	Settings    RoomSettings `json:"settings"`
	ScheduledAt *time.Time   `json:"scheduled_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	EndedAt     *time.Time   `json:"ended_at,omitempty"`
}

func NewRoomID() RoomID { return RoomID("rm_" + shortuuid.New()) }

// NewRoom builds the durable record for an already validated spec.
// Rooms scheduled for the future start as StatusScheduled and go live on
// the first successful join.
func NewRoom(spec *RoomSpec, owner UserID) *Room {
	now := time.Now().UTC()
	status := StatusLive
	if spec.ScheduledAt != nil && spec.ScheduledAt.After(now) {
		status = StatusScheduled
	}
	return &Room{
		ID:          NewRoomID(),
		Name:        spec.Name,
		Kind:        spec.Kind,
		OwnerID:     owner,
		Visibility:  spec.Visibility,
		Status:      status,
		Capacity:    spec.Capacity,
		Settings:    spec.Settings,
		ScheduledAt: spec.ScheduledAt,
		CreatedAt:   now,
	}
}

func (r *Room) Ended() bool { return r.Status == StatusEnded }

// RequiresInvite reports whether a join must present an invite code.
// The owner is exempt; the orchestrator handles that case.
func (r *Room) RequiresInvite() bool {
	return r.Visibility != VisibilityPublic || r.Settings.RequireApproval
}
