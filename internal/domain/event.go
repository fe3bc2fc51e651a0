package domain

import "time"

// EventType names one entry kind of a room's event stream. The same
// strings are the wire "type" discriminator on the socket.
type EventType string

const (
	EventRoomState         EventType = "room_state"
	EventParticipantJoined EventType = "participant_joined"
	EventParticipantLeft   EventType = "participant_left"
	EventPresenceChanged   EventType = "presence_changed"
	EventPermissionChanged EventType = "permission_changed"
	EventSignal            EventType = "signal"
	EventKicked            EventType = "kicked"
	EventRecordingStarted  EventType = "recording_started"
	EventRecordingStopped  EventType = "recording_stopped"
	EventRoomEnded         EventType = "room_ended"
	EventActiveSpeakers    EventType = "active_speakers"
	EventChat              EventType = "chat"
	EventRoomData          EventType = "room_data"
)

// EventHead is the envelope on every room event: kind, room scope, the
// acting user when there is one, and a milliseconds timestamp.
type EventHead struct {
	Type  EventType `json:"type"`
	Room  RoomID    `json:"room_id"`
	Actor UserID    `json:"actor_id,omitempty"`
	TS    int64     `json:"ts"`
}

func NewEventHead(t EventType, room RoomID, actor UserID) EventHead {
	return EventHead{Type: t, Room: room, Actor: actor, TS: time.Now().UnixMilli()}
}

// RoomStateEvent announces a room-level change, settings most commonly.
// The join acknowledgement reuses the same type with the full snapshot
// attached by the transport.
type RoomStateEvent struct {
	EventHead
	Room *Room `json:"room"`
}

type ParticipantJoinedEvent struct {
	EventHead
	Participant *Participant `json:"participant"`
}

type ParticipantLeftEvent struct {
	EventHead
	UserID UserID `json:"user_id"`
	Reason string `json:"reason,omitempty"`
}

type PresenceChangedEvent struct {
	EventHead
	UserID UserID     `json:"user_id"`
	Media  MediaState `json:"media"`
}

type PermissionChangedEvent struct {
	EventHead
	UserID      UserID        `json:"user_id"`
	Role        Role          `json:"role"`
	Permissions PermissionSet `json:"permissions"`
}

type SignalEvent struct {
	EventHead
	Signal *SignalEnvelope `json:"signal"`
}

// KickedEvent goes to the victim's connections only; the room sees a
// ParticipantLeftEvent with reason "kicked".
type KickedEvent struct {
	EventHead
	Reason string `json:"reason,omitempty"`
}

type RecordingStartedEvent struct {
	EventHead
	Recording *Recording `json:"recording"`
}

type RecordingStoppedEvent struct {
	EventHead
	Recording *Recording `json:"recording"`
}

type RoomEndedEvent struct {
	EventHead
}

type ActiveSpeakersEvent struct {
	EventHead
	Speakers []UserID `json:"speakers"`
}

type ChatEvent struct {
	EventHead
	Message *ChatMessage `json:"message"`
}

type RoomDataEvent struct {
	EventHead
	Data *RoomDataBlob `json:"data"`
}
