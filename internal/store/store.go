// Package store persists rooms, membership and session artifacts.
// The registry owns the authoritative in-memory state; implementations
// here are the durability behind it and must map their not-found
// conditions onto the domain sentinels.
package store

import (
	"context"
	"time"

	"github.com/pankajbaid567/DevHub-sub000/internal/domain"
)

// Store is the durable record of rooms and everything appended to them.
type Store interface {
	CreateRoom(ctx context.Context, room *domain.Room) error
	GetRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	UpdateRoom(ctx context.Context, room *domain.Room) error
	// ListRooms pages through non-ended rooms of one visibility,
	// newest first. An empty cursor starts from the top; the returned
	// cursor is empty on the last page.
	ListRooms(ctx context.Context, visibility domain.Visibility, limit int, cursor string) ([]*domain.Room, string, error)

	UpsertParticipant(ctx context.Context, p *domain.Participant) error
	GetParticipant(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (*domain.Participant, error)
	ListParticipants(ctx context.Context, roomID domain.RoomID) ([]*domain.Participant, error)

	SaveRecording(ctx context.Context, rec *domain.Recording) error
	ListRecordings(ctx context.Context, roomID domain.RoomID) ([]*domain.Recording, error)

	SaveChatMessage(ctx context.Context, msg *domain.ChatMessage) error
	ListChatMessages(ctx context.Context, roomID domain.RoomID, limit int, cursor string) ([]*domain.ChatMessage, string, error)

	SaveRoomData(ctx context.Context, blob *domain.RoomDataBlob) error
	ListRoomData(ctx context.Context, roomID domain.RoomID, topic string, limit int) ([]*domain.RoomDataBlob, error)

	Close()
}

// InviteStore issues and redeems room invite codes.
type InviteStore interface {
	CreateInvite(ctx context.Context, inv *domain.Invite) error
	GetInvite(ctx context.Context, code domain.InviteCode) (*domain.Invite, error)
	// ConsumeInvite atomically counts one redemption and returns the
	// invite; expired, exhausted and unknown codes all surface
	// domain.ErrInvalidInviteCode.
	ConsumeInvite(ctx context.Context, code domain.InviteCode) (*domain.Invite, error)
	RevokeInvite(ctx context.Context, code domain.InviteCode) error
}

// SnapshotStore keeps short-lived voice state snapshots the registry
// flushes periodically; purely observational, never read back into the
// live state.
type SnapshotStore interface {
	SaveVoiceSnapshot(ctx context.Context, roomID domain.RoomID, data []byte, ttl time.Duration) error
	LoadVoiceSnapshot(ctx context.Context, roomID domain.RoomID) ([]byte, error)
}
