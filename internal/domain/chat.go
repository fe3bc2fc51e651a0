package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/lithammer/shortuuid/v4"
)

const (
	MaxChatBodyLen  = 2000
	MaxRoomDataSize = 64 * 1024
)

var (
	ErrChatBodyEmpty   = errors.New("chat body empty")
	ErrChatBodyTooLong = errors.New("chat body too long")
	ErrRoomDataTooBig  = errors.New("room data payload too big")
)

type MessageID string

func NewMessageID() MessageID { return MessageID("msg_" + shortuuid.New()) }

// ChatMessage is an append-only room message. TargetID, when set, makes
// it private: delivered only to the target and echoed to the sender.
type ChatMessage struct {
	ID         MessageID `json:"id"`
	RoomID     RoomID    `json:"room_id"`
	SenderID   UserID    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	TargetID   UserID    `json:"target_id,omitempty"`
	Body       string    `json:"body"`
	SentAt     time.Time `json:"sent_at"`
}

func NewChatMessage(roomID RoomID, sender Identity, target UserID, body string) (*ChatMessage, error) {
	if len(body) == 0 {
		return nil, ErrChatBodyEmpty
	}
	if len(body) > MaxChatBodyLen {
		return nil, ErrChatBodyTooLong
	}
	return &ChatMessage{
		ID:         NewMessageID(),
		RoomID:     roomID,
		SenderID:   sender.UserID,
		SenderName: sender.Username,
		TargetID:   target,
		Body:       body,
		SentAt:     time.Now().UTC(),
	}, nil
}

// RoomDataBlob is an opaque collaboration payload (whiteboard stroke,
// cursor sync, poll state). The core stores and fans it out without
// parsing it; Topic lets clients multiplex payload families.
type RoomDataBlob struct {
	ID       MessageID       `json:"id"`
	RoomID   RoomID          `json:"room_id"`
	SenderID UserID          `json:"sender_id"`
	Topic    string          `json:"topic"`
	Payload  json.RawMessage `json:"payload"`
	SentAt   time.Time       `json:"sent_at"`
}

func NewRoomDataBlob(roomID RoomID, sender UserID, topic string, payload json.RawMessage) (*RoomDataBlob, error) {
	if len(payload) > MaxRoomDataSize {
		return nil, ErrRoomDataTooBig
	}
	return &RoomDataBlob{
		ID:       NewMessageID(),
		RoomID:   roomID,
		SenderID: sender,
		Topic:    topic,
		Payload:  payload,
		SentAt:   time.Now().UTC(),
	}, nil
}
