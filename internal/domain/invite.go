package domain

import (
	"time"

	"github.com/lithammer/shortuuid/v4"
)

type InviteCode string

func NewInviteCode() InviteCode { return InviteCode(shortuuid.New()[:10]) }

// Invite grants room joins through a short shareable code. MaxUses zero
// means unlimited redemptions until expiry.
type Invite struct {
	Code      InviteCode `json:"code"`
	RoomID    RoomID     `json:"room_id"`
	CreatedBy UserID     `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	MaxUses   int        `json:"max_uses,omitempty"`
	Uses      int        `json:"uses,omitempty"`
}

func NewInvite(roomID RoomID, by UserID, ttl time.Duration, maxUses int) *Invite {
	now := time.Now().UTC()
	return &Invite{
		Code:      NewInviteCode(),
		RoomID:    roomID,
		CreatedBy: by,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		MaxUses:   maxUses,
	}
}

func (i *Invite) Expired(at time.Time) bool {
	return at.After(i.ExpiresAt)
}

// Exhausted reports whether the use budget is spent.
func (i *Invite) Exhausted() bool {
	return i.MaxUses > 0 && i.Uses >= i.MaxUses
}
