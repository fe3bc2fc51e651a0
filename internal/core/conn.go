package core

import (
	"github.com/lithammer/shortuuid/v4"
)

// Frame is one marshaled wire message.
type Frame []byte

// ConnID identifies a single live transport binding. A user may hold
// several during a reconnect race; only the most recently bound one is
// addressed for relay.
type ConnID string

func NewConnID() ConnID { return ConnID("cn_" + shortuuid.New()) }

// Conn abstracts the system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type Conn interface {
	// TrySend enqueues without blocking and fails fast when the peer
	// cannot keep up or the connection is gone.
	TrySend(Frame) error
	Close()
}

// PublishResult reports fan-out delivery stats to the caller. Drops are
// expected under backpressure; broadcasts are best-effort.
type PublishResult struct {
	SentTo  int
	Dropped int
}
