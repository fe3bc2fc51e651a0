package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

type SignalKind string

const (
	SignalOffer     SignalKind = "offer"
	SignalAnswer    SignalKind = "answer"
	SignalCandidate SignalKind = "candidate"
)

const MaxSignalPayload = 64 * 1024

var ErrSignalPayloadTooBig = errors.New("signal payload too big")

// SignalEnvelope is a peer negotiation message relayed verbatim between
// two participants. Payload stays opaque; SDP and ICE semantics are
// client business.
type SignalEnvelope struct {
	From    UserID          `json:"from"`
	To      UserID          `json:"to"`
	Kind    SignalKind      `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

func (e *SignalEnvelope) Validate() error {
	switch e.Kind {
	case SignalOffer, SignalAnswer, SignalCandidate:
	default:
		return fmt.Errorf("unknown signal kind %q", e.Kind)
	}
	if e.To == "" {
		return errors.New("signal target empty")
	}
	if len(e.Payload) > MaxSignalPayload {
		return ErrSignalPayloadTooBig
	}
	return nil
}
