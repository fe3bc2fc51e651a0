package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/pankajbaid567/DevHub-sub000/internal/domain"
	"github.com/pankajbaid567/DevHub-sub000/internal/telemetry"
)

// Relay forwards WebRTC negotiation payloads between participants of one
// room. Payloads are opaque: validated for shape and size, never parsed.
type Relay struct {
	presence *Presence
}

func NewRelay(p *Presence) *Relay {
	return &Relay{presence: p}
}

// Forward pushes env to the target's most recent connection. A target
// with no connection in the room is not an error: negotiation is racy
// around departures, so the frame is counted and dropped.
func (r *Relay) Forward(roomID domain.RoomID, env *domain.SignalEnvelope) error {
	if err := env.Validate(); err != nil {
		return err
	}
	evt := &domain.SignalEvent{
		EventHead: domain.NewEventHead(domain.EventSignal, roomID, env.From),
		Signal:    env,
	}
	frame, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	if !r.presence.Deliver(roomID, env.To, frame) {
		telemetry.SignalRelayed(false)
		log.Debug().Str("module", "app.relay").Str("room", string(roomID)).
			Str("from", string(env.From)).Str("to", string(env.To)).
			Str("kind", string(env.Kind)).Msg("signal dropped, target not connected")
		return nil
	}
	telemetry.SignalRelayed(true)
	return nil
}
