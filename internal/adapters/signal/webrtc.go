package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/pankajbaid567/DevHub-sub000/internal/adapters/rtc"
	"github.com/pankajbaid567/DevHub-sub000/internal/domain"
)

// handleSignal relays one negotiation payload to a room peer. The shape
// is checked here so malformed SDP blobs die at the edge; the payload
// itself crosses the server opaque.
func (ctl *SignalWSController) handleSignal(ctx context.Context, s *wsSession, data []byte) {
	roomID, ok := ctl.joinedRoom(s)
	if !ok {
		return
	}
	if !ctl.signals.Allow(s.identity.UserID) {
		ctl.sendError(s.conn, "rate_limited", "signaling too fast")
		return
	}
	var p signalRequest
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad signal payload")
		ctl.sendError(s.conn, "bad_payload", "bad signal payload")
		return
	}

	kind := domain.SignalKind(p.Kind)
	if err := rtc.ValidateSignal(kind, p.Payload); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("kind", p.Kind).Msg("signal rejected")
		ctl.sendError(s.conn, "invalid_signal", err.Error())
		return
	}

	env := &domain.SignalEnvelope{
		From:    s.identity.UserID,
		To:      domain.UserID(p.Target),
		Kind:    kind,
		Payload: p.Payload,
	}
	if err := ctl.Orch.SendSignal(ctx, roomID, env); err != nil {
		ctl.sendDomainError(s.conn, err)
	}
}
