package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/pankajbaid567/DevHub-sub000/internal/domain"
)

func (ctl *SignalWSController) handleMute(ctx context.Context, s *wsSession, data []byte) {
	roomID, ok := ctl.joinedRoom(s)
	if !ok {
		return
	}
	var p muteRequest
	if err := json.Unmarshal(data, &p); err != nil || p.Target == "" {
		ctl.sendError(s.conn, "bad_payload", "mute needs a target")
		return
	}
	if _, err := ctl.Orch.Mute(ctx, roomID, s.identity.UserID, domain.UserID(p.Target), p.Mute); err != nil {
		ctl.sendDomainError(s.conn, err)
	}
}

func (ctl *SignalWSController) handleKick(ctx context.Context, s *wsSession, data []byte) {
	roomID, ok := ctl.joinedRoom(s)
	if !ok {
		return
	}
	var p kickRequest
	if err := json.Unmarshal(data, &p); err != nil || p.Target == "" {
		ctl.sendError(s.conn, "bad_payload", "kick needs a target")
		return
	}
	log.Info().Str("module", "signal").Str("room", string(roomID)).
		Str("actor", string(s.identity.UserID)).Str("target", p.Target).Msg("kick requested")
	if err := ctl.Orch.Kick(ctx, roomID, s.identity.UserID, domain.UserID(p.Target), p.Reason); err != nil {
		ctl.sendDomainError(s.conn, err)
	}
}

func (ctl *SignalWSController) handleSetRole(ctx context.Context, s *wsSession, data []byte) {
	roomID, ok := ctl.joinedRoom(s)
	if !ok {
		return
	}
	var p roleRequest
	if err := json.Unmarshal(data, &p); err != nil || p.Target == "" || p.Role == "" {
		ctl.sendError(s.conn, "bad_payload", "set_role needs a target and a role")
		return
	}
	if _, err := ctl.Orch.SetRole(ctx, roomID, s.identity.UserID, domain.UserID(p.Target), domain.Role(p.Role)); err != nil {
		ctl.sendDomainError(s.conn, err)
	}
}

func (ctl *SignalWSController) handleSetPermissions(ctx context.Context, s *wsSession, data []byte) {
	roomID, ok := ctl.joinedRoom(s)
	if !ok {
		return
	}
	var p permissionsRequest
	if err := json.Unmarshal(data, &p); err != nil || p.Target == "" {
		ctl.sendError(s.conn, "bad_payload", "set_permissions needs a target")
		return
	}
	if _, err := ctl.Orch.SetPermissions(ctx, roomID, s.identity.UserID, domain.UserID(p.Target), p.Overrides); err != nil {
		ctl.sendDomainError(s.conn, err)
	}
}
