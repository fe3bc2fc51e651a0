package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/pankajbaid567/DevHub-sub000/internal/domain"
)

func (ctl *SignalWSController) handlePing(
	conn *WsSignalConn,
) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	ctl.sendJSON(conn, resp)
}

func (ctl *SignalWSController) handleWhoAmI(s *wsSession) {
	resp := struct {
		Type     string        `json:"type"`
		UserID   domain.UserID `json:"user_id"`
		Username string        `json:"username"`
		Room     domain.RoomID `json:"room,omitempty"`
	}{
		Type:     "whoami",
		UserID:   s.identity.UserID,
		Username: s.identity.Username,
	}
	if roomID, ok := s.room(); ok {
		resp.Room = roomID
	}
	ctl.sendJSON(s.conn, resp)
}

func (ctl *SignalWSController) handlePresence(ctx context.Context, s *wsSession, data []byte) {
	roomID, ok := ctl.joinedRoom(s)
	if !ok {
		return
	}
	var p presenceRequest
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad presence payload")
		ctl.sendError(s.conn, "bad_payload", "bad presence payload")
		return
	}
	if _, err := ctl.Orch.UpdatePresence(ctx, roomID, s.identity.UserID, &p.PresencePatch); err != nil {
		ctl.sendDomainError(s.conn, err)
	}
}
