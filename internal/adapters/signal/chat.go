package signal

import (
	"context"
	"encoding/json"

	"github.com/pankajbaid567/DevHub-sub000/internal/domain"
)

func (ctl *SignalWSController) handleChat(ctx context.Context, s *wsSession, data []byte) {
	roomID, ok := ctl.joinedRoom(s)
	if !ok {
		return
	}
	var p chatRequest
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(s.conn, "bad_payload", "bad chat payload")
		return
	}
	if _, err := ctl.Orch.Chat(ctx, roomID, s.identity.UserID, p.Body, domain.UserID(p.Target)); err != nil {
		ctl.sendDomainError(s.conn, err)
	}
}

func (ctl *SignalWSController) handleRoomData(ctx context.Context, s *wsSession, data []byte) {
	roomID, ok := ctl.joinedRoom(s)
	if !ok {
		return
	}
	var p roomDataRequest
	if err := json.Unmarshal(data, &p); err != nil || p.Topic == "" {
		ctl.sendError(s.conn, "bad_payload", "room_data needs a topic")
		return
	}
	if _, err := ctl.Orch.ShareRoomData(ctx, roomID, s.identity.UserID, p.Topic, p.Payload); err != nil {
		ctl.sendDomainError(s.conn, err)
	}
}
