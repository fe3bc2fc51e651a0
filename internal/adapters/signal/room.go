package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pankajbaid567/DevHub-sub000/internal/app"
	"github.com/pankajbaid567/DevHub-sub000/internal/core"
	"github.com/pankajbaid567/DevHub-sub000/internal/domain"
)

func (ctl *SignalWSController) handleJoin(ctx context.Context, s *wsSession, data []byte) {
	if _, joined := s.room(); joined {
		ctl.sendError(s.conn, "already_joined", "already in a room on this connection")
		return
	}
	var p joinRequest
	if err := json.Unmarshal(data, &p); err != nil || p.Room == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(s.conn, "bad_payload", "join needs a room id")
		return
	}
	if !ctl.joins.Allow(s.identity.UserID) {
		ctl.sendError(s.conn, "rate_limited", "too many join attempts")
		return
	}

	roomID := domain.RoomID(p.Room)
	tail := ctl.chatTail(ctx, roomID)

	res, err := ctl.Orch.Join(ctx, app.JoinRequest{
		RoomID:     roomID,
		Identity:   s.identity,
		InviteCode: domain.InviteCode(p.Invite),
		ConnID:     s.id,
		Conn:       s.conn,
		Cancel:     s.cancel,
		ComposeAck: func(r *app.JoinResult) (core.Frame, error) {
			return json.Marshal(roomStateAck{
				Type:        string(domain.EventRoomState),
				Room:        r.Room,
				Self:        r.Self,
				Permissions: r.Permissions,
				Roster:      r.Roster,
				Recording:   r.Recording,
				ChatTail:    tail,
				ICEServers:  ctl.cfg.ICEServers,
			})
		},
	})
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("room", p.Room).
			Str("user", string(s.identity.UserID)).Msg("join rejected")
		ctl.sendDomainError(s.conn, err)
		return
	}
	s.setRoom(res.Room.ID)
}

// chatTail pulls the recent message history for the join snapshot;
// best-effort, a failed read just means an empty tail.
func (ctl *SignalWSController) chatTail(ctx context.Context, roomID domain.RoomID) []*domain.ChatMessage {
	msgs, _, err := ctl.store.ListChatMessages(ctx, roomID, ctl.cfg.ChatTail, "")
	if err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("room", string(roomID)).Msg("chat tail read failed")
		return nil
	}
	return msgs
}

func (ctl *SignalWSController) handleLeave(ctx context.Context, s *wsSession) {
	roomID, ok := ctl.joinedRoom(s)
	if !ok {
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(s.id)).Str("room", string(roomID)).Msg("leave")

	ctl.sendJSON(s.conn, struct {
		Type string `json:"type"`
	}{Type: "left"})

	if err := ctl.Orch.Leave(ctx, roomID, s.identity.UserID); err != nil {
		ctl.sendDomainError(s.conn, err)
		return
	}
	s.clearRoom()
}

func (ctl *SignalWSController) handleEndRoom(ctx context.Context, s *wsSession) {
	roomID, ok := ctl.joinedRoom(s)
	if !ok {
		return
	}
	if err := ctl.Orch.EndRoom(ctx, roomID, s.identity.UserID); err != nil {
		ctl.sendDomainError(s.conn, err)
	}
}

func (ctl *SignalWSController) handleCreateInvite(ctx context.Context, s *wsSession, data []byte) {
	roomID, ok := ctl.joinedRoom(s)
	if !ok {
		return
	}
	var p inviteRequest
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(s.conn, "bad_payload", "bad invite payload")
		return
	}
	invite, err := ctl.Orch.CreateInvite(ctx, roomID, s.identity.UserID,
		time.Duration(p.TTLSec)*time.Second, p.MaxUses)
	if err != nil {
		ctl.sendDomainError(s.conn, err)
		return
	}
	ctl.sendJSON(s.conn, struct {
		Type   string         `json:"type"`
		Invite *domain.Invite `json:"invite"`
	}{Type: "invite_created", Invite: invite})
}

func (ctl *SignalWSController) handleRevokeInvite(ctx context.Context, s *wsSession, data []byte) {
	roomID, ok := ctl.joinedRoom(s)
	if !ok {
		return
	}
	var p inviteRequest
	if err := json.Unmarshal(data, &p); err != nil || p.Code == "" {
		ctl.sendError(s.conn, "bad_payload", "revoke needs a code")
		return
	}
	if err := ctl.Orch.RevokeInvite(ctx, roomID, s.identity.UserID, domain.InviteCode(p.Code)); err != nil {
		ctl.sendDomainError(s.conn, err)
		return
	}
	ctl.sendJSON(s.conn, struct {
		Type string `json:"type"`
		Code string `json:"code"`
	}{Type: "invite_revoked", Code: p.Code})
}
