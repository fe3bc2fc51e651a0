package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/pankajbaid567/DevHub-sub000/internal/domain"
)

const writeWait = 5 * time.Second

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.cfg.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, s *wsSession) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(s.id)).Msg("readPump closing")
		s.cancel()
		s.conn.Close()
		ctl.Orch.Disconnect(s.id)
	}()

	pongWait := ctl.cfg.PingPeriod * 10 / 9
	s.conn.conn.SetReadLimit(ctl.cfg.ReadLimit)
	_ = s.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.conn.SetPongHandler(func(string) error {
		return s.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("conn", string(s.id)).Msg("readPump ctx done")
			return
		default:
			_, data, err := s.conn.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("conn", string(s.id)).Msg("readPump read error")
				}
				return
			}
			ctl.dispatch(ctx, s, data)
		}
	}
}

func (ctl *SignalWSController) dispatch(ctx context.Context, s *wsSession, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(s.conn, "bad_payload", "not a json object")
		return
	}

	switch env.Type {
	case cmdJoin:
		ctl.handleJoin(ctx, s, data)
	case cmdLeave:
		ctl.handleLeave(ctx, s)
	case cmdPing:
		ctl.handlePing(s.conn)
	case cmdWhoAmI:
		ctl.handleWhoAmI(s)
	case cmdUpdatePresence:
		ctl.handlePresence(ctx, s, data)
	case cmdSignal:
		ctl.handleSignal(ctx, s, data)
	case cmdMute:
		ctl.handleMute(ctx, s, data)
	case cmdKick:
		ctl.handleKick(ctx, s, data)
	case cmdSetRole:
		ctl.handleSetRole(ctx, s, data)
	case cmdSetPermissions:
		ctl.handleSetPermissions(ctx, s, data)
	case cmdStartRecording:
		ctl.handleStartRecording(ctx, s)
	case cmdStopRecording:
		ctl.handleStopRecording(ctx, s, data)
	case cmdChat:
		ctl.handleChat(ctx, s, data)
	case cmdRoomData:
		ctl.handleRoomData(ctx, s, data)
	case cmdEndRoom:
		ctl.handleEndRoom(ctx, s)
	case cmdCreateInvite:
		ctl.handleCreateInvite(ctx, s, data)
	case cmdRevokeInvite:
		ctl.handleRevokeInvite(ctx, s, data)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown command")
		ctl.sendError(s.conn, "unknown_command", env.Type)
	}
}

// joinedRoom fetches the session's room or tells the client to join
// first.
func (ctl *SignalWSController) joinedRoom(s *wsSession) (domain.RoomID, bool) {
	roomID, ok := s.room()
	if !ok {
		ctl.sendError(s.conn, "not_joined", "join a room first")
	}
	return roomID, ok
}
