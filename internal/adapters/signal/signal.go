package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/pankajbaid567/DevHub-sub000/internal/app"
	"github.com/pankajbaid567/DevHub-sub000/internal/core"
	"github.com/pankajbaid567/DevHub-sub000/internal/domain"
	"github.com/pankajbaid567/DevHub-sub000/internal/store"
)

var ErrBackpressure = errors.New("backpressure")

const sendBuffer = 32

// Config tunes the ws controller; main fills it from the config file.
type Config struct {
	ReadLimit    int64
	PingPeriod   time.Duration
	JoinLimit    int
	JoinWindow   time.Duration
	SignalLimit  int
	SignalWindow time.Duration
	ChatTail     int
	ICEServers   []webrtc.ICEServer
}

type SignalWSController struct {
	Orch *app.Orchestrator

	store   store.Store
	joins   *RoomRateLimiter
	signals *RoomRateLimiter
	cfg     Config
}

func NewSignalWSController(orch *app.Orchestrator, st store.Store, cfg Config) *SignalWSController {
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = 32768
	}
	if cfg.PingPeriod <= 0 {
		cfg.PingPeriod = 54 * time.Second
	}
	if cfg.JoinLimit <= 0 {
		cfg.JoinLimit = 10
	}
	if cfg.JoinWindow <= 0 {
		cfg.JoinWindow = time.Minute
	}
	// negotiation is bursty, trickle ICE alone can emit dozens of frames
	if cfg.SignalLimit <= 0 {
		cfg.SignalLimit = 600
	}
	if cfg.SignalWindow <= 0 {
		cfg.SignalWindow = time.Minute
	}
	if cfg.ChatTail <= 0 {
		cfg.ChatTail = 30
	}
	return &SignalWSController{
		Orch:    orch,
		store:   st,
		joins:   NewRoomRateLimiter(cfg.JoinLimit, cfg.JoinWindow),
		signals: NewRoomRateLimiter(cfg.SignalLimit, cfg.SignalWindow),
		cfg:     cfg,
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// wsSession is one socket's view: the identity it authenticated as and
// the room it joined, if any.
type wsSession struct {
	id       core.ConnID
	identity domain.Identity
	conn     *WsSignalConn
	cancel   context.CancelFunc

	mu     sync.RWMutex
	roomID domain.RoomID
	joined bool
}

func (s *wsSession) room() (domain.RoomID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roomID, s.joined
}

func (s *wsSession) setRoom(id domain.RoomID) {
	s.mu.Lock()
	s.roomID = id
	s.joined = true
	s.mu.Unlock()
}

func (s *wsSession) clearRoom() {
	s.mu.Lock()
	s.roomID = ""
	s.joined = false
	s.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS upgrades the request and runs the session pumps. Identity is
// whatever the HTTP middleware resolved; the socket dies with its
// context.
func (ctl *SignalWSController) HandleWS(ctx context.Context, c *gin.Context) {
	identity := domain.Identity{
		UserID:   domain.UserID(c.GetString("user_id")),
		Username: c.GetString("username"),
		RoleHint: domain.Role(c.GetString("role_hint")),
	}
	if err := identity.Validate(); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, sendBuffer),
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &wsSession{
		id:       core.NewConnID(),
		identity: identity,
		conn:     conn,
		cancel:   cancel,
	}
	log.Info().Str("module", "signal").Str("conn", string(s.id)).
		Str("user", string(identity.UserID)).Msg("new WS connection")

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, s)
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, code, msg string) {
	ctl.sendJSON(c, errorResponse{Type: "error", Code: code, Message: msg})
}

func (ctl *SignalWSController) sendDomainError(c *WsSignalConn, err error) {
	ctl.sendError(c, errorCodeFor(err), err.Error())
}
