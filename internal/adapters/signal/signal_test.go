package signal

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/pankajbaid567/DevHub-sub000/internal/app"
	"github.com/pankajbaid567/DevHub-sub000/internal/domain"
	"github.com/pankajbaid567/DevHub-sub000/internal/store"
)

// newSignalServer mounts the controller on a bare gin route with the
// identity resolved from query params, the same gin keys the HTTP
// middleware sets in production.
func newSignalServer(t *testing.T, cfg Config) (*httptest.Server, *app.Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewMemStore()
	reg := app.NewRegistry(st, st, app.RegistryConfig{
		DefaultCapacity: 8,
		MaxCapacity:     64,
		StoreTimeout:    time.Second,
	})
	pres := app.NewPresence(5 * time.Millisecond)
	eng := app.NewEngine()
	orch := app.NewOrchestrator(reg, pres, app.NewRelay(pres), app.NewRecorder(reg, pres, eng), eng, st, st,
		app.OrchestratorConfig{StoreTimeout: time.Second, InviteTTL: time.Hour})
	t.Cleanup(orch.Shutdown)

	ctl := NewSignalWSController(orch, st, cfg)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		c.Set("user_id", c.Query("uid"))
		c.Set("username", c.Query("uid"))
		c.Set("role_hint", c.Query("role"))
		ctl.HandleWS(context.Background(), c)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, orch
}

func makeRoom(t *testing.T, orch *app.Orchestrator, owner string, kind domain.RoomKind) domain.RoomID {
	t.Helper()
	room, err := orch.Registry.CreateRoom(context.Background(),
		domain.Identity{UserID: domain.UserID(owner), Username: owner},
		&domain.RoomSpec{Name: "wired", Kind: kind})
	require.NoError(t, err)
	return room.ID
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dialWS(t *testing.T, srv *httptest.Server, userID string) *wsClient {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?uid=" + userID
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(v any) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(v))
}

func (c *wsClient) read() map[string]any {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var out map[string]any
	require.NoError(c.t, c.conn.ReadJSON(&out))
	return out
}

// readType drains frames until the wanted type shows up, so incidental
// presence or speaker frames do not break an assertion.
func (c *wsClient) readType(want string) map[string]any {
	c.t.Helper()
	for i := 0; i < 10; i++ {
		if f := c.read(); f["type"] == want {
			return f
		}
	}
	c.t.Fatalf("never received a %q frame", want)
	return nil
}

func TestWSRejectsAnonymous(t *testing.T) {
	srv, _ := newSignalServer(t, Config{})

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err)
	require.Nil(t, conn)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	require.Equal(t, 401, resp.StatusCode)
}

func TestWSPingAndWhoAmI(t *testing.T) {
	srv, _ := newSignalServer(t, Config{})
	c := dialWS(t, srv, "u_solo")

	c.send(gin.H{"type": "ping"})
	require.Equal(t, "pong", c.read()["type"])

	c.send(gin.H{"type": "whoami"})
	who := c.read()
	require.Equal(t, "whoami", who["type"])
	require.Equal(t, "u_solo", who["user_id"])
	require.NotContains(t, who, "room")
}

func TestWSJoinDeliversRoomStateFirst(t *testing.T) {
	srv, orch := newSignalServer(t, Config{})
	roomID := makeRoom(t, orch, "u_owner", domain.KindVoiceRoom)

	c := dialWS(t, srv, "u_owner")
	c.send(gin.H{"type": "join", "room": string(roomID)})

	ack := c.read()
	require.Equal(t, "room_state", ack["type"])
	room, ok := ack["room"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, string(roomID), room["id"])

	self, ok := ack["self"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "u_owner", self["user_id"])
	require.Equal(t, "admin", self["role"])
	require.Len(t, ack["roster"], 1)
	require.NotNil(t, ack["permissions"])

	c.send(gin.H{"type": "whoami"})
	require.Equal(t, string(roomID), c.readType("whoami")["room"])

	// one room per connection
	c.send(gin.H{"type": "join", "room": string(roomID)})
	errFrame := c.readType("error")
	require.Equal(t, "already_joined", errFrame["code"])
}

func TestWSJoinUnknownRoom(t *testing.T) {
	srv, _ := newSignalServer(t, Config{})
	c := dialWS(t, srv, "u_lost")

	c.send(gin.H{"type": "join", "room": "rm_missing"})
	errFrame := c.read()
	require.Equal(t, "error", errFrame["type"])
	require.Equal(t, "room_not_found", errFrame["code"])

	// session never joined, room commands are refused
	c.send(gin.H{"type": "chat", "body": "hello?"})
	require.Equal(t, "not_joined", c.read()["code"])
}

func TestWSChatFanout(t *testing.T) {
	srv, orch := newSignalServer(t, Config{})
	roomID := makeRoom(t, orch, "u_owner", domain.KindCollab)

	owner := dialWS(t, srv, "u_owner")
	owner.send(gin.H{"type": "join", "room": string(roomID)})
	require.Equal(t, "room_state", owner.read()["type"])

	guest := dialWS(t, srv, "u_guest")
	guest.send(gin.H{"type": "join", "room": string(roomID)})
	guestAck := guest.read()
	require.Equal(t, "room_state", guestAck["type"])
	require.Len(t, guestAck["roster"], 2)

	joined := owner.readType("participant_joined")
	part, ok := joined["participant"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "u_guest", part["user_id"])

	owner.send(gin.H{"type": "chat", "body": "shipping at five"})
	for _, c := range []*wsClient{owner, guest} {
		frame := c.readType("chat")
		msg, ok := frame["message"].(map[string]any)
		require.True(t, ok)
		require.Equal(t, "shipping at five", msg["body"])
		require.Equal(t, "u_owner", msg["sender_id"])
	}
}

func TestWSLeaveNotifiesRoom(t *testing.T) {
	srv, orch := newSignalServer(t, Config{})
	roomID := makeRoom(t, orch, "u_owner", domain.KindCollab)

	owner := dialWS(t, srv, "u_owner")
	owner.send(gin.H{"type": "join", "room": string(roomID)})
	require.Equal(t, "room_state", owner.read()["type"])

	guest := dialWS(t, srv, "u_guest")
	guest.send(gin.H{"type": "join", "room": string(roomID)})
	require.Equal(t, "room_state", guest.read()["type"])

	guest.send(gin.H{"type": "leave"})
	require.Equal(t, "left", guest.readType("left")["type"])

	gone := owner.readType("participant_left")
	require.Equal(t, "u_guest", gone["actor_id"])
}

func TestWSJoinRateLimited(t *testing.T) {
	srv, orch := newSignalServer(t, Config{JoinLimit: 1, JoinWindow: time.Minute})
	roomID := makeRoom(t, orch, "u_owner", domain.KindVoiceRoom)

	first := dialWS(t, srv, "u_busy")
	first.send(gin.H{"type": "join", "room": string(roomID)})
	require.Equal(t, "room_state", first.read()["type"])

	second := dialWS(t, srv, "u_busy")
	second.send(gin.H{"type": "join", "room": string(roomID)})
	errFrame := second.read()
	require.Equal(t, "error", errFrame["type"])
	require.Equal(t, "rate_limited", errFrame["code"])
}

func TestWSBadFrames(t *testing.T) {
	srv, _ := newSignalServer(t, Config{})
	c := dialWS(t, srv, "u_noise")

	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.Equal(t, "bad_payload", c.read()["code"])

	c.send(gin.H{"type": "wave"})
	require.Equal(t, "unknown_command", c.read()["code"])
}

func TestWSSignalRelayAndPresence(t *testing.T) {
	srv, orch := newSignalServer(t, Config{})
	roomID := makeRoom(t, orch, "u_owner", domain.KindVideoSession)

	owner := dialWS(t, srv, "u_owner")
	owner.send(gin.H{"type": "join", "room": string(roomID)})
	require.Equal(t, "room_state", owner.read()["type"])

	guest := dialWS(t, srv, "u_guest")
	guest.send(gin.H{"type": "join", "room": string(roomID)})
	require.Equal(t, "room_state", guest.read()["type"])
	owner.readType("participant_joined")

	owner.send(gin.H{
		"type":    "signal",
		"target":  "u_guest",
		"kind":    "offer",
		"payload": gin.H{"type": "offer", "sdp": "v=0\r\n"},
	})
	sig := guest.readType("signal")
	require.Equal(t, "u_owner", sig["actor_id"])
	env, ok := sig["signal"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "u_owner", env["from"])
	require.Equal(t, "u_guest", env["to"])
	require.Equal(t, "offer", env["kind"])

	// a payload whose SDP type contradicts the kind dies at the edge
	owner.send(gin.H{
		"type":    "signal",
		"target":  "u_guest",
		"kind":    "offer",
		"payload": gin.H{"type": "answer", "sdp": "v=0\r\n"},
	})
	require.Equal(t, "invalid_signal", owner.readType("error")["code"])

	owner.send(gin.H{"type": "update_presence", "audio": gin.H{"enabled": true}, "speaking": true})
	pc := guest.readType("presence_changed")
	require.Equal(t, "u_owner", pc["user_id"])
	media, ok := pc["media"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, true, media["speaking"])
	audio, ok := media["audio"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, true, audio["enabled"])
}

func TestWSSignalRateLimited(t *testing.T) {
	srv, orch := newSignalServer(t, Config{SignalLimit: 1, SignalWindow: time.Minute})
	roomID := makeRoom(t, orch, "u_owner", domain.KindVideoSession)

	owner := dialWS(t, srv, "u_owner")
	owner.send(gin.H{"type": "join", "room": string(roomID)})
	require.Equal(t, "room_state", owner.read()["type"])

	guest := dialWS(t, srv, "u_guest")
	guest.send(gin.H{"type": "join", "room": string(roomID)})
	require.Equal(t, "room_state", guest.read()["type"])

	frame := gin.H{
		"type":    "signal",
		"target":  "u_guest",
		"kind":    "offer",
		"payload": gin.H{"type": "offer", "sdp": "v=0\r\n"},
	}
	owner.send(frame)
	relayed, ok := guest.readType("signal")["signal"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "offer", relayed["kind"])

	owner.send(frame)
	require.Equal(t, "rate_limited", owner.readType("error")["code"])
}
