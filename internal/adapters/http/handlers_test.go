package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/pankajbaid567/DevHub-sub000/internal/adapters/signal"
	"github.com/pankajbaid567/DevHub-sub000/internal/app"
	"github.com/pankajbaid567/DevHub-sub000/internal/config"
	"github.com/pankajbaid567/DevHub-sub000/internal/domain"
	"github.com/pankajbaid567/DevHub-sub000/internal/store"
)

func newTestRouter(t *testing.T, allowGuests bool) (*gin.Engine, *store.MemStore) {
	t.Helper()

	st := store.NewMemStore()
	reg := app.NewRegistry(st, st, app.RegistryConfig{
		DefaultCapacity: 8,
		MaxCapacity:     64,
		StoreTimeout:    time.Second,
	})
	pres := app.NewPresence(10 * time.Millisecond)
	eng := app.NewEngine()
	orch := app.NewOrchestrator(reg, pres, app.NewRelay(pres), app.NewRecorder(reg, pres, eng), eng, st, st,
		app.OrchestratorConfig{StoreTimeout: time.Second, InviteTTL: time.Hour})
	t.Cleanup(orch.Shutdown)

	cfg := &config.Config{}
	cfg.Server.Mode = "release"
	cfg.Server.Secret = "test-secret"
	cfg.Identity.AllowGuests = allowGuests

	ctl := signal.NewSignalWSController(orch, st, signal.Config{})
	return SetupRouter(context.Background(), cfg, orch, st, ctl), st
}

func doJSON(t *testing.T, r *gin.Engine, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

func createRoomREST(t *testing.T, r *gin.Engine, userID, name, kind string) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/rooms", userID, gin.H{"name": name, "kind": kind})
	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())
	id, _ := decodeBody(t, w)["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t, true)

	w := doJSON(t, r, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", decodeBody(t, w)["status"])
}

func TestMetricsExposed(t *testing.T) {
	r, _ := newTestRouter(t, true)

	w := doJSON(t, r, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestCreateAndFetchRoom(t *testing.T) {
	r, _ := newTestRouter(t, true)

	w := doJSON(t, r, http.MethodPost, "/api/rooms", "u_owner", gin.H{
		"name": "standup",
		"kind": "video_session",
	})
	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())

	created := decodeBody(t, w)
	roomID, _ := created["id"].(string)
	require.NotEmpty(t, roomID)
	require.Equal(t, "u_owner", created["owner_id"])
	require.Equal(t, "live", created["status"])
	require.EqualValues(t, 8, created["capacity"])

	w = doJSON(t, r, http.MethodGet, "/api/rooms/"+roomID, "u_other", nil)
	require.Equal(t, http.StatusOK, w.Code)
	sum := decodeBody(t, w)
	require.Equal(t, "standup", sum["name"])
	require.EqualValues(t, 0, sum["present_count"])

	w = doJSON(t, r, http.MethodGet, "/api/rooms", "u_other", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeBody(t, w)
	require.Len(t, list["rooms"], 1)
	require.Equal(t, "", list["next_cursor"])
}

func TestCreateRoomRejectsBadBodies(t *testing.T) {
	r, _ := newTestRouter(t, true)

	// binding: name and kind are required
	w := doJSON(t, r, http.MethodPost, "/api/rooms", "u1", gin.H{"kind": "voice_room"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// valid JSON, unknown kind
	w = doJSON(t, r, http.MethodPost, "/api/rooms", "u1", gin.H{"name": "x", "kind": "karaoke"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// capacity above the platform ceiling
	w = doJSON(t, r, http.MethodPost, "/api/rooms", "u1", gin.H{"name": "x", "kind": "voice_room", "capacity": 500})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRoomNotFound(t *testing.T) {
	r, _ := newTestRouter(t, true)

	w := doJSON(t, r, http.MethodGet, "/api/rooms/rm_missing", "u1", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestListRoomsPagination(t *testing.T) {
	r, _ := newTestRouter(t, true)

	for _, name := range []string{"alpha", "beta", "gamma"} {
		createRoomREST(t, r, "u_owner", name, "voice_room")
	}

	w := doJSON(t, r, http.MethodGet, "/api/rooms?limit=2", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decodeBody(t, w)
	require.Len(t, page["rooms"], 2)
	next, _ := page["next_cursor"].(string)
	require.NotEmpty(t, next)

	w = doJSON(t, r, http.MethodGet, "/api/rooms?limit=2&cursor="+next, "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page = decodeBody(t, w)
	require.Len(t, page["rooms"], 1)
	require.Equal(t, "", page["next_cursor"])

	w = doJSON(t, r, http.MethodGet, "/api/rooms?cursor=garbage", "u1", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGuestIdentityMinted(t *testing.T) {
	r, _ := newTestRouter(t, true)

	w := doJSON(t, r, http.MethodPost, "/api/rooms", "", gin.H{"name": "drop-in", "kind": "voice_room"})
	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())
	require.NotEmpty(t, w.Header().Get("Set-Cookie"), "guest identity should be pinned to the session")

	owner, _ := decodeBody(t, w)["owner_id"].(string)
	require.NotEmpty(t, owner)
}

func TestGuestsRejectedWhenDisabled(t *testing.T) {
	r, _ := newTestRouter(t, false)

	w := doJSON(t, r, http.MethodPost, "/api/rooms", "", gin.H{"name": "x", "kind": "voice_room"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// forwarded identity still works
	w = doJSON(t, r, http.MethodPost, "/api/rooms", "u1", gin.H{"name": "x", "kind": "voice_room"})
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestEndRoomOverREST(t *testing.T) {
	r, _ := newTestRouter(t, true)
	roomID := createRoomREST(t, r, "u_owner", "ops", "video_session")

	// a stranger has no seat and no claim
	w := doJSON(t, r, http.MethodDelete, "/api/rooms/"+roomID, "u_stranger", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	// the owner never joined the socket but may still end the room
	w = doJSON(t, r, http.MethodDelete, "/api/rooms/"+roomID, "u_owner", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/rooms/"+roomID, "u_owner", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ended", decodeBody(t, w)["status"])

	// ending twice is a no-op
	w = doJSON(t, r, http.MethodDelete, "/api/rooms/"+roomID, "u_owner", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestUpdateSettingsOverREST(t *testing.T) {
	r, _ := newTestRouter(t, true)
	roomID := createRoomREST(t, r, "u_owner", "quiet", "voice_room")

	w := doJSON(t, r, http.MethodPatch, "/api/rooms/"+roomID+"/settings", "u_owner", gin.H{
		"mute_on_entry": true,
		"chat_allowed":  false,
	})
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())

	room := decodeBody(t, w)
	settings, ok := room["settings"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, true, settings["mute_on_entry"])
	require.Equal(t, false, settings["chat_allowed"])

	w = doJSON(t, r, http.MethodPatch, "/api/rooms/"+roomID+"/settings", "u_stranger", gin.H{"chat_allowed": true})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestInviteLifecycleOverREST(t *testing.T) {
	r, _ := newTestRouter(t, true)
	roomID := createRoomREST(t, r, "u_owner", "private", "collab")

	// empty body falls back to configured defaults
	w := doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/invites", "u_owner", nil)
	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())
	inv := decodeBody(t, w)
	code, _ := inv["code"].(string)
	require.NotEmpty(t, code)
	expires, err := time.Parse(time.RFC3339, inv["expires_at"].(string))
	require.NoError(t, err)
	require.InDelta(t, time.Hour.Seconds(), time.Until(expires).Seconds(), 60)

	// explicit ttl and use budget
	w = doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/invites", "u_owner", gin.H{"ttl_sec": 60, "max_uses": 2})
	require.Equal(t, http.StatusCreated, w.Code)
	require.EqualValues(t, 2, decodeBody(t, w)["max_uses"])

	// strangers cannot mint codes
	w = doJSON(t, r, http.MethodPost, "/api/rooms/"+roomID+"/invites", "u_stranger", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/api/rooms/"+roomID+"/invites/"+code, "u_owner", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	// revoked codes are gone
	w = doJSON(t, r, http.MethodDelete, "/api/rooms/"+roomID+"/invites/"+code, "u_owner", nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestHistoryEndpoints(t *testing.T) {
	r, st := newTestRouter(t, true)
	roomID := domain.RoomID(createRoomREST(t, r, "u_owner", "archive", "collab"))
	ctx := context.Background()

	for _, body := range []string{"first", "second"} {
		msg, err := domain.NewChatMessage(roomID, domain.Identity{UserID: "u_owner", Username: "owner"}, "", body)
		require.NoError(t, err)
		require.NoError(t, st.SaveChatMessage(ctx, msg))
	}
	rec := domain.NewRecording(roomID, "u_owner")
	rec.Finish("s3://bucket/archive.mp4")
	require.NoError(t, st.SaveRecording(ctx, rec))
	for _, topic := range []string{"whiteboard", "poll"} {
		blob, err := domain.NewRoomDataBlob(roomID, "u_owner", topic, json.RawMessage(`{"v":1}`))
		require.NoError(t, err)
		require.NoError(t, st.SaveRoomData(ctx, blob))
	}

	w := doJSON(t, r, http.MethodGet, "/api/rooms/"+string(roomID)+"/messages", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decodeBody(t, w)["messages"], 2)

	w = doJSON(t, r, http.MethodGet, "/api/rooms/"+string(roomID)+"/messages?cursor=garbage", "u1", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/rooms/"+string(roomID)+"/recordings", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	recs, ok := decodeBody(t, w)["recordings"].([]any)
	require.True(t, ok)
	require.Len(t, recs, 1)
	require.Equal(t, "s3://bucket/archive.mp4", recs[0].(map[string]any)["output_ref"])

	w = doJSON(t, r, http.MethodGet, "/api/rooms/"+string(roomID)+"/data?topic=poll", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decodeBody(t, w)["data"], 1)

	w = doJSON(t, r, http.MethodGet, "/api/rooms/"+string(roomID)+"/data", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decodeBody(t, w)["data"], 2)

	w = doJSON(t, r, http.MethodGet, "/api/rooms/"+string(roomID)+"/participants", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decodeBody(t, w)["participants"], 0)
}
