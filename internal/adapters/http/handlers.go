package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/pankajbaid567/DevHub-sub000/internal/app"
	"github.com/pankajbaid567/DevHub-sub000/internal/domain"
	"github.com/pankajbaid567/DevHub-sub000/internal/store"
)

// API serves the thin REST surface consumed by the gateway: room CRUD,
// invites and history reads. Live interaction happens on the socket.
type API struct {
	Orch  *app.Orchestrator
	Store store.Store
}

type createRoomRequest struct {
	Name        string               `json:"name" binding:"required"`
	Kind        string               `json:"kind" binding:"required"`
	Visibility  string               `json:"visibility,omitempty"`
	Capacity    int                  `json:"capacity,omitempty"`
	ScheduledAt *time.Time           `json:"scheduled_at,omitempty"`
	Settings    *domain.RoomSettings `json:"settings,omitempty"`
}

func (h *API) createRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid body"})
		return
	}
	spec := &domain.RoomSpec{
		Name:        req.Name,
		Kind:        domain.RoomKind(req.Kind),
		Visibility:  domain.Visibility(req.Visibility),
		Capacity:    req.Capacity,
		ScheduledAt: req.ScheduledAt,
	}
	if req.Settings != nil {
		spec.Settings = *req.Settings
	}

	room, err := h.Orch.Registry.CreateRoom(c.Request.Context(), identityFrom(c), spec)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

func (h *API) listRooms(c *gin.Context) {
	visibility := domain.Visibility(c.DefaultQuery("visibility", string(domain.VisibilityPublic)))
	limit := intQuery(c, "limit", 50)
	cursor := c.Query("cursor")

	rooms, next, err := h.Orch.Registry.ListRooms(c.Request.Context(), visibility, limit, cursor)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms, "next_cursor": next})
}

func (h *API) getRoom(c *gin.Context) {
	sum, err := h.Orch.Registry.Summary(c.Request.Context(), domain.RoomID(c.Param("id")))
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *API) endRoom(c *gin.Context) {
	roomID := domain.RoomID(c.Param("id"))
	actor := identityFrom(c).UserID
	if err := h.Orch.EndRoom(c.Request.Context(), roomID, actor); err != nil {
		abortWith(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *API) updateSettings(c *gin.Context) {
	var settings domain.RoomSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid body"})
		return
	}
	roomID := domain.RoomID(c.Param("id"))
	actor := identityFrom(c).UserID
	room, err := h.Orch.UpdateSettings(c.Request.Context(), roomID, actor, settings)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

type createInviteRequest struct {
	TTLSec  int `json:"ttl_sec,omitempty"`
	MaxUses int `json:"max_uses,omitempty"`
}

func (h *API) createInvite(c *gin.Context) {
	var req createInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	roomID := domain.RoomID(c.Param("id"))
	actor := identityFrom(c).UserID
	invite, err := h.Orch.CreateInvite(c.Request.Context(), roomID, actor,
		time.Duration(req.TTLSec)*time.Second, req.MaxUses)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, invite)
}

func (h *API) revokeInvite(c *gin.Context) {
	roomID := domain.RoomID(c.Param("id"))
	actor := identityFrom(c).UserID
	code := domain.InviteCode(c.Param("code"))
	if err := h.Orch.RevokeInvite(c.Request.Context(), roomID, actor, code); err != nil {
		abortWith(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *API) listParticipants(c *gin.Context) {
	parts, err := h.Store.ListParticipants(c.Request.Context(), domain.RoomID(c.Param("id")))
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": parts})
}

func (h *API) listMessages(c *gin.Context) {
	roomID := domain.RoomID(c.Param("id"))
	limit := intQuery(c, "limit", 50)
	msgs, next, err := h.Store.ListChatMessages(c.Request.Context(), roomID, limit, c.Query("cursor"))
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs, "next_cursor": next})
}

func (h *API) listRecordings(c *gin.Context) {
	recs, err := h.Store.ListRecordings(c.Request.Context(), domain.RoomID(c.Param("id")))
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recordings": recs})
}

func (h *API) listRoomData(c *gin.Context) {
	roomID := domain.RoomID(c.Param("id"))
	limit := intQuery(c, "limit", 50)
	blobs, err := h.Store.ListRoomData(c.Request.Context(), roomID, c.Query("topic"), limit)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": blobs})
}

func intQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// abortWith maps a domain error onto an HTTP status; the wire carries
// the same stable codes the socket uses.
func abortWith(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var na *domain.NotAllowedError
	switch {
	case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrParticipantNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrRoomFull), errors.Is(err, domain.ErrAlreadyRecording), errors.Is(err, domain.ErrNotRecording):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrRoomEnded):
		status = http.StatusGone
	case errors.Is(err, domain.ErrInvalidInviteCode), errors.As(err, &na):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidRoomSpec), errors.Is(err, store.ErrInvalidCursor):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrServiceUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
