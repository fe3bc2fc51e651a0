package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/pankajbaid567/DevHub-sub000/internal/adapters/signal"
	"github.com/pankajbaid567/DevHub-sub000/internal/app"
	"github.com/pankajbaid567/DevHub-sub000/internal/config"
	"github.com/pankajbaid567/DevHub-sub000/internal/store"
)

func SetupRouter(ctx context.Context, cfg *config.Config, orch *app.Orchestrator, st store.Store, ctl *signal.SignalWSController) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Server.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	sessionStore := cookie.NewStore([]byte(cfg.Server.Secret))
	r.Use(sessions.Sessions("RoomSessions", sessionStore))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(IdentityMiddleware(cfg.Identity.AllowGuests))

	h := &API{Orch: orch, Store: st}

	api.POST("/rooms", h.createRoom)
	api.GET("/rooms", h.listRooms)
	api.GET("/rooms/:id", h.getRoom)
	api.DELETE("/rooms/:id", h.endRoom)
	api.PATCH("/rooms/:id/settings", h.updateSettings)

	api.POST("/rooms/:id/invites", h.createInvite)
	api.DELETE("/rooms/:id/invites/:code", h.revokeInvite)

	api.GET("/rooms/:id/participants", h.listParticipants)
	api.GET("/rooms/:id/messages", h.listMessages)
	api.GET("/rooms/:id/recordings", h.listRecordings)
	api.GET("/rooms/:id/data", h.listRoomData)

	api.GET("/ws/rooms", func(c *gin.Context) {
		ctl.HandleWS(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
