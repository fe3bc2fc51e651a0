package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/pankajbaid567/DevHub-sub000/internal/adapters/http"
	"github.com/pankajbaid567/DevHub-sub000/internal/adapters/rtc"
	wssignal "github.com/pankajbaid567/DevHub-sub000/internal/adapters/signal"
	"github.com/pankajbaid567/DevHub-sub000/internal/app"
	"github.com/pankajbaid567/DevHub-sub000/internal/config"
	"github.com/pankajbaid567/DevHub-sub000/internal/domain"
	"github.com/pankajbaid567/DevHub-sub000/internal/store"
	"github.com/pankajbaid567/DevHub-sub000/internal/telemetry"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.Log.Level); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}

	nodeID, _ := os.Hostname()
	if nodeID == "" {
		nodeID = "local"
	}
	telemetry.Init(nodeID)

	st, invites, snaps, err := buildStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	defer st.Close()

	registry := app.NewRegistry(st, snaps, app.RegistryConfig{
		DefaultCapacity:  cfg.Room.DefaultCapacity,
		MaxCapacity:      cfg.Room.MaxCapacity,
		StoreTimeout:     cfg.Store.Timeout,
		SnapshotInterval: cfg.Room.SnapshotInterval,
		SnapshotTTL:      cfg.Room.SnapshotTTL,
		EmptyRoomTTL:     cfg.Room.EmptyRoomTTL,
	})
	presence := app.NewPresence(cfg.Room.SpeakerDebounce)
	policy := app.NewEngine()
	relay := app.NewRelay(presence)
	recorder := app.NewRecorder(registry, presence, policy)

	orch := app.NewOrchestrator(registry, presence, relay, recorder, policy, invites, st, app.OrchestratorConfig{
		ReconnectGrace: cfg.Room.ReconnectGrace,
		OwnerLeave:     ownerLeaveModes(cfg.Room.OwnerLeave),
		InviteTTL:      cfg.Invite.TTL,
		InviteMaxUses:  cfg.Invite.MaxUses,
		PersistWorkers: cfg.Limits.PersistWorkers,
		StoreTimeout:   cfg.Store.Timeout,
	})

	ctl := wssignal.NewSignalWSController(orch, st, wssignal.Config{
		ReadLimit:    cfg.Server.ReadLimit,
		PingPeriod:   cfg.Server.PingPeriod,
		JoinLimit:    cfg.Limits.JoinPerMinute,
		JoinWindow:   time.Minute,
		SignalLimit:  cfg.Limits.SignalPerMinute,
		SignalWindow: time.Minute,
		ChatTail:     cfg.Limits.ChatTail,
		ICEServers:   rtc.ICEServers(iceEntries(cfg.WebRTC.ICEServers)),
	})

	r := router.SetupRouter(ctx, cfg, orch, st, ctl)
	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return registry.Run(gctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", addr).Str("node", nodeID).Msg("room server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		registry.Shutdown()
		orch.Shutdown()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server error")
	}
	log.Info().Msg("Server exited gracefully")
}

// buildStores selects the durable backend and the invite/snapshot
// stores. Postgres carries records when configured, redis carries the
// ephemeral pieces; a memory store fills any gap for single-node runs.
func buildStores(ctx context.Context, cfg *config.Config) (store.Store, store.InviteStore, store.SnapshotStore, error) {
	var st store.Store
	var invites store.InviteStore
	var snaps store.SnapshotStore

	switch cfg.Store.Driver {
	case "postgres":
		pg, err := store.NewPGStore(ctx, cfg.Store.DSN, cfg.Store.AutoMigrate)
		if err != nil {
			return nil, nil, nil, err
		}
		st = pg
	case "memory", "":
		mem := store.NewMemStore()
		st = mem
		invites = mem
		snaps = mem
	default:
		return nil, nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if cfg.Redis.Addr != "" {
		rds, err := store.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, nil, err
		}
		invites = rds
		snaps = rds
	}
	if invites == nil || snaps == nil {
		mem := store.NewMemStore()
		if invites == nil {
			invites = mem
		}
		if snaps == nil {
			snaps = mem
		}
	}
	return st, invites, snaps, nil
}

func ownerLeaveModes(raw map[string]string) map[domain.RoomKind]app.OwnerLeaveMode {
	out := make(map[domain.RoomKind]app.OwnerLeaveMode, len(raw))
	for kind, mode := range raw {
		out[domain.RoomKind(kind)] = app.OwnerLeaveMode(mode)
	}
	return out
}

func iceEntries(cfgs []config.ICEServerConfig) []rtc.ServerEntry {
	out := make([]rtc.ServerEntry, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, rtc.ServerEntry{
			URLs:       c.URLs,
			Username:   c.Username,
			Credential: c.Credential,
		})
	}
	return out
}
