package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("CONFIG_ENV", "nonexistent")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "release", cfg.Server.Mode)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, int64(32768), cfg.Server.ReadLimit)
	require.Equal(t, 54*time.Second, cfg.Server.PingPeriod)

	require.Equal(t, "memory", cfg.Store.Driver)
	require.Equal(t, 3*time.Second, cfg.Store.Timeout)
	require.True(t, cfg.Store.AutoMigrate)

	require.Equal(t, 16, cfg.Room.DefaultCapacity)
	require.Equal(t, 200, cfg.Room.MaxCapacity)
	require.Equal(t, time.Duration(0), cfg.Room.ReconnectGrace)
	require.Equal(t, 10*time.Minute, cfg.Room.EmptyRoomTTL)
	require.Equal(t, 400*time.Millisecond, cfg.Room.SpeakerDebounce)
	require.Empty(t, cfg.Room.OwnerLeave)

	require.Equal(t, 24*time.Hour, cfg.Invite.TTL)
	require.Equal(t, 0, cfg.Invite.MaxUses)

	require.Equal(t, 10, cfg.Limits.JoinPerMinute)
	require.Equal(t, 600, cfg.Limits.SignalPerMinute)
	require.Equal(t, 30, cfg.Limits.ChatTail)
	require.Equal(t, 4, cfg.Limits.PersistWorkers)

	require.True(t, cfg.Identity.AllowGuests)
	require.Empty(t, cfg.WebRTC.ICEServers)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))

	yaml := []byte(`
server:
  mode: debug
  port: 9999
room:
  reconnect_grace: 15s
  owner_leave:
    video_session: promote
invite:
  ttl: 1h
webrtc:
  ice_servers:
    - urls: ["turn:turn.example.com:3478"]
      username: u
      credential: p
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), yaml, 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("CONFIG_ENV", "test")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.Server.Mode)
	require.Equal(t, 9999, cfg.Server.Port)
	require.Equal(t, 15*time.Second, cfg.Room.ReconnectGrace)
	require.Equal(t, "promote", cfg.Room.OwnerLeave["video_session"])
	require.Equal(t, time.Hour, cfg.Invite.TTL)

	// untouched keys keep their defaults
	require.Equal(t, "memory", cfg.Store.Driver)
	require.Equal(t, 16, cfg.Room.DefaultCapacity)

	require.Len(t, cfg.WebRTC.ICEServers, 1)
	require.Equal(t, "u", cfg.WebRTC.ICEServers[0].Username)
}
