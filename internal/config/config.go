package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	Secret     string        `mapstructure:"secret"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
}

type StoreConfig struct {
	Driver      string        `mapstructure:"driver"`
	DSN         string        `mapstructure:"dsn"`
	Timeout     time.Duration `mapstructure:"timeout"`
	AutoMigrate bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RoomConfig struct {
	DefaultCapacity  int               `mapstructure:"default_capacity"`
	MaxCapacity      int               `mapstructure:"max_capacity"`
	ReconnectGrace   time.Duration     `mapstructure:"reconnect_grace"`
	EmptyRoomTTL     time.Duration     `mapstructure:"empty_room_ttl"`
	SnapshotInterval time.Duration     `mapstructure:"snapshot_interval"`
	SnapshotTTL      time.Duration     `mapstructure:"snapshot_ttl"`
	SpeakerDebounce  time.Duration     `mapstructure:"speaker_debounce"`
	OwnerLeave       map[string]string `mapstructure:"owner_leave"`
}

type InviteConfig struct {
	TTL     time.Duration `mapstructure:"ttl"`
	MaxUses int           `mapstructure:"max_uses"`
}

type LimitsConfig struct {
	JoinPerMinute   int `mapstructure:"join_per_minute"`
	SignalPerMinute int `mapstructure:"signal_per_minute"`
	ChatTail        int `mapstructure:"chat_tail"`
	PersistWorkers  int `mapstructure:"persist_workers"`
}

type IdentityConfig struct {
	AllowGuests bool `mapstructure:"allow_guests"`
}

type ICEServerConfig struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type WebRTCConfig struct {
	ICEServers []ICEServerConfig `mapstructure:"ice_servers"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Room     RoomConfig     `mapstructure:"room"`
	Invite   InviteConfig   `mapstructure:"invite"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Identity IdentityConfig `mapstructure:"identity"`
	WebRTC   WebRTCConfig   `mapstructure:"webrtc"`
	Log      LogConfig      `mapstructure:"log"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Store: %s\n", cfg.Server.Mode, cfg.Server.Port, cfg.Store.Driver)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.secret", "dev-secret-change-me")
	v.SetDefault("server.read_limit", 32768)
	v.SetDefault("server.ping_period", "54s")

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.timeout", "3s")
	v.SetDefault("store.auto_migrate", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("room.default_capacity", 16)
	v.SetDefault("room.max_capacity", 200)
	v.SetDefault("room.reconnect_grace", "0s")
	v.SetDefault("room.empty_room_ttl", "10m")
	v.SetDefault("room.snapshot_interval", "15s")
	v.SetDefault("room.snapshot_ttl", "60s")
	v.SetDefault("room.speaker_debounce", "400ms")
	v.SetDefault("room.owner_leave", map[string]string{})

	v.SetDefault("invite.ttl", "24h")
	v.SetDefault("invite.max_uses", 0)

	v.SetDefault("limits.join_per_minute", 10)
	v.SetDefault("limits.signal_per_minute", 600)
	v.SetDefault("limits.chat_tail", 30)
	v.SetDefault("limits.persist_workers", 4)

	v.SetDefault("identity.allow_guests", true)

	v.SetDefault("log.level", "info")
}
