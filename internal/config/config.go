package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode string `mapstructure:"mode"`
	Port int    `mapstructure:"port"`
	DSN  string `mapstructure:"dsn"`

	TokenSecret string        `mapstructure:"token_secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
	NonceTTL    time.Duration `mapstructure:"nonce_ttl"`

	// LivenessWindow is the maximum heartbeat silence before a
	// connection is reaped. Clients heartbeat every ~15s, so the
	// default leaves room for two missed beats.
	LivenessWindow  time.Duration `mapstructure:"liveness_window"`
	ActorQueueSize  int           `mapstructure:"actor_queue_size"`
	DispatchTimeout time.Duration `mapstructure:"dispatch_timeout"`

	WelcomeBonusSeconds int64         `mapstructure:"welcome_bonus_seconds"`
	FeedPushPeriod      time.Duration `mapstructure:"feed_push_period"`
	OracleURL           string        `mapstructure:"oracle_url"`
	MediaWebhookURL     string        `mapstructure:"media_webhook_url"`
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

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("dsn", "host=localhost user=voiceroom password=voiceroom dbname=voiceroom port=5432 sslmode=disable")
	v.SetDefault("token_secret", "")
	v.SetDefault("token_ttl", "1h")
	v.SetDefault("nonce_ttl", "5m")
	v.SetDefault("liveness_window", "45s")
	v.SetDefault("actor_queue_size", 64)
	v.SetDefault("dispatch_timeout", "5s")
	v.SetDefault("welcome_bonus_seconds", 1800)
	v.SetDefault("feed_push_period", "5s")
	v.SetDefault("oracle_url", "http://localhost:8090")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.TokenSecret == "" {
		return nil, fmt.Errorf("token_secret is required")
	}
	return &cfg, nil
}
