// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Game     GameConfig     `mapstructure:"game"`
	AI       AIConfig       `mapstructure:"ai"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	LogLevel        string        `mapstructure:"log_level"`
	LogJSON         bool          `mapstructure:"log_json"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// OriginPatterns are passed to the websocket accept options.
	OriginPatterns []string `mapstructure:"origin_patterns"`
}

type DatabaseConfig struct {
	URL            string `mapstructure:"url"`
	MigrateOnStart bool   `mapstructure:"migrate_on_start"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	LeaderboardTTL  time.Duration `mapstructure:"leaderboard_ttl"`
	RateLimitMax    int           `mapstructure:"rate_limit_max"`
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window"`
}

// Enabled reports whether a Redis address was configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type AuthConfig struct {
	// TokenExpire is a Go duration, or "never"/"0" for tokens without exp.
	TokenExpire string `mapstructure:"token_expire"`
	// SigningSeed is a base64 ed25519 seed. Empty means keys are generated at startup.
	SigningSeed string `mapstructure:"signing_seed"`
}

type GameConfig struct {
	MaxPlayers       int           `mapstructure:"max_players"`
	CountdownSeconds int           `mapstructure:"countdown_seconds"`
	CodeAttempts     int           `mapstructure:"code_attempts"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	JudgeTimeout     time.Duration `mapstructure:"judge_timeout"`
	JudgeLockTTL     time.Duration `mapstructure:"judge_lock_ttl"`
	MaxPromptLength  int           `mapstructure:"max_prompt_length"`
}

type AIConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	ChatModel  string `mapstructure:"chat_model"`
	JudgeModel string `mapstructure:"judge_model"`
	TTSModel   string `mapstructure:"tts_model"`
	TTSVoice   string `mapstructure:"tts_voice"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_json", false)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.origin_patterns", []string{"*"})

	v.SetDefault("database.url", "")
	v.SetDefault("database.migrate_on_start", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.leaderboard_ttl", time.Minute)
	v.SetDefault("redis.rate_limit_max", 30)
	v.SetDefault("redis.rate_limit_window", time.Minute)

	v.SetDefault("auth.token_expire", "72h")
	v.SetDefault("auth.signing_seed", "")

	v.SetDefault("game.max_players", 2)
	v.SetDefault("game.countdown_seconds", 3)
	v.SetDefault("game.code_attempts", 10)
	v.SetDefault("game.sweep_interval", 30*time.Second)
	v.SetDefault("game.judge_timeout", 90*time.Second)
	v.SetDefault("game.judge_lock_ttl", 3*time.Minute)
	v.SetDefault("game.max_prompt_length", 4000)

	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.chat_model", "gpt-4o-mini")
	v.SetDefault("ai.judge_model", "gpt-4o-mini")
	v.SetDefault("ai.tts_model", "tts-1")
	v.SetDefault("ai.tts_voice", "alloy")
}

// Load reads configuration from defaults, an optional file and the environment.
// Environment keys use "_" in place of "." (DATABASE_URL, GAME_MAX_PLAYERS, ...).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	if c.Game.MaxPlayers < 1 {
		return fmt.Errorf("game.max_players must be positive, got %d", c.Game.MaxPlayers)
	}
	if c.Game.CountdownSeconds < 0 {
		return fmt.Errorf("game.countdown_seconds must not be negative")
	}
	if c.Game.CodeAttempts < 1 {
		return fmt.Errorf("game.code_attempts must be positive")
	}
	if c.Game.SweepInterval <= 0 {
		return fmt.Errorf("game.sweep_interval must be positive")
	}
	if c.Game.JudgeTimeout <= 0 {
		return fmt.Errorf("game.judge_timeout must be positive")
	}
	if c.Game.JudgeLockTTL <= 0 {
		return fmt.Errorf("game.judge_lock_ttl must be positive")
	}
	if c.Game.JudgeLockTTL < c.Game.JudgeTimeout {
		return fmt.Errorf("game.judge_lock_ttl (%s) must not be shorter than game.judge_timeout (%s)",
			c.Game.JudgeLockTTL, c.Game.JudgeTimeout)
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
