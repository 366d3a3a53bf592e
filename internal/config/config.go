// Package config provides Viper-based configuration loading for the Termibbl server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ListenConfig holds TCP listener settings.
type ListenConfig struct {
	// Host is the bind address for the TCP listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the listener.
	Port int `mapstructure:"port"`
	// ReadTimeout is the per-read deadline for client connections.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the per-write deadline for client connections.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// HeartbeatTimeout is the window within which a client must send a
	// keep-alive before being disconnected.
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat_timeout"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (l ListenConfig) Addr() string {
	return fmt.Sprintf("%s:%d", l.Host, l.Port)
}

// GameConfig holds the default game options applied to every room.
type GameConfig struct {
	// CanvasWidth is the shared canvas width in cells.
	CanvasWidth int `mapstructure:"canvas_width"`
	// CanvasHeight is the shared canvas height in cells.
	CanvasHeight int `mapstructure:"canvas_height"`
	// Rounds is the number of rounds played before a game ends.
	Rounds int `mapstructure:"rounds"`
	// RoundDuration is the length of a single drawing turn.
	RoundDuration time.Duration `mapstructure:"round_duration"`
	// MaxRoomSize is the maximum number of players in one room.
	MaxRoomSize int `mapstructure:"max_room_size"`
	// MinPlayers is the member count at which a waiting room starts playing.
	MinPlayers int `mapstructure:"min_players"`
	// Words are extra words merged into the word list.
	Words []string `mapstructure:"words"`
	// WordsDir is a directory of YAML word packs; empty disables pack loading.
	WordsDir string `mapstructure:"words_dir"`
	// OnlyCustomWords restricts the word list to Words, ignoring WordsDir.
	OnlyCustomWords bool `mapstructure:"only_custom_words"`
	// ChatRatePerSecond caps chat messages accepted per second per session.
	ChatRatePerSecond float64 `mapstructure:"chat_rate_per_second"`
	// ChatBurst is the chat rate limiter burst size.
	ChatBurst int `mapstructure:"chat_burst"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Listen  ListenConfig  `mapstructure:"listen"`
	Game    GameConfig    `mapstructure:"game"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateListen(c.Listen); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateGame(c.Game); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateListen(l ListenConfig) error {
	var errs []string
	if l.Port < 1 || l.Port > 65535 {
		errs = append(errs, fmt.Sprintf("listen.port must be 1-65535, got %d", l.Port))
	}
	if l.ReadTimeout < 0 {
		errs = append(errs, "listen.read_timeout must not be negative")
	}
	if l.WriteTimeout < 0 {
		errs = append(errs, "listen.write_timeout must not be negative")
	}
	if l.HeartbeatTimeout <= 0 {
		errs = append(errs, "listen.heartbeat_timeout must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateGame(g GameConfig) error {
	var errs []string
	if g.CanvasWidth < 1 || g.CanvasWidth > 65535 {
		errs = append(errs, fmt.Sprintf("game.canvas_width must be 1-65535, got %d", g.CanvasWidth))
	}
	if g.CanvasHeight < 1 || g.CanvasHeight > 65535 {
		errs = append(errs, fmt.Sprintf("game.canvas_height must be 1-65535, got %d", g.CanvasHeight))
	}
	if g.Rounds < 1 {
		errs = append(errs, fmt.Sprintf("game.rounds must be >= 1, got %d", g.Rounds))
	}
	if g.RoundDuration <= 0 {
		errs = append(errs, "game.round_duration must be positive")
	}
	if g.MaxRoomSize < 1 {
		errs = append(errs, fmt.Sprintf("game.max_room_size must be >= 1, got %d", g.MaxRoomSize))
	}
	if g.MinPlayers < 1 {
		errs = append(errs, fmt.Sprintf("game.min_players must be >= 1, got %d", g.MinPlayers))
	}
	if g.MinPlayers > g.MaxRoomSize {
		errs = append(errs, "game.min_players must not exceed game.max_room_size")
	}
	if g.OnlyCustomWords && len(g.Words) == 0 {
		errs = append(errs, "game.only_custom_words requires a non-empty game.words list")
	}
	if g.ChatRatePerSecond <= 0 {
		errs = append(errs, "game.chat_rate_per_second must be positive")
	}
	if g.ChatBurst < 1 {
		errs = append(errs, fmt.Sprintf("game.chat_burst must be >= 1, got %d", g.ChatBurst))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with TERMIBBL_ prefix
	v.SetEnvPrefix("TERMIBBL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen.host", "0.0.0.0")
	v.SetDefault("listen.port", 3000)
	v.SetDefault("listen.read_timeout", "5m")
	v.SetDefault("listen.write_timeout", "30s")
	v.SetDefault("listen.heartbeat_timeout", "10s")

	v.SetDefault("game.canvas_width", 100)
	v.SetDefault("game.canvas_height", 30)
	v.SetDefault("game.rounds", 3)
	v.SetDefault("game.round_duration", "60s")
	v.SetDefault("game.max_room_size", 8)
	v.SetDefault("game.min_players", 2)
	v.SetDefault("game.words_dir", "content/words")
	v.SetDefault("game.only_custom_words", false)
	v.SetDefault("game.chat_rate_per_second", 4.0)
	v.SetDefault("game.chat_burst", 8)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
