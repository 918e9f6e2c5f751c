// Package config assembles runtime settings from defaults, an optional YAML
// file, IDEABOARD_* environment variables and command-line flags, in that
// order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"ideaboard/internal/util"
)

// Config holds every tunable of the server.
type Config struct {
	Addr              string        `yaml:"addr"`
	DBPath            string        `yaml:"db_path"`
	StaticDir         string        `yaml:"static_dir"`
	JWTSecret         string        `yaml:"jwt_secret"`
	JWTIssuer         string        `yaml:"jwt_issuer"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
	DefaultBoardName  string        `yaml:"default_board_name"`
	SuggestDebounce   time.Duration `yaml:"suggest_debounce"`
	SuggestLimit      int           `yaml:"suggest_limit"`
	DirectoryLimit    int           `yaml:"directory_limit"`
	ShareCloseDelay   time.Duration `yaml:"share_close_delay"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	LogLevel          string        `yaml:"log_level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Addr:             ":8080",
		DBPath:           "data/ideaboard.db",
		StaticDir:        "web/dist",
		JWTIssuer:        "ideaboard",
		AllowedOrigins:   []string{"http://localhost:5173"},
		DefaultBoardName: "My Board",
		SuggestDebounce:  500 * time.Millisecond,
		SuggestLimit:     5,
		DirectoryLimit:   50,
		ShareCloseDelay:  2 * time.Second,
		LogLevel:         "info",
	}
}

// Load resolves the configuration for the given command-line arguments
// (without the program name).
func Load(args []string) (Config, error) {
	pre := pflag.NewFlagSet("ideaboard", pflag.ContinueOnError)
	pre.ParseErrorsWhitelist = pflag.ParseErrorsWhitelist{UnknownFlags: true}
	pre.Usage = func() {}
	configPath := pre.String("config", util.EnvOrDefault("IDEABOARD_CONFIG", ""), "")
	if err := pre.Parse(args); err != nil && !errors.Is(err, pflag.ErrHelp) {
		return Config{}, err
	}

	cfg := Default()
	if *configPath != "" {
		if err := loadFile(*configPath, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)

	fs := pflag.NewFlagSet("ideaboard", pflag.ContinueOnError)
	fs.String("config", *configPath, "Path to a YAML config file")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to sqlite database file")
	fs.StringVar(&cfg.StaticDir, "static", cfg.StaticDir, "Directory with built frontend")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "HMAC secret used to verify bearer tokens")
	fs.StringVar(&cfg.JWTIssuer, "jwt-issuer", cfg.JWTIssuer, "Expected token issuer")
	fs.StringSliceVar(&cfg.AllowedOrigins, "allowed-origins", cfg.AllowedOrigins, "Origins allowed for CORS and websockets")
	fs.StringVar(&cfg.DefaultBoardName, "default-board", cfg.DefaultBoardName, "Name of the board created for users without one")
	fs.DurationVar(&cfg.SuggestDebounce, "suggest-debounce", cfg.SuggestDebounce, "Delay before answering member search input")
	fs.IntVar(&cfg.SuggestLimit, "suggest-limit", cfg.SuggestLimit, "Maximum member suggestions returned")
	fs.IntVar(&cfg.DirectoryLimit, "directory-limit", cfg.DirectoryLimit, "Users prefetched for member search")
	fs.DurationVar(&cfg.ShareCloseDelay, "share-close-delay", cfg.ShareCloseDelay, "Delay before a successful share dialog closes")
	fs.DurationVar(&cfg.ReconcileInterval, "reconcile-interval", cfg.ReconcileInterval, "Interval of the membership repair sweep (0 runs it at startup only)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	// ErrHelp is returned as is so callers can exit cleanly after usage.
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Addr = util.EnvOrDefault("IDEABOARD_ADDR", cfg.Addr)
	cfg.DBPath = util.EnvOrDefault("IDEABOARD_DB_PATH", cfg.DBPath)
	cfg.StaticDir = util.EnvOrDefault("IDEABOARD_STATIC_DIR", cfg.StaticDir)
	cfg.JWTSecret = util.EnvOrDefault("IDEABOARD_JWT_SECRET", cfg.JWTSecret)
	cfg.JWTIssuer = util.EnvOrDefault("IDEABOARD_JWT_ISSUER", cfg.JWTIssuer)
	cfg.AllowedOrigins = util.EnvList("IDEABOARD_ALLOWED_ORIGINS", cfg.AllowedOrigins)
	cfg.DefaultBoardName = util.EnvOrDefault("IDEABOARD_DEFAULT_BOARD", cfg.DefaultBoardName)
	cfg.SuggestDebounce = util.EnvDuration("IDEABOARD_SUGGEST_DEBOUNCE", cfg.SuggestDebounce)
	cfg.SuggestLimit = util.EnvInt("IDEABOARD_SUGGEST_LIMIT", cfg.SuggestLimit)
	cfg.DirectoryLimit = util.EnvInt("IDEABOARD_DIRECTORY_LIMIT", cfg.DirectoryLimit)
	cfg.ShareCloseDelay = util.EnvDuration("IDEABOARD_SHARE_CLOSE_DELAY", cfg.ShareCloseDelay)
	cfg.ReconcileInterval = util.EnvDuration("IDEABOARD_RECONCILE_INTERVAL", cfg.ReconcileInterval)
	cfg.LogLevel = util.EnvOrDefault("IDEABOARD_LOG_LEVEL", cfg.LogLevel)
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.DBPath == "" {
		errs = append(errs, errors.New("database path must be set"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt secret must be set (IDEABOARD_JWT_SECRET or --jwt-secret)"))
	}
	if strings.TrimSpace(c.DefaultBoardName) == "" {
		errs = append(errs, errors.New("default board name must not be empty"))
	}
	if c.SuggestLimit <= 0 {
		errs = append(errs, errors.New("suggest limit must be positive"))
	}
	if c.DirectoryLimit <= 0 {
		errs = append(errs, errors.New("directory limit must be positive"))
	}
	if c.SuggestDebounce < 0 || c.ShareCloseDelay < 0 || c.ReconcileInterval < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Level converts LogLevel to a slog level.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return level, nil
}
