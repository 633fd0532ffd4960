package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config holds all configuration for the dashboard and the reference backend
type Config struct {
	Env              string        `env:"FLEETDASH_ENV,default=local"`
	LogLevel         string        `env:"FLEETDASH_LOG_LEVEL,default=info"`
	ShutdownDuration time.Duration `env:"FLEETDASH_SHUTDOWN_DURATION,default=10s"`

	Dashboard DashboardConfig `env:",prefix=FLEETDASH_"`
	TextGen   TextGenConfig   `env:",prefix=FLEETDASH_TEXTGEN_"`
	Backend   BackendConfig   `env:",prefix=BACKEND_"`

	// APIKey is the text-generation credential. Without it the assistant
	// uses its local fallbacks.
	APIKey string `env:"API_KEY"`
}

// DashboardConfig configures the web dashboard
type DashboardConfig struct {
	Addr         string        `env:"ADDR,default=:8080"`
	BackendURL   string        `env:"BACKEND_URL,default=http://127.0.0.1:9090/api"`
	SessionTTL   time.Duration `env:"SESSION_TTL,default=30m"`
	SessionSweep string        `env:"SESSION_SWEEP,default=@every 1m"`
}

// TextGenConfig configures the text-generation assistant
type TextGenConfig struct {
	Model string  `env:"MODEL,default=gemini-3-flash-preview"`
	RPS   float64 `env:"RPS,default=1"`
	Burst int     `env:"BURST,default=3"`
}

// BackendConfig configures the reference backend
type BackendConfig struct {
	Addr     string `env:"ADDR,default=:9090"`
	DBPath   string `env:"DB_PATH,default=~/fleetdash/data/backend.db"`
	SeedPath string `env:"SEED_PATH"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(nil))
	if err != nil {
		// Defaults are static and always parse.
		panic(err)
	}
	return cfg
}

// Load reads a .env file when present and then the process environment
func Load(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith resolves the configuration from lookuper
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("env processing: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values that would only fail later at runtime
func (c *Config) Validate() error {
	if c.Dashboard.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive, got %s", c.Dashboard.SessionTTL)
	}
	if c.TextGen.RPS < 0 || c.TextGen.Burst < 0 {
		return fmt.Errorf("text generation rate limit must not be negative")
	}
	if !strings.HasPrefix(c.Dashboard.BackendURL, "http://") && !strings.HasPrefix(c.Dashboard.BackendURL, "https://") {
		return fmt.Errorf("backend URL must be http or https, got %q", c.Dashboard.BackendURL)
	}
	return nil
}

// expandPath expands ~ to home directory
func (c *Config) expandPath(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Return original path if we can't get home dir
		return path
	}

	return filepath.Join(homeDir, path[2:])
}
