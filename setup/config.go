package setup

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration, loaded from setup.yaml with
// environment overrides for secrets and deployment-specific values.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Economics EconomicsConfig `yaml:"economics"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig selects the gorm driver. sqlite for dev/tests, postgres in
// production.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres
	DSN    string `yaml:"dsn"`
}

// EconomicsConfig bounds the market parameters operators may configure.
type EconomicsConfig struct {
	MaxOverroundBps     int64 `yaml:"max_overround_bps"`
	MinInitialSubsidy   int64 `yaml:"min_initial_subsidy"`
	DefaultBetaBps      int64 `yaml:"default_beta_bps"`
	SolverMaxIterations int   `yaml:"solver_max_iterations"`
}

// AuthConfig holds the operator credential hash and token settings. The
// secrets come from the environment, never from the YAML file.
type AuthConfig struct {
	OperatorKeyHash string `yaml:"-"` // OPERATOR_KEY_HASH, bcrypt
	JWTSecret       string `yaml:"-"` // JWT_SECRET
	TokenTTLMinutes int    `yaml:"token_ttl_minutes"`
}

// RateLimitConfig controls the per-client request limiter.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// Load reads the YAML config and applies environment overrides. Call
// godotenv.Load beforehand if a .env file should participate.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("setup.Load: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("setup.Load: parse %q: %w", path, err)
	}

	applyEnv(cfg)

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("setup.Load: JWT_SECRET is required")
	}
	if cfg.Auth.OperatorKeyHash == "" {
		return nil, fmt.Errorf("setup.Load: OPERATOR_KEY_HASH is required")
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "lsmarket.db",
		},
		Economics: EconomicsConfig{
			MaxOverroundBps:     1000,
			MinInitialSubsidy:   100,
			DefaultBetaBps:      2500,
			SolverMaxIterations: 128,
		},
		Auth:      AuthConfig{TokenTTLMinutes: 60},
		RateLimit: RateLimitConfig{PerSecond: 10, Burst: 30},
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	cfg.Auth.OperatorKeyHash = os.Getenv("OPERATOR_KEY_HASH")
	cfg.Auth.JWTSecret = os.Getenv("JWT_SECRET")
}
