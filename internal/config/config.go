package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Context   ContextConfig   `yaml:"context"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Cache     CacheConfig     `yaml:"cache"`
	RateGate  RateGateConfig  `yaml:"rate_gate"`
	Recovery  RecoveryConfig  `yaml:"recovery"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// ContextConfig tunes training context assembly.
type ContextConfig struct {
	ScanLimit              int           `yaml:"scan_limit"`
	NormalizeExerciseNames bool          `yaml:"normalize_exercise_names"`
	DetailWorkouts         int           `yaml:"detail_workouts"`
	SummaryWorkouts        int           `yaml:"summary_workouts"`
	CardioWorkouts         int           `yaml:"cardio_workouts"`
	MaxBytes               int           `yaml:"max_bytes"`
	FetchTimeout           time.Duration `yaml:"fetch_timeout"`
}

// FetchConfig bounds how many documents each source query returns.
type FetchConfig struct {
	WorkoutLimit   int `yaml:"workout_limit"`
	GroupLimit     int `yaml:"group_limit"`
	FormCheckLimit int `yaml:"form_check_limit"`
	CoachNoteLimit int `yaml:"coach_note_limit"`
}

// CacheConfig controls the in-process context cache. A zero TTL disables it.
type CacheConfig struct {
	TTL    time.Duration `yaml:"ttl"`
	SizeMB int           `yaml:"size_mb"`
}

// RateGateConfig selects the counter store and the per-scope limits.
// A limit of zero means unlimited.
type RateGateConfig struct {
	Backend           string  `yaml:"backend"`
	SQLiteDir         string  `yaml:"sqlite_dir"`
	RedisAddr         string  `yaml:"redis_addr"`
	RedisPassword     string  `yaml:"redis_password"`
	RedisDB           int     `yaml:"redis_db"`
	RedisPrefix       string  `yaml:"redis_prefix"`
	Hourly            int     `yaml:"hourly"`
	Daily             int     `yaml:"daily"`
	OverageMultiplier float64 `yaml:"overage_multiplier"`
}

// RecoveryConfig points at the recovery-device score service. An empty
// base URL disables the recovery source.
type RecoveryConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// LogConfig selects the log level and an optional rotated log file.
type LogConfig struct {
	Level     string `yaml:"level"`
	File      string `yaml:"file"`
	ToStdout  bool   `yaml:"to_stdout"`
	MaxSizeMB int    `yaml:"max_size_mb"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Default returns the configuration used for keys the file leaves out.
func Default() *Config {
	return &Config{
		Server:    ServerConfig{Host: "0.0.0.0", Port: 8080},
		Database:  DatabaseConfig{SSLMode: "disable"},
		Tailscale: TailscaleConfig{Hostname: "trainctx", StateDir: "tsnet-state"},
		Context: ContextConfig{
			ScanLimit:       20,
			DetailWorkouts:  3,
			SummaryWorkouts: 5,
			CardioWorkouts:  5,
			MaxBytes:        16384,
			FetchTimeout:    5 * time.Second,
		},
		Fetch: FetchConfig{
			WorkoutLimit:   30,
			GroupLimit:     30,
			FormCheckLimit: 10,
			CoachNoteLimit: 20,
		},
		Cache: CacheConfig{TTL: time.Minute, SizeMB: 16},
		RateGate: RateGateConfig{
			Backend:           "sqlite",
			SQLiteDir:         "data",
			RedisPrefix:       "trainctx:",
			Hourly:            20,
			Daily:             100,
			OverageMultiplier: 2,
		},
		Recovery: RecoveryConfig{Timeout: 3 * time.Second},
		Log:      LogConfig{Level: "info", ToStdout: true, MaxSizeMB: 50},
	}
}

// Load reads config from a YAML file on top of Default, then applies
// environment variable overrides.
// Env vars use the prefix TRAINCTX_ and underscore-separated paths:
//
//	TRAINCTX_SERVER_HOST, TRAINCTX_SERVER_PORT,
//	TRAINCTX_DB_HOST, TRAINCTX_DB_PORT, TRAINCTX_DB_NAME,
//	TRAINCTX_DB_USER, TRAINCTX_DB_PASSWORD, TRAINCTX_DB_SSLMODE,
//	TRAINCTX_AUTH_API_KEY, TRAINCTX_TAILSCALE_ENABLED,
//	TRAINCTX_RATE_GATE_BACKEND, TRAINCTX_REDIS_ADDR, TRAINCTX_REDIS_PASSWORD,
//	TRAINCTX_RECOVERY_BASE_URL, TRAINCTX_RECOVERY_TOKEN, TRAINCTX_CACHE_TTL,
//	TRAINCTX_LOG_LEVEL, TRAINCTX_LOG_FILE
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRAINCTX_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("TRAINCTX_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TRAINCTX_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("TRAINCTX_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("TRAINCTX_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("TRAINCTX_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("TRAINCTX_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("TRAINCTX_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("TRAINCTX_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("TRAINCTX_TAILSCALE_ENABLED"); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = on
		}
	}
	if v := os.Getenv("TRAINCTX_RATE_GATE_BACKEND"); v != "" {
		cfg.RateGate.Backend = v
	}
	if v := os.Getenv("TRAINCTX_REDIS_ADDR"); v != "" {
		cfg.RateGate.RedisAddr = v
	}
	if v := os.Getenv("TRAINCTX_REDIS_PASSWORD"); v != "" {
		cfg.RateGate.RedisPassword = v
	}
	if v := os.Getenv("TRAINCTX_RECOVERY_BASE_URL"); v != "" {
		cfg.Recovery.BaseURL = v
	}
	if v := os.Getenv("TRAINCTX_RECOVERY_TOKEN"); v != "" {
		cfg.Recovery.Token = v
	}
	if v := os.Getenv("TRAINCTX_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TRAINCTX_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv("TRAINCTX_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = d
		}
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	if c.Context.ScanLimit < 0 {
		return fmt.Errorf("context.scan_limit must not be negative")
	}
	if c.Context.MaxBytes < 0 {
		return fmt.Errorf("context.max_bytes must not be negative")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}
	switch c.RateGate.Backend {
	case "sqlite", "memory":
	case "redis":
		if c.RateGate.RedisAddr == "" {
			return fmt.Errorf("rate_gate.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("rate_gate.backend %q is not one of sqlite, redis, memory", c.RateGate.Backend)
	}
	if c.RateGate.Hourly < 0 || c.RateGate.Daily < 0 {
		return fmt.Errorf("rate_gate limits must not be negative")
	}
	if c.RateGate.OverageMultiplier < 1 {
		return fmt.Errorf("rate_gate.overage_multiplier must be at least 1")
	}
	return nil
}
