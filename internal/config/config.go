package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the gttdash server and CLI.
type Config struct {
	Server     Server     `yaml:"server" toml:"server"`
	Broker     string     `yaml:"broker" toml:"broker" validate:"oneof=kite simulator"`
	Kite       Kite       `yaml:"kite" toml:"kite"`
	Browser    Browser    `yaml:"browser" toml:"browser"`
	MarketData MarketData `yaml:"market_data" toml:"market_data"`
	Alpaca     Alpaca     `yaml:"alpaca" toml:"alpaca"`
	Cache      Cache      `yaml:"cache" toml:"cache"`
	Schedule   Schedule   `yaml:"schedule" toml:"schedule"`
	Logging    Logging    `yaml:"logging" toml:"logging"`
}

// Server holds network listener configuration. A zero GRPCPort disables
// the gRPC listener.
type Server struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port" validate:"min=1,max=65535"`
	GRPCPort int    `yaml:"grpc_port" toml:"grpc_port" validate:"min=0,max=65535"`
}

// Kite holds credentials and endpoints for the Kite Connect API.
type Kite struct {
	APIKey          string  `yaml:"api_key" toml:"api_key"`
	APISecret       string  `yaml:"api_secret" toml:"api_secret"`
	UserID          string  `yaml:"user_id" toml:"user_id"`
	Password        string  `yaml:"password" toml:"password"`
	TOTPSecret      string  `yaml:"totp_secret" toml:"totp_secret"`
	BaseURL         string  `yaml:"base_url" toml:"base_url" validate:"omitempty,url"`
	LoginURL        string  `yaml:"login_url" toml:"login_url" validate:"omitempty,url"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" toml:"rate_limit_per_sec" validate:"gte=0"`
}

// Browser configures the headless Chrome used for the login flow.
type Browser struct {
	Headless       bool   `yaml:"headless" toml:"headless"`
	ExecPath       string `yaml:"exec_path" toml:"exec_path"`
	TimeoutSeconds int    `yaml:"timeout_seconds" toml:"timeout_seconds" validate:"gte=0"`
}

// MarketData selects and configures the historical price provider.
type MarketData struct {
	Provider        string  `yaml:"provider" toml:"provider" validate:"oneof=yahoo alpaca static"`
	BaseURL         string  `yaml:"base_url" toml:"base_url" validate:"omitempty,url"`
	ProxyURL        string  `yaml:"proxy_url" toml:"proxy_url" validate:"omitempty,url"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" toml:"rate_limit_per_sec" validate:"gte=0"`
	TimeoutSeconds  int     `yaml:"timeout_seconds" toml:"timeout_seconds" validate:"gte=0"`
	LookbackDays    int     `yaml:"lookback_days" toml:"lookback_days" validate:"gte=50"`
}

// Alpaca holds credentials for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key" toml:"api_key"`
	APISecret string `yaml:"api_secret" toml:"api_secret"`
	DataURL   string `yaml:"data_url" toml:"data_url" validate:"omitempty,url"`
	Feed      string `yaml:"feed" toml:"feed"`
}

// Cache configures both cache tiers.
type Cache struct {
	Dir           string `yaml:"dir" toml:"dir" validate:"required"`
	Backend       string `yaml:"backend" toml:"backend" validate:"oneof=json parquet sqlite"`
	SQLitePath    string `yaml:"sqlite_path" toml:"sqlite_path"`
	RetentionDays int    `yaml:"retention_days" toml:"retention_days" validate:"gte=0"`
	APITTLSeconds int    `yaml:"api_ttl_seconds" toml:"api_ttl_seconds" validate:"gt=0"`
	MaxWorkers    int    `yaml:"max_workers" toml:"max_workers" validate:"gt=0,lte=64"`
}

// Schedule holds cron expressions (with a seconds field) for background
// jobs. Empty expressions disable the job.
type Schedule struct {
	SweepCron   string `yaml:"sweep_cron" toml:"sweep_cron"`
	PrewarmCron string `yaml:"prewarm_cron" toml:"prewarm_cron"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level" toml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" toml:"format" validate:"omitempty,oneof=json text"`
	Dir    string `yaml:"dir" toml:"dir"`
}

// APITTL returns the session cache freshness window.
func (c Cache) APITTL() time.Duration {
	return time.Duration(c.APITTLSeconds) * time.Second
}

// SQLiteFile returns the SQLite cache path, defaulting to a file in Dir.
func (c Cache) SQLiteFile() string {
	if c.SQLitePath != "" {
		return c.SQLitePath
	}
	return filepath.Join(c.Dir, "series_cache.db")
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	return &Config{
		Server: Server{Host: "127.0.0.1", Port: 5002},
		Broker: "kite",
		Kite: Kite{
			BaseURL:         "https://api.kite.trade",
			LoginURL:        "https://kite.zerodha.com/connect/login",
			RateLimitPerSec: 3,
		},
		Browser: Browser{Headless: true, TimeoutSeconds: 60},
		MarketData: MarketData{
			Provider:        "yahoo",
			BaseURL:         "https://query1.finance.yahoo.com",
			RateLimitPerSec: 5,
			TimeoutSeconds:  30,
			LookbackDays:    365,
		},
		Alpaca: Alpaca{Feed: "iex"},
		Cache: Cache{
			Dir:           "stock_data",
			Backend:       "json",
			RetentionDays: 3,
			APITTLSeconds: 60,
			MaxWorkers:    8,
		},
		Schedule: Schedule{
			SweepCron:   "0 30 6 * * *",
			PrewarmCron: "0 45 15 * * 1-5",
		},
		Logging: Logging{Level: "info", Format: "json"},
	}
}

// Load reads the configuration file at the given path on top of Default.
// Files ending in .toml are parsed as TOML, anything else as YAML.
// Environment variable overrides are applied last, then the result is
// validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv returns Default with environment overrides applied. It is used
// when no config file exists.
func FromEnv() (*Config, error) {
	cfg := Default()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field requirements.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Broker == "kite" {
		var missing []string
		for name, v := range map[string]string{
			"kite.api_key":     c.Kite.APIKey,
			"kite.api_secret":  c.Kite.APISecret,
			"kite.user_id":     c.Kite.UserID,
			"kite.password":    c.Kite.Password,
			"kite.totp_secret": c.Kite.TOTPSecret,
		} {
			if v == "" {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return fmt.Errorf("invalid config: broker kite requires %s", strings.Join(missing, ", "))
		}
	}
	if c.MarketData.Provider == "alpaca" && (c.Alpaca.APIKey == "" || c.Alpaca.APISecret == "") {
		return fmt.Errorf("invalid config: market_data provider alpaca requires alpaca.api_key and alpaca.api_secret")
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GTTDASH_BROKER"); v != "" {
		cfg.Broker = v
	}

	if v := os.Getenv("KITE_API_KEY"); v != "" {
		cfg.Kite.APIKey = v
	}
	if v := os.Getenv("KITE_API_SECRET"); v != "" {
		cfg.Kite.APISecret = v
	}
	if v := os.Getenv("KITE_USER_ID"); v != "" {
		cfg.Kite.UserID = v
	}
	if v := os.Getenv("KITE_PASSWORD"); v != "" {
		cfg.Kite.Password = v
	}
	if v := os.Getenv("KITE_TOTP_SECRET"); v != "" {
		cfg.Kite.TOTPSecret = v
	}

	if v := os.Getenv("CHROME_PATH"); v != "" {
		cfg.Browser.ExecPath = v
	}
	if v := os.Getenv("GTTDASH_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Browser.Headless = b
		}
	}

	if v := os.Getenv("GTTDASH_MARKET_DATA"); v != "" {
		cfg.MarketData.Provider = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" && cfg.MarketData.ProxyURL == "" {
		cfg.MarketData.ProxyURL = v
	}

	if v := os.Getenv("GTTDASH_CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}
	if v := os.Getenv("GTTDASH_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}

	if v := os.Getenv("GTTDASH_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (canonical names used by the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
