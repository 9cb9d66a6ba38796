package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var envKeys = []string{
	"GTTDASH_BROKER", "KITE_API_KEY", "KITE_API_SECRET", "KITE_USER_ID",
	"KITE_PASSWORD", "KITE_TOTP_SECRET", "CHROME_PATH", "GTTDASH_HEADLESS",
	"GTTDASH_MARKET_DATA", "HTTPS_PROXY", "GTTDASH_CACHE_DIR",
	"GTTDASH_CACHE_BACKEND", "GTTDASH_PORT", "LOG_LEVEL",
	"APCA_API_KEY_ID", "APCA_API_SECRET_KEY",
}

// clearEnv blanks every override so the host environment cannot leak into
// assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := writeTemp(t, "gttdash.yaml", `
server:
  host: "0.0.0.0"
  port: 8080
  grpc_port: 9090
broker: kite
kite:
  api_key: "key"
  api_secret: "secret"
  user_id: "AB1234"
  password: "pw"
  totp_secret: "JBSWY3DPEHPK3PXP"
market_data:
  provider: yahoo
  rate_limit_per_sec: 2
cache:
  dir: "/tmp/gttdash/cache"
  backend: parquet
  retention_days: 5
  max_workers: 4
logging:
  level: "debug"
  format: "text"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Server --
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Server.GRPCPort != 9090 {
		t.Errorf("Server.GRPCPort = %d, want %d", cfg.Server.GRPCPort, 9090)
	}

	// -- Kite --
	if cfg.Kite.UserID != "AB1234" {
		t.Errorf("Kite.UserID = %q, want %q", cfg.Kite.UserID, "AB1234")
	}
	if cfg.Kite.BaseURL != "https://api.kite.trade" {
		t.Errorf("Kite.BaseURL default = %q", cfg.Kite.BaseURL)
	}

	// -- MarketData --
	if cfg.MarketData.RateLimitPerSec != 2 {
		t.Errorf("MarketData.RateLimitPerSec = %v, want 2", cfg.MarketData.RateLimitPerSec)
	}
	if cfg.MarketData.LookbackDays != 365 {
		t.Errorf("MarketData.LookbackDays default = %d, want 365", cfg.MarketData.LookbackDays)
	}

	// -- Cache --
	if cfg.Cache.Dir != "/tmp/gttdash/cache" {
		t.Errorf("Cache.Dir = %q", cfg.Cache.Dir)
	}
	if cfg.Cache.Backend != "parquet" {
		t.Errorf("Cache.Backend = %q, want parquet", cfg.Cache.Backend)
	}
	if cfg.Cache.RetentionDays != 5 {
		t.Errorf("Cache.RetentionDays = %d, want 5", cfg.Cache.RetentionDays)
	}
	if cfg.Cache.MaxWorkers != 4 {
		t.Errorf("Cache.MaxWorkers = %d, want 4", cfg.Cache.MaxWorkers)
	}
	if got := cfg.Cache.APITTL().Seconds(); got != 60 {
		t.Errorf("Cache.APITTL() = %vs, want 60s", got)
	}

	// -- Logging --
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoadTOML(t *testing.T) {
	clearEnv(t)
	path := writeTemp(t, "gttdash.toml", `
broker = "simulator"

[server]
port = 7000

[market_data]
provider = "static"

[cache]
dir = "cache"
backend = "sqlite"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Broker != "simulator" {
		t.Errorf("Broker = %q, want simulator", cfg.Broker)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Cache.Backend != "sqlite" {
		t.Errorf("Cache.Backend = %q, want sqlite", cfg.Cache.Backend)
	}
	if got, want := cfg.Cache.SQLiteFile(), filepath.Join("cache", "series_cache.db"); got != want {
		t.Errorf("Cache.SQLiteFile() = %q, want %q", got, want)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeTemp(t, "gttdash.yaml", `
broker: simulator
cache:
  dir: "from-file"
`)
	t.Setenv("GTTDASH_CACHE_DIR", "/var/cache/gttdash")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("GTTDASH_PORT", "6000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Cache.Dir != "/var/cache/gttdash" {
		t.Errorf("Cache.Dir = %q, want env override", cfg.Cache.Dir)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want 6000", cfg.Server.Port)
	}
}

func TestValidateRejects(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name    string
		content string
		wantSub string
	}{
		{
			name:    "kite without credentials",
			content: "broker: kite\n",
			wantSub: "kite.api_key",
		},
		{
			name:    "unknown backend",
			content: "broker: simulator\ncache:\n  backend: redis\n",
			wantSub: "Backend",
		},
		{
			name:    "alpaca without keys",
			content: "broker: simulator\nmarket_data:\n  provider: alpaca\n",
			wantSub: "alpaca.api_key",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTemp(t, "bad.yaml", tt.content))
			if err == nil {
				t.Fatal("Load() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("GTTDASH_BROKER", "simulator")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() returned error: %v", err)
	}
	if cfg.Cache.Dir != "stock_data" || cfg.Cache.RetentionDays != 3 || cfg.Cache.MaxWorkers != 8 {
		t.Errorf("defaults not applied: %+v", cfg.Cache)
	}
}
