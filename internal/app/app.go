// Package app wires configuration into a ready engine for the binaries.
package app

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gttdash/internal/broker"
	"gttdash/internal/config"
	"gttdash/internal/engine"
	"gttdash/internal/history"
	"gttdash/internal/marketdata"
	"gttdash/internal/store"
	"gttdash/internal/util"
)

// DefaultConfigPath is used when GTTDASH_CONFIG is unset.
const DefaultConfigPath = "config/gttdash.yaml"

// ConfigPath returns the config file path from GTTDASH_CONFIG.
func ConfigPath() string {
	if p := os.Getenv("GTTDASH_CONFIG"); p != "" {
		return p
	}
	return DefaultConfigPath
}

// LoadConfig loads path, falling back to defaults plus environment when
// the file does not exist.
func LoadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return config.FromEnv()
	}
	return config.Load(path)
}

// NewLogger builds the process logger. When lg.Dir is set, output is teed
// to stdout and <dir>/<name>-<date>.log. The returned closer releases the
// log file.
func NewLogger(lg config.Logging, name string) (*slog.Logger, io.Closer, error) {
	if lg.Dir == "" {
		return util.NewLogger(lg.Level, lg.Format), nopCloser{}, nil
	}
	if err := os.MkdirAll(lg.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log dir: %w", err)
	}
	path := filepath.Join(lg.Dir, fmt.Sprintf("%s-%s.log", name, time.Now().Format("2006-01-02")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	w := io.MultiWriter(os.Stdout, f)
	return util.NewLoggerTo(w, lg.Level, lg.Format), f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// App holds the wired engine and the resources it owns.
type App struct {
	Config *config.Config
	Engine *engine.Engine
	Store  store.SeriesStore
	Log    *slog.Logger
}

// New opens the series store and builds the market-data provider, the
// history cache, the broker session provider and the engine from cfg.
func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	s, err := store.Open(cfg.Cache.Backend, cfg.Cache.Dir, cfg.Cache.SQLiteFile())
	if err != nil {
		return nil, fmt.Errorf("opening cache store: %w", err)
	}
	md, err := marketdata.New(cfg.MarketData, cfg.Alpaca, log)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("market data provider: %w", err)
	}
	bp, err := broker.New(cfg, log)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("broker: %w", err)
	}
	hc := history.New(s, md,
		history.WithLookbackDays(cfg.MarketData.LookbackDays),
		history.WithLogger(log),
	)
	e := engine.New(engine.Config{
		Provider:      bp,
		History:       hc,
		MaxWorkers:    cfg.Cache.MaxWorkers,
		APITTL:        cfg.Cache.APITTL(),
		RetentionDays: cfg.Cache.RetentionDays,
		Logger:        log,
	})
	log.Info("engine ready",
		"broker", bp.Name(),
		"market_data", md.Name(),
		"cache_backend", cfg.Cache.Backend,
		"cache_dir", cfg.Cache.Dir,
	)
	return &App{Config: cfg, Engine: e, Store: s, Log: log}, nil
}

// Close releases the series store.
func (a *App) Close() error {
	return a.Store.Close()
}
