package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/dshills/gamesearch-mcp/internal/catalog"
	"github.com/dshills/gamesearch-mcp/internal/config"
	"github.com/dshills/gamesearch-mcp/internal/embedder"
	"github.com/dshills/gamesearch-mcp/internal/indexer"
	"github.com/dshills/gamesearch-mcp/internal/logger"
	"github.com/dshills/gamesearch-mcp/internal/metrics"
	"github.com/dshills/gamesearch-mcp/internal/storage"
)

// deps holds everything a command needs
type deps struct {
	cfg      config.Config
	logger   *zap.Logger
	store    *storage.SQLiteStorage
	embedder *embedder.Provider
	catalog  *catalog.Catalog
	indexer  *indexer.Indexer
}

// loadConfig reads .env, the config file, and the global flag overrides
func loadConfig(c *cli.Context) (config.Config, error) {
	if err := config.LoadDotEnv(c.String("env-file")); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return config.Config{}, err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
		cfg.ApplyDefaults()
		if err := cfg.Validate(); err != nil {
			return config.Config{}, fmt.Errorf("invalid config: %w", err)
		}
	}
	return cfg, nil
}

// setup wires storage, embedder, catalog, and indexer. The caller must Close
// the result.
func setup(c *cli.Context) (*deps, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	log, err := logger.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create manifest dir: %w", err)
	}

	store, err := storage.NewSQLiteStorage(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}

	emb, err := embedder.New(cfg.EmbedderConfig(), log)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	log.Debug("configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("data_dir", cfg.DataDir),
		zap.String("db_path", cfg.DBPath),
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("build_mode", storage.BuildMode))

	return &deps{
		cfg:      cfg,
		logger:   log,
		store:    store,
		embedder: emb,
		catalog:  catalog.New(cfg.DataDir, emb, log.Named("catalog")),
		indexer:  indexer.New(store, emb, log.Named("indexer")),
	}, nil
}

// Close releases the embedder and the manifest
func (d *deps) Close() error {
	err := errors.Join(d.embedder.Close(), d.store.Close())
	_ = d.logger.Sync()
	return err
}
