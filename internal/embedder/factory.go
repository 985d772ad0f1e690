package embedder

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// LoaderFor returns the Loader registered for a provider name
func LoaderFor(provider string) (Loader, error) {
	switch strings.ToLower(provider) {
	case ProviderLocal, "":
		return LoadLocal, nil
	case ProviderOpenAI:
		return LoadOpenAI, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
}

// New creates a Provider with the caches cfg asks for. The model itself is
// loaded lazily on first use.
func New(cfg Config, logger *zap.Logger) (*Provider, error) {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	loader, err := LoaderFor(cfg.Provider)
	if err != nil {
		return nil, err
	}

	opts := []Option{WithLogger(logger.Named("embedder"))}
	if cfg.CacheSize > 0 {
		opts = append(opts, WithCache(NewCache(cfg.CacheSize)))
	}
	if cfg.PersistentCache {
		disk, err := OpenDiskCache(filepath.Join(cfg.CacheDir, "vectors"), logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithDiskCache(disk))
	}

	return NewProvider(cfg, loader, opts...), nil
}
