package config

import (
	"strings"
	"time"

	"github.com/marmos91/photoloader/internal/bytesize"
	"github.com/marmos91/photoloader/pkg/loader"
)

// ApplyDefaults fills unset configuration fields with defaults. Explicit
// values are preserved; only zero values are replaced.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyHTTPDefaults(&cfg.HTTP)
	applyCacheDefaults(&cfg.Cache)
	applyPreloadDefaults(&cfg.Preload)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

func applyHTTPDefaults(cfg *HTTPConfig) {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
}

func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.HolderBudget == 0 {
		cfg.HolderBudget = bytesize.ByteSize(loader.DefaultHolderCacheBytes)
	}
	if cfg.DecodedBudget == 0 {
		cfg.DecodedBudget = bytesize.ByteSize(loader.DefaultDecodedCacheBytes)
	}
	if cfg.CapacityDivisor == 0 {
		cfg.CapacityDivisor = loader.DefaultCapacityDivisor
	}
	if cfg.RedZoneFraction == 0 {
		cfg.RedZoneFraction = loader.DefaultRedZoneFraction
	}
}

func applyPreloadDefaults(cfg *PreloadConfig) {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = loader.DefaultPreloadBatchSize
	}
	if cfg.Delay == 0 {
		cfg.Delay = loader.DefaultPreloadDelay
	}
}

// GetDefaultConfig returns a configuration with every field defaulted.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// LoaderConfig converts the cache and preload sections into the loader's
// own tunables struct.
func (c *Config) LoaderConfig() loader.Config {
	return loader.Config{
		HolderCacheBytes:  c.Cache.HolderBudget.Int64(),
		DecodedCacheBytes: c.Cache.DecodedBudget.Int64(),
		CapacityDivisor:   c.Cache.CapacityDivisor,
		PreloadBatchSize:  c.Preload.BatchSize,
		PreloadDelay:      c.Preload.Delay,
		RedZoneFraction:   c.Cache.RedZoneFraction,
	}
}
