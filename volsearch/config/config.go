package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	internal "github.com/ZanzyTHEbar/volsearch/volsearch"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Index  IndexConfig  `mapstructure:"index"`
	Search SearchConfig `mapstructure:"search"`
	Log    LogConfig    `mapstructure:"log"`
}

// IndexConfig controls which volumes are indexed and how.
type IndexConfig struct {
	// Volumes are drive letters to bulk-enumerate; empty means every fixed drive.
	Volumes []string `mapstructure:"volumes"`
	// Roots are directories indexed by traversal only.
	Roots []string `mapstructure:"roots"`
	// SkipElevation falls back instead of prompting on access denied.
	SkipElevation bool `mapstructure:"skipElevation"`
	AllowFallback bool `mapstructure:"allowFallback"`

	BufferSize    int `mapstructure:"bufferSize"`
	MaxBufferSize int `mapstructure:"maxBufferSize"`
	PipelineDepth int `mapstructure:"pipelineDepth"`
	BatchSize     int `mapstructure:"batchSize"`
	Workers       int `mapstructure:"workers"`

	Exclude       []string `mapstructure:"exclude"`
	MaxPathDepth  int      `mapstructure:"maxPathDepth"`
	ResolverCache int      `mapstructure:"resolverCache"`
}

// SearchConfig stores query defaults.
type SearchConfig struct {
	MaxResults    int  `mapstructure:"maxResults"`
	IncludeHidden bool `mapstructure:"includeHidden"`
}

// LogConfig stores logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"maxSizeMB"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAgeDays"`
	Compress   bool   `mapstructure:"compress"`
}

// Logger converts the log section into logger options.
func (c LogConfig) Logger() internal.LogConfig {
	return internal.LogConfig{
		Level:      c.Level,
		File:       c.File,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

var AppConfig Config

// SetDefaults registers every key with its default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("index.volumes", []string{})
	v.SetDefault("index.roots", internal.DefaultRoots())
	v.SetDefault("index.skipElevation", false)
	v.SetDefault("index.allowFallback", true)
	v.SetDefault("index.bufferSize", internal.DefaultBufferSize)
	v.SetDefault("index.maxBufferSize", internal.DefaultMaxBufferSize)
	v.SetDefault("index.pipelineDepth", internal.DefaultPipelineDepth)
	v.SetDefault("index.batchSize", internal.DefaultBatchSize)
	v.SetDefault("index.workers", internal.DefaultWorkers())
	v.SetDefault("index.exclude", []string{})
	v.SetDefault("index.maxPathDepth", internal.DefaultMaxPathDepth)
	v.SetDefault("index.resolverCache", internal.DefaultResolverCache)

	v.SetDefault("search.maxResults", internal.DefaultMaxResults)
	v.SetDefault("search.includeHidden", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.maxSizeMB", 10)
	v.SetDefault("log.maxBackups", 3)
	v.SetDefault("log.maxAgeDays", 7)
	v.SetDefault("log.compress", false)
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	return Load(viper.New(), configPath)
}

// Load reads configuration into v. Flags bound to v before the call take
// precedence over the file and environment.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(internal.DefaultConfigPath)
		v.AddConfigPath(filepath.Join("/etc", internal.DefaultAppName))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	SetDefaults(v)

	v.SetEnvPrefix(internal.DefaultEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // index.skipElevation -> VOLSEARCH_INDEX_SKIPELEVATION
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// no config file; defaults and environment apply
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	AppConfig = cfg
	return &cfg, nil
}

// Validate rejects settings the indexer cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Index.BufferSize <= 8 {
		errs = append(errs, fmt.Errorf("index.bufferSize must be larger than 8 bytes, got %d", c.Index.BufferSize))
	}
	if c.Index.MaxBufferSize < c.Index.BufferSize {
		errs = append(errs, fmt.Errorf("index.maxBufferSize (%d) is smaller than index.bufferSize (%d)", c.Index.MaxBufferSize, c.Index.BufferSize))
	}
	if c.Index.PipelineDepth < 1 {
		errs = append(errs, fmt.Errorf("index.pipelineDepth must be at least 1, got %d", c.Index.PipelineDepth))
	}
	if c.Index.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("index.batchSize must be at least 1, got %d", c.Index.BatchSize))
	}
	if c.Index.Workers < 1 {
		errs = append(errs, fmt.Errorf("index.workers must be at least 1, got %d", c.Index.Workers))
	}
	if c.Index.MaxPathDepth < 1 {
		errs = append(errs, fmt.Errorf("index.maxPathDepth must be at least 1, got %d", c.Index.MaxPathDepth))
	}
	if c.Search.MaxResults < 0 {
		errs = append(errs, fmt.Errorf("search.maxResults must not be negative, got %d", c.Search.MaxResults))
	}
	return errors.Join(errs...)
}
