package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/tinytelemetry/locallog/internal/model"
)

const (
	defaultReadBufferSize  = model.DefaultReadSize
	defaultMaxFrameSize    = model.DefaultMaxFrameSize
	defaultFormat          = formatText
	defaultTimestampLayout = "2006-01-02T15:04:05.0000000"
	defaultExportBatchSize = model.DefaultBatchSize
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	ReadBufferSize  int    `mapstructure:"read-buffer-size" yaml:"read-buffer-size"`
	MaxFrameSize    int    `mapstructure:"max-frame-size" yaml:"max-frame-size"`
	VerifyTrailer   bool   `mapstructure:"verify-trailer" yaml:"verify-trailer"`
	Format          string `mapstructure:"format" yaml:"format"`
	TimestampLayout string `mapstructure:"timestamp-layout" yaml:"timestamp-layout"`
	LocalTime       bool   `mapstructure:"local-time" yaml:"local-time"`
	ShowSource      bool   `mapstructure:"show-source" yaml:"show-source"`
	NoColor         bool   `mapstructure:"no-color" yaml:"no-color"`
	ExportPath      string `mapstructure:"export-path" yaml:"export-path"`
	ExportBatchSize int    `mapstructure:"export-batch-size" yaml:"export-batch-size"`
	ConfigPath      string `mapstructure:"-" yaml:"-"` // not from config file
}

// loadConfig merges defaults, the config file, LOCALLOG_* environment
// variables and command-line overrides, in increasing priority.
func loadConfig(configPath string, overrides map[string]any) (appConfig, error) {
	var cfg appConfig

	v := viper.New()
	v.SetEnvPrefix("LOCALLOG")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("read-buffer-size", defaultReadBufferSize)
	v.SetDefault("max-frame-size", defaultMaxFrameSize)
	v.SetDefault("verify-trailer", true)
	v.SetDefault("format", defaultFormat)
	v.SetDefault("timestamp-layout", defaultTimestampLayout)
	v.SetDefault("local-time", false)
	v.SetDefault("show-source", false)
	v.SetDefault("no-color", false)
	v.SetDefault("export-path", "")
	v.SetDefault("export-batch-size", defaultExportBatchSize)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, fmt.Errorf("finding home directory: %w", err)
		}
		v.SetConfigFile(filepath.Join(home, ".config", "locallog", "config.yml"))
	}

	configFound := true
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
		configFound = false
	}

	for key, value := range overrides {
		v.Set(key, value)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	if configFound {
		cfg.ConfigPath = v.ConfigFileUsed()
	}

	if cfg.ReadBufferSize <= 0 {
		return cfg, fmt.Errorf("invalid read-buffer-size: %d", cfg.ReadBufferSize)
	}
	if cfg.MaxFrameSize < 0 {
		return cfg, fmt.Errorf("invalid max-frame-size: %d", cfg.MaxFrameSize)
	}
	if cfg.ExportBatchSize <= 0 {
		return cfg, fmt.Errorf("invalid export-batch-size: %d", cfg.ExportBatchSize)
	}
	if cfg.Format != formatText && cfg.Format != formatJSON {
		return cfg, fmt.Errorf("invalid format: %q (want %s or %s)", cfg.Format, formatText, formatJSON)
	}
	if strings.TrimSpace(cfg.TimestampLayout) == "" {
		return cfg, errors.New("invalid timestamp-layout: empty")
	}

	// Expand ~ in export-path
	if strings.HasPrefix(cfg.ExportPath, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, fmt.Errorf("finding home directory: %w", err)
		}
		cfg.ExportPath = filepath.Join(home, cfg.ExportPath[2:])
	}

	return cfg, nil
}
