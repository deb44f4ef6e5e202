// Package config loads gridcalc settings from YAML with environment
// overrides.
package config

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"go.alis.build/alog"
	"gopkg.in/yaml.v3"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

// Environment variables that override file values
const (
	EnvRows         = "GRIDCALC_ROWS"
	EnvCols         = "GRIDCALC_COLS"
	EnvHistoryDepth = "GRIDCALC_HISTORY_DEPTH"
	EnvLogLevel     = "GRIDCALC_LOG_LEVEL"
)

// Config holds engine and logging settings
type Config struct {
	Rows         int    `yaml:"rows"`
	Cols         int    `yaml:"cols"`
	HistoryDepth int    `yaml:"history_depth"`
	LogLevel     string `yaml:"log_level"`
}

// Default returns the 100x26 grid with 200 undo groups, logging at info
func Default() Config {
	return Config{
		Rows:         spreadsheet.DefaultRows,
		Cols:         spreadsheet.DefaultCols,
		HistoryDepth: spreadsheet.DefaultHistoryDepth,
		LogLevel:     "info",
	}
}

// Load reads a config file, applies environment overrides and validates
// the result. an empty path skips the file and starts from defaults.
func Load(ctx context.Context, path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv(ctx)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Parse decodes YAML on top of the defaults without reading the environment
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := decode(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func decode(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // reject typos like "row:"
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(ctx context.Context) {
	c.Rows = intEnv(ctx, EnvRows, c.Rows)
	c.Cols = intEnv(ctx, EnvCols, c.Cols)
	c.HistoryDepth = intEnv(ctx, EnvHistoryDepth, c.HistoryDepth)

	if raw := os.Getenv(EnvLogLevel); raw != "" {
		if _, err := ParseLevel(raw); err != nil {
			alog.Warnf(ctx, "invalid %s=%q, using %q", EnvLogLevel, raw, c.LogLevel)
		} else {
			c.LogLevel = raw
		}
	}
}

func intEnv(ctx context.Context, name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		alog.Warnf(ctx, "invalid %s=%q, using fallback %d", name, raw, fallback)
		return fallback
	}
	return value
}

// Validate checks that every setting is usable
func (c *Config) Validate() error {
	if c.Rows <= 0 {
		return fmt.Errorf("rows must be positive, got %d", c.Rows)
	}
	if c.Cols <= 0 {
		return fmt.Errorf("cols must be positive, got %d", c.Cols)
	}
	// engine coordinates are uint32
	if int64(c.Rows) > math.MaxUint32 {
		return fmt.Errorf("rows must be at most %d, got %d", uint32(math.MaxUint32), c.Rows)
	}
	if int64(c.Cols) > math.MaxUint32 {
		return fmt.Errorf("cols must be at most %d, got %d", uint32(math.MaxUint32), c.Cols)
	}
	if c.HistoryDepth <= 0 {
		return fmt.Errorf("history_depth must be positive, got %d", c.HistoryDepth)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Workbook converts the settings to engine options
func (c *Config) Workbook() spreadsheet.Options {
	return spreadsheet.Options{
		Rows:         uint32(c.Rows),
		Cols:         uint32(c.Cols),
		HistoryDepth: c.HistoryDepth,
	}
}

// Level returns the configured alog level, info if it cannot be parsed
func (c *Config) Level() alog.LogLevel {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		return alog.LevelInfo
	}
	return level
}

// ParseLevel maps debug, info, warning (or warn) and error to alog levels
func ParseLevel(s string) (alog.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return alog.LevelDebug, nil
	case "info", "":
		return alog.LevelInfo, nil
	case "warning", "warn":
		return alog.LevelWarning, nil
	case "error":
		return alog.LevelError, nil
	default:
		return alog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
