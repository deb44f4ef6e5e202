package config

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.alis.build/alog"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gridcalc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)

	opts := cfg.Workbook()
	assert.Equal(t, uint32(100), opts.Rows)
	assert.Equal(t, uint32(26), opts.Cols)
	assert.Equal(t, 200, opts.HistoryDepth)
	assert.Equal(t, alog.LevelInfo, cfg.Level())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, "rows: 500\ncols: 40\nlog_level: debug\n")

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Rows)
	assert.Equal(t, 40, cfg.Cols)
	assert.Equal(t, 200, cfg.HistoryDepth, "unset fields keep defaults")
	assert.Equal(t, alog.LevelDebug, cfg.Level())
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "row: 500\n")

	_, err := Load(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, "rows: 500\nhistory_depth: 10\n")
	t.Setenv(EnvRows, "1000")
	t.Setenv(EnvCols, "not-a-number")
	t.Setenv(EnvLogLevel, "ERROR")

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Rows)
	assert.Equal(t, 26, cfg.Cols, "invalid values fall back")
	assert.Equal(t, 10, cfg.HistoryDepth)
	assert.Equal(t, alog.LevelError, cfg.Level())

	t.Setenv(EnvLogLevel, "loud")
	cfg, err = Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"zero rows", "rows: 0"},
		{"negative cols", "cols: -1"},
		{"zero history", "history_depth: 0"},
		{"unknown level", "log_level: chatty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}

	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestValidateGridFitsUint32(t *testing.T) {
	if strconv.IntSize < 64 {
		t.Skip("int cannot exceed uint32 range")
	}
	tooBig := int(int64(1) << 32)

	cfg := Default()
	cfg.Rows = tooBig
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rows must be at most 4294967295")

	cfg = Default()
	cfg.Cols = tooBig
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cols must be at most")

	_, err = Parse([]byte("rows: 4294967296"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")

	cfg = Default()
	cfg.Rows = int(int64(math.MaxUint32))
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint32(math.MaxUint32), cfg.Workbook().Rows)
}

func TestParseLevel(t *testing.T) {
	for input, want := range map[string]alog.LogLevel{
		"debug":   alog.LevelDebug,
		"Info":    alog.LevelInfo,
		"warn":    alog.LevelWarning,
		"warning": alog.LevelWarning,
		"error":   alog.LevelError,
	} {
		got, err := ParseLevel(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}
}
