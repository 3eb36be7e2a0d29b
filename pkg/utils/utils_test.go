package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	t.Run("WritesToConfiguredFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		cfg := DefaultLogConfig()
		cfg.OutputPath = filepath.Join(tmpDir, "logs", "test.log")

		logger, err := NewLogger(cfg)
		require.NoError(t, err)

		logger.Info("logger smoke test", zap.String("key", "value"))
		require.NoError(t, logger.Sync())

		data, err := os.ReadFile(cfg.OutputPath)
		require.NoError(t, err)
		assert.Contains(t, string(data), "logger smoke test")
		assert.Contains(t, string(data), `"key":"value"`)
	})

	t.Run("NilConfigUsesDefaults", func(t *testing.T) {
		cfg := DefaultLogConfig()
		assert.Equal(t, "info", cfg.Level)
		assert.Equal(t, 100, cfg.MaxSize)
	})

	t.Run("InvalidLevel", func(t *testing.T) {
		tmpDir := t.TempDir()
		cfg := DefaultLogConfig()
		cfg.OutputPath = filepath.Join(tmpDir, "test.log")
		cfg.Level = "loudest"

		_, err := NewLogger(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing log level")
	})

	t.Run("DebugTeesToConsole", func(t *testing.T) {
		tmpDir := t.TempDir()
		cfg := DefaultLogConfig()
		cfg.OutputPath = filepath.Join(tmpDir, "test.log")
		cfg.Debug = true

		logger, err := NewLogger(cfg)
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zap.DebugLevel))
	})
}

func TestLoggerWithContext(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := DefaultLogConfig()
	cfg.OutputPath = filepath.Join(tmpDir, "test.log")

	parent, err := NewLogger(cfg)
	require.NoError(t, err)

	child := LoggerWithContext(parent, zap.String("sessionID", "s1"))
	child.Info("child entry")
	require.NoError(t, child.Sync())

	data, err := os.ReadFile(cfg.OutputPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sessionID":"s1"`)
}
