package logging_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workfacts/logging"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, logging.ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, logging.ParseLevel("WARNING"))
	assert.Equal(t, zapcore.ErrorLevel, logging.ParseLevel(" error "))
	assert.Equal(t, zapcore.InfoLevel, logging.ParseLevel("bogus"))
}

func TestNew_Production(t *testing.T) {
	log, err := logging.New(logging.Config{Level: "warn"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
}

func TestNew_Dev(t *testing.T) {
	log, err := logging.New(logging.Config{Level: "debug", Dev: true})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_File(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "logs", "workfacts.log")

	log, err := logging.New(logging.Config{Level: "info", File: file})
	require.NoError(t, err)
	log.Info("hello")
	_ = log.Sync()

	entries, err := os.ReadDir(filepath.Join(dir, "logs"))
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}
