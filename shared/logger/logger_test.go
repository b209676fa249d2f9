package logger_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procedure-review/shared/logger"
)

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "review.log")

	log, err := logger.New(logger.Config{Level: "debug", Encoding: "json", OutputPath: path})
	require.NoError(t, err)

	log.Info("pipeline started")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"pipeline started"`)
	assert.Contains(t, string(data), `"level":"INFO"`)
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "review.log")

	log, err := logger.New(logger.Config{Level: "verbose", Encoding: "json", OutputPath: path})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("visible")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "visible")
}
