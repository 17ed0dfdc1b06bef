package logger_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/surrealdb/pagetree/pkg/logger"
)

func TestLog(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	templogger, err := logger.New().FromBuffer(buff).Make()
	require.NoError(t, err)
	require.NotNil(t, templogger)
	require.Equal(t, buff.Len(), 0)
	templogger.Logger.Info().Msg("Test")
	require.Contains(t, buff.String(), "Test")

	buff.Reset()
	templogger.Logger.Debug().Msg("hidden")
	require.Zero(t, buff.Len(), "default level is info")
}

func TestLogLevel(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	templogger, err := logger.New().FromBuffer(buff).Level("debug").Make()
	require.NoError(t, err)
	templogger.Logger.Debug().Str("step", "commit").Msg("shown")
	require.Contains(t, buff.String(), `"step":"commit"`)

	_, err = logger.New().Level("loud").Make()
	require.Error(t, err)
}

func TestLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagetree.log")
	templogger, err := logger.New().FromPath(path).Make()
	require.NoError(t, err)
	templogger.Logger.Warn().Msg("to file")
	require.NoError(t, templogger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "to file")
}
