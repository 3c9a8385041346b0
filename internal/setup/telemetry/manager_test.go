package telemetry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/robalyx/storefront/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLoggersWritesSessionFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	manager := NewManager(dir, &config.Debug{LogLevel: "info", MaxLogsToKeep: 3, MaxLogSizeMB: 1})
	t.Cleanup(manager.Stop)

	mainLogger, dbLogger, err := manager.GetLoggers()
	require.NoError(t, err)

	mainLogger.Info("hello")
	dbLogger.Warn("slow query")
	mainLogger.Debug("hidden")

	content, err := os.ReadFile(filepath.Join(manager.GetCurrentSessionDir(), "main.log"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "hello")
	assert.Contains(t, string(content), manager.GetInstanceID())
	assert.NotContains(t, string(content), "hidden")

	content, err = os.ReadFile(filepath.Join(manager.GetCurrentSessionDir(), "database.log"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "slow query")
}

func TestRotateLogSessions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	for i := range 4 {
		name := start.Add(time.Duration(i) * time.Hour).Format(sessionLayout)
		require.NoError(t, os.MkdirAll(filepath.Join(dir, name), os.ModePerm))
	}

	manager := NewManager(dir, &config.Debug{LogLevel: "info", MaxLogsToKeep: 2})
	manager.now = func() time.Time { return start.Add(24 * time.Hour) }
	t.Cleanup(manager.Stop)

	_, _, err := manager.GetLoggers()
	require.NoError(t, err)

	sessions, err := filepath.Glob(filepath.Join(dir, "*"))
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, start.Add(3*time.Hour).Format(sessionLayout), filepath.Base(sessions[0]))
	assert.Equal(t, start.Add(24*time.Hour).Format(sessionLayout), filepath.Base(sessions[1]))
}

func TestInvalidLevel(t *testing.T) {
	t.Parallel()

	manager := NewManager(t.TempDir(), &config.Debug{LogLevel: "loud"})
	t.Cleanup(manager.Stop)

	_, _, err := manager.GetLoggers()
	require.Error(t, err)
}
