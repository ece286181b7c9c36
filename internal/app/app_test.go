// Package app_test contains unit tests for the app package.
package app_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GuyChahine/deeplogs/internal/app"
	"github.com/GuyChahine/deeplogs/internal/bar"
	"github.com/GuyChahine/deeplogs/internal/config"
	"github.com/GuyChahine/deeplogs/internal/record"
	"github.com/GuyChahine/deeplogs/internal/storage"
	"github.com/GuyChahine/deeplogs/internal/storage/local"
	"github.com/GuyChahine/deeplogs/internal/storage/memory"
	"github.com/GuyChahine/deeplogs/internal/storage/sqlstore"
)

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Storage: config.StorageConfig{Backend: config.BackendLocal, BaseDir: t.TempDir()},
		Session: config.SessionConfig{SaveInterval: time.Hour, WriteTimeout: time.Second},
		Bar:     config.BarConfig{RunningMeanSize: 1, Size: 10, FillChar: "#", EmptyChar: " "},
		Metrics: config.MetricsConfig{Enabled: true},
	}
}

func TestNewAppBackends(t *testing.T) {
	t.Parallel()

	t.Run("local", func(t *testing.T) {
		a, err := app.NewApp(context.Background(), baseConfig(t))
		require.NoError(t, err)
		defer a.Close()
		assert.IsType(t, &local.Store{}, a.GetStore())
		assert.NotNil(t, a.GetMetrics())
		assert.NotNil(t, a.Registry())
	})

	t.Run("memory", func(t *testing.T) {
		cfg := baseConfig(t)
		cfg.Storage.Backend = config.BackendMemory
		cfg.Metrics.Enabled = false
		a, err := app.NewApp(context.Background(), cfg)
		require.NoError(t, err)
		defer a.Close()
		assert.IsType(t, &memory.Store{}, a.GetStore())
		assert.Nil(t, a.GetMetrics())
	})

	t.Run("sql", func(t *testing.T) {
		cfg := baseConfig(t)
		cfg.Storage.Backend = config.BackendSQL
		cfg.Storage.SQL.DSN = "sqlite://" + filepath.Join(t.TempDir(), "logs.db")
		a, err := app.NewApp(context.Background(), cfg)
		require.NoError(t, err)
		defer a.Close()
		assert.IsType(t, &sqlstore.Store{}, a.GetStore())
	})

	t.Run("invalid", func(t *testing.T) {
		cfg := baseConfig(t)
		cfg.Storage.Backend = "tape"
		_, err := app.NewApp(context.Background(), cfg)
		require.Error(t, err)
	})
}

func TestSessionLifecycleThroughApp(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "deeplogs.prom")
	a, err := app.NewApp(context.Background(), cfg)
	require.NoError(t, err)

	ctx := context.Background()
	s, err := a.NewSession(ctx, "mnist", "baseline", map[string]record.Param{"lr": record.FloatParam(0.1)})
	require.NoError(t, err)
	require.NoError(t, s.Scalar(0, map[string]float64{"loss": 1}))
	require.NoError(t, s.Close(ctx))

	rec, err := storage.LoadRecord(ctx, a.GetStore(), "mnist")
	require.NoError(t, err)
	assert.Equal(t, "baseline", rec.Description)
	assert.Equal(t, 1, rec.Len())

	a.Close()
	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `deeplogs_flushes_total{result="success",session="mnist",trigger="close"} 1`)
	assert.Contains(t, string(data), `deeplogs_scalar_calls_total{session="mnist"} 1`)
}

func TestNewBarUsesConfig(t *testing.T) {
	t.Parallel()

	a, err := app.NewApp(context.Background(), baseConfig(t))
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.NewBar("train", nil, bar.Config{Writer: os.Stderr}))
}
