package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GuyChahine/deeplogs/internal/app"
	"github.com/GuyChahine/deeplogs/internal/config"
	"github.com/GuyChahine/deeplogs/internal/record"
	"github.com/GuyChahine/deeplogs/internal/storage"
)

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	a, err := app.NewApp(context.Background(), config.Config{
		Storage: config.StorageConfig{Backend: config.BackendMemory},
		Session: config.SessionConfig{SaveInterval: time.Hour, WriteTimeout: time.Second},
		Bar:     config.BarConfig{RunningMeanSize: 1, Size: 10, FillChar: "#", EmptyChar: "."},
	})
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func seedRun(t *testing.T, a *app.App, name string, lr float64, n int) {
	t.Helper()
	rec := record.New(name, "run "+name, map[string]record.Param{"lr": record.FloatParam(lr)})
	for i := range n {
		rec.Append(float64(i), map[string]float64{"loss": 1 / float64(i+1)})
	}
	require.NoError(t, storage.SaveRecord(context.Background(), a.GetStore(), rec))
}

// execute runs the root command against a. Tests using it must not run in
// parallel because the app factory is package state.
func execute(t *testing.T, a App, args ...string) (string, string, error) {
	t.Helper()
	orig := newApp
	newApp = func(context.Context, string) (App, error) { return a, nil }
	t.Cleanup(func() { newApp = orig })

	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestRuns(t *testing.T) {
	a := newTestApp(t)
	seedRun(t, a, "b", 0.1, 3)
	seedRun(t, a, "a", 0.2, 3)

	out, _, err := execute(t, a, "runs")
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", out)
}

func TestDescribe(t *testing.T) {
	a := newTestApp(t)
	seedRun(t, a, "a", 0.1, 4)

	out, _, err := execute(t, a, "describe", "--percentiles", "0.1,0.9")
	require.NoError(t, err)
	assert.Contains(t, out, "a\n")
	assert.Contains(t, out, "loss")
	for _, stat := range []string{"count", "mean", "std", "min", "10%", "50%", "90%", "max"} {
		assert.Contains(t, out, stat)
	}
	assert.Contains(t, out, "4.000000")

	_, _, err = execute(t, a, "describe", "--percentiles", "2")
	require.Error(t, err)
}

func TestDescribeReportsMissingRuns(t *testing.T) {
	a := newTestApp(t)
	seedRun(t, a, "a", 0.1, 2)

	_, errOut, err := execute(t, a, "describe", "a", "ghost")
	require.NoError(t, err)
	assert.Contains(t, errOut, "skipped ghost")
}

func TestInfos(t *testing.T) {
	a := newTestApp(t)
	seedRun(t, a, "a", 0.1, 1)
	seedRun(t, a, "b", 0.2, 1)

	out, _, err := execute(t, a, "infos")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "lr")
	assert.Contains(t, out, "0.2")

	out, _, err = execute(t, a, "infos", "b", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "name: b")
	assert.Contains(t, out, "lr: 0.2")
	assert.NotContains(t, out, "name: a")

	_, _, err = execute(t, a, "infos", "--format", "csv")
	require.Error(t, err)
}

func TestPlot(t *testing.T) {
	a := newTestApp(t)
	seedRun(t, a, "a", 0.1, 20)
	seedRun(t, a, "b", 0.2, 20)

	out, _, err := execute(t, a, "plot", "--smooth", "0", "--width", "20", "--height", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "loss")

	_, _, err = execute(t, a, "plot", "--metrics", "nope")
	require.Error(t, err)
}

func TestDemoRecordsSession(t *testing.T) {
	a := newTestApp(t)

	out, _, err := execute(t, a, "demo", "--name", "d1", "--epochs", "2", "--steps", "5", "--set", "lr=0.5")
	require.NoError(t, err)
	assert.Contains(t, out, "recorded d1 (10 steps)")

	ctx := context.Background()
	rec, err := storage.LoadRecord(ctx, a.GetStore(), "d1")
	require.NoError(t, err)
	assert.Equal(t, 10, rec.Len())
	assert.Equal(t, []string{"accuracy", "loss"}, rec.Metrics)
	assert.True(t, rec.Hyperparams["lr"].Equal(record.FloatParam(0.5)))

	for _, ts := range []float64{5, 10} {
		_, err := a.GetStore().Get(ctx, storage.ImageKey("d1", "samples", ts))
		require.NoError(t, err)
	}
}

func TestDemoRejectsBadInput(t *testing.T) {
	a := newTestApp(t)

	_, _, err := execute(t, a, "demo", "--steps", "0")
	require.Error(t, err)

	_, _, err = execute(t, a, "demo", "--set", "novalue")
	require.Error(t, err)

	_, _, err = execute(t, a, "demo", "--name", "bad/name")
	require.Error(t, err)
}

func TestAppFactoryFailure(t *testing.T) {
	orig := newApp
	newApp = func(context.Context, string) (App, error) { return nil, errors.New("boom") }
	t.Cleanup(func() { newApp = orig })

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"runs"})
	err := root.ExecuteContext(context.Background())
	require.ErrorContains(t, err, "boom")
}

func TestResolveAppMissing(t *testing.T) {
	_, err := resolveApp(context.Background())
	require.Error(t, err)
}
