package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollectorsRecord(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	c.ObserveFlush("run", "scheduled", 10*time.Millisecond, nil)
	c.ObserveFlush("run", "scheduled", 10*time.Millisecond, errors.New("boom"))
	c.ObserveFlush("run", "close", time.Millisecond, nil)
	c.ObserveScalar("run")
	c.ObserveScalar("run")
	c.ObserveImage("run", nil)
	c.ObserveRecord("run", 2048, 12)

	require.Equal(t, 1.0, testutil.ToFloat64(c.flushes.WithLabelValues("run", "scheduled", ResultSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(c.flushes.WithLabelValues("run", "scheduled", ResultError)))
	require.Equal(t, 1.0, testutil.ToFloat64(c.flushes.WithLabelValues("run", "close", ResultSuccess)))
	require.Equal(t, 2.0, testutil.ToFloat64(c.scalars.WithLabelValues("run")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.images.WithLabelValues("run", ResultSuccess)))
	require.Equal(t, 2048.0, testutil.ToFloat64(c.recordBytes.WithLabelValues("run")))
	require.Equal(t, 12.0, testutil.ToFloat64(c.timesteps.WithLabelValues("run")))
	require.Equal(t, 2, testutil.CollectAndCount(c.flushDuration, "deeplogs_flush_duration_seconds"))
}

func TestNewReusesRegisteredCollectors(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	first, err := New(reg)
	require.NoError(t, err)
	second, err := New(reg)
	require.NoError(t, err)

	first.ObserveScalar("shared")
	require.Equal(t, 1.0, testutil.ToFloat64(second.scalars.WithLabelValues("shared")))
}

func TestNilCollectorsIsNoop(t *testing.T) {
	t.Parallel()

	var c *Collectors
	c.ObserveFlush("run", "explicit", time.Second, nil)
	c.ObserveScalar("run")
	c.ObserveImage("run", errors.New("x"))
	c.ObserveRecord("run", 1, 1)
}
