// Package metrics exposes Prometheus collectors for logging sessions.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Flush results used as label values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Collectors owns the session collectors. A nil *Collectors is valid and
// records nothing, so callers never need to branch on whether metrics are on.
type Collectors struct {
	flushes       *prometheus.CounterVec
	flushDuration *prometheus.HistogramVec
	scalars       *prometheus.CounterVec
	images        *prometheus.CounterVec
	recordBytes   *prometheus.GaugeVec
	timesteps     *prometheus.GaugeVec
}

// New registers the collectors against the provided registry. Collectors
// already registered by an earlier call are reused.
func New(reg prometheus.Registerer) (*Collectors, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collectors{
		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deeplogs_flushes_total",
			Help: "Record writes partitioned by session, trigger and result.",
		}, []string{"session", "trigger", "result"}),
		flushDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "deeplogs_flush_duration_seconds",
			Help:    "Wall time of record writes.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"session", "trigger"}),
		scalars: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deeplogs_scalar_calls_total",
			Help: "Scalar observations recorded per session.",
		}, []string{"session"}),
		images: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deeplogs_images_total",
			Help: "Images written per session partitioned by result.",
		}, []string{"session", "result"}),
		recordBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "deeplogs_record_bytes",
			Help: "Size of the last serialized record per session.",
		}, []string{"session"}),
		timesteps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "deeplogs_record_timesteps",
			Help: "Timesteps held by the last serialized record per session.",
		}, []string{"session"}),
	}
	var err error
	if c.flushes, err = register(reg, c.flushes); err != nil {
		return nil, err
	}
	if c.flushDuration, err = register(reg, c.flushDuration); err != nil {
		return nil, err
	}
	if c.scalars, err = register(reg, c.scalars); err != nil {
		return nil, err
	}
	if c.images, err = register(reg, c.images); err != nil {
		return nil, err
	}
	if c.recordBytes, err = register(reg, c.recordBytes); err != nil {
		return nil, err
	}
	if c.timesteps, err = register(reg, c.timesteps); err != nil {
		return nil, err
	}
	return c, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register session collector: %w", err)
	}
	return c, nil
}

// ObserveFlush records one record write.
func (c *Collectors) ObserveFlush(session, trigger string, dur time.Duration, err error) {
	if c == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	c.flushes.WithLabelValues(session, trigger, result).Inc()
	c.flushDuration.WithLabelValues(session, trigger).Observe(dur.Seconds())
}

// ObserveRecord records the size of a serialized record.
func (c *Collectors) ObserveRecord(session string, bytes, timesteps int) {
	if c == nil {
		return
	}
	c.recordBytes.WithLabelValues(session).Set(float64(bytes))
	c.timesteps.WithLabelValues(session).Set(float64(timesteps))
}

// ObserveScalar counts one Scalar call.
func (c *Collectors) ObserveScalar(session string) {
	if c == nil {
		return
	}
	c.scalars.WithLabelValues(session).Inc()
}

// ObserveImage counts one image write.
func (c *Collectors) ObserveImage(session string, err error) {
	if c == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	c.images.WithLabelValues(session, result).Inc()
}
