// Package record defines the in-memory and on-disk representation of one
// logging session: its identity, hyperparameters and aligned metric series.
package record

import (
	"errors"
	"fmt"
	"sort"
)

// ErrShapeInconsistency signals that a series length differs from the number
// of timesteps. It indicates a defect, never a user error.
var ErrShapeInconsistency = errors.New("record shape inconsistency")

// Record holds a run's identity and its time series. Series[k] is aligned by
// position with Timesteps for every k; Metrics lists the keys of Series in
// the order they were first recorded.
//
// Record does no locking of its own; the owner serializes access.
type Record struct {
	Name        string
	Description string
	RunID       string
	Hyperparams map[string]Param
	Timesteps   []float64
	Metrics     []string
	Series      map[string][]Scalar
}

// New creates an empty Record with fixed identity fields.
func New(name, description string, hyperparams map[string]Param) *Record {
	hp := make(map[string]Param, len(hyperparams))
	for k, v := range hyperparams {
		hp[k] = v
	}
	return &Record{
		Name:        name,
		Description: description,
		Hyperparams: hp,
		Timesteps:   []float64{},
		Metrics:     []string{},
		Series:      map[string][]Scalar{},
	}
}

// Len returns the number of recorded timesteps.
func (r *Record) Len() int { return len(r.Timesteps) }

// Append records one observation. Metrics missing from values get a null for
// this timestep; metrics seen for the first time are backfilled with nulls for
// every earlier timestep. New metrics are registered in sorted order.
//
// Schema growth completes before any value is appended, and the timestep is
// appended last, so the record is consistent again when Append returns.
func (r *Record) Append(timestep float64, values map[string]float64) {
	if r.Series == nil {
		r.Series = map[string][]Scalar{}
	}
	n := len(r.Timesteps)

	var fresh []string
	for name := range values {
		if _, ok := r.Series[name]; !ok {
			fresh = append(fresh, name)
		}
	}
	sort.Strings(fresh)
	for _, name := range fresh {
		r.Series[name] = make([]Scalar, n, n+1)
		r.Metrics = append(r.Metrics, name)
	}

	for _, name := range r.Metrics {
		v, ok := values[name]
		if ok {
			r.Series[name] = append(r.Series[name], Num(v))
		} else {
			r.Series[name] = append(r.Series[name], Scalar{})
		}
	}
	r.Timesteps = append(r.Timesteps, timestep)
}

// Validate checks the shape invariant: every series has exactly one entry per
// timestep and Metrics names exactly the keys of Series.
func (r *Record) Validate() error {
	if len(r.Metrics) != len(r.Series) {
		return fmt.Errorf("%w: %d metric names for %d series", ErrShapeInconsistency, len(r.Metrics), len(r.Series))
	}
	seen := make(map[string]struct{}, len(r.Metrics))
	for _, name := range r.Metrics {
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: duplicate metric %q", ErrShapeInconsistency, name)
		}
		seen[name] = struct{}{}
		values, ok := r.Series[name]
		if !ok {
			return fmt.Errorf("%w: metric %q has no series", ErrShapeInconsistency, name)
		}
		if len(values) != len(r.Timesteps) {
			return fmt.Errorf("%w: metric %q has %d values for %d timesteps",
				ErrShapeInconsistency, name, len(values), len(r.Timesteps))
		}
	}
	return nil
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	out := New(r.Name, r.Description, r.Hyperparams)
	out.RunID = r.RunID
	out.Timesteps = append(out.Timesteps, r.Timesteps...)
	out.Metrics = append(out.Metrics, r.Metrics...)
	for name, values := range r.Series {
		out.Series[name] = append(make([]Scalar, 0, len(values)), values...)
	}
	return out
}

// MetricMean is the running mean of the tail of one series.
type MetricMean struct {
	Name  string
	Value float64
	// Valid is false when the tail holds only nulls.
	Valid bool
}

// TailMeans averages the last k entries of every series, skipping nulls.
// Metrics are returned in recording order.
func (r *Record) TailMeans(k int) []MetricMean {
	if k <= 0 {
		k = 1
	}
	out := make([]MetricMean, 0, len(r.Metrics))
	for _, name := range r.Metrics {
		values := r.Series[name]
		start := len(values) - k
		if start < 0 {
			start = 0
		}
		var sum float64
		var count int
		for _, v := range values[start:] {
			if v.Valid {
				sum += v.Value
				count++
			}
		}
		mean := MetricMean{Name: name}
		if count > 0 {
			mean.Value = sum / float64(count)
			mean.Valid = true
		}
		out = append(out, mean)
	}
	return out
}
