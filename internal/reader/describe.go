package reader

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/GuyChahine/deeplogs/internal/record"
)

// DefaultPercentiles are used when Describe is given none.
var DefaultPercentiles = []float64{0.25, 0.5, 0.75, 0.9}

// ErrInvalidPercentile is returned for percentiles outside [0, 1].
var ErrInvalidPercentile = errors.New("percentile must be between 0 and 1")

// Description holds summary statistics for one run. Values[i][j] is the
// statistic Stats[i] of metric Metrics[j]; undefined statistics are NaN.
type Description struct {
	Run     string
	Stats   []string
	Metrics []string
	Values  [][]float64
}

// Value looks up one statistic.
func (d Description) Value(stat, metric string) (float64, bool) {
	i := slices.Index(d.Stats, stat)
	j := slices.Index(d.Metrics, metric)
	if i < 0 || j < 0 {
		return 0, false
	}
	return d.Values[i][j], true
}

// Describe computes count, mean, sample std, min, the requested percentiles
// and max of every metric of the selected runs, ignoring nulls. The median is
// always included.
func (r *Reader) Describe(names []string, percentiles []float64) ([]Description, error) {
	ps, err := normalizePercentiles(percentiles)
	if err != nil {
		return nil, err
	}
	stats := []string{"count", "mean", "std", "min"}
	for _, p := range ps {
		stats = append(stats, PercentileLabel(p))
	}
	stats = append(stats, "max")

	runs := r.selected(names)
	out := make([]Description, 0, len(runs))
	for _, rec := range runs {
		d := Description{
			Run:     rec.Name,
			Stats:   stats,
			Metrics: slices.Clone(rec.Metrics),
			Values:  make([][]float64, len(stats)),
		}
		for i := range d.Values {
			d.Values[i] = make([]float64, len(rec.Metrics))
		}
		for j, m := range rec.Metrics {
			col := summarize(nonNull(rec.Series[m]), ps)
			for i, v := range col {
				d.Values[i][j] = v
			}
		}
		out = append(out, d)
	}
	return out, nil
}

func normalizePercentiles(in []float64) ([]float64, error) {
	if len(in) == 0 {
		in = DefaultPercentiles
	}
	out := make([]float64, 0, len(in)+1)
	for _, p := range in {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPercentile, p)
		}
		out = append(out, p)
	}
	if !slices.Contains(out, 0.5) {
		out = append(out, 0.5)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// PercentileLabel formats 0.25 as "25%".
func PercentileLabel(p float64) string {
	v := math.Round(p*100*1e6) / 1e6
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}

func nonNull(values []record.Scalar) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v.Valid && !math.IsNaN(v.Value) {
			out = append(out, v.Value)
		}
	}
	return out
}

// summarize returns count, mean, std, min, percentiles..., max.
func summarize(values []float64, ps []float64) []float64 {
	nan := math.NaN()
	out := make([]float64, 0, 5+len(ps))
	n := len(values)
	out = append(out, float64(n))
	if n == 0 {
		for i := 0; i < 4+len(ps); i++ {
			out = append(out, nan)
		}
		return out
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)
	std := nan
	if n > 1 {
		var ss float64
		for _, v := range values {
			ss += (v - mean) * (v - mean)
		}
		std = math.Sqrt(ss / float64(n-1))
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)
	out = append(out, mean, std, sorted[0])
	for _, p := range ps {
		out = append(out, quantile(sorted, p))
	}
	return append(out, sorted[n-1])
}

// quantile interpolates linearly between the closest ranks of sorted.
func quantile(sorted []float64, p float64) float64 {
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
