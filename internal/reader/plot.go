package reader

import (
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/GuyChahine/deeplogs/internal/record"
)

// ErrUnknownMetric is returned when a plotted metric exists in no run.
var ErrUnknownMetric = errors.New("unknown metric")

// ErrInvalidSmoothing is returned for smoothing factors outside [0, 1).
var ErrInvalidSmoothing = errors.New("smoothing must be in [0, 1)")

// PlotOptions controls Plot. Zero sizes fall back to the defaults.
type PlotOptions struct {
	Metrics []string
	Runs    []string
	NCols   int
	Width   int
	Height  int
	// Smooth is the weight of history in the exponential moving average:
	// alpha = 1 - Smooth. Zero plots raw values.
	Smooth float64
	XLabel string
}

// Plot defaults.
const (
	DefaultNCols  = 2
	DefaultWidth  = 48
	DefaultHeight = 10
	DefaultSmooth = 0.99
	DefaultXLabel = "timestep"
)

var markers = []string{"●", "■", "▲", "◆", "✚", "○", "□", "△"}

var (
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Faint(true)
	runPalette  = []lipgloss.Color{"4", "3", "2", "1", "5", "6", "12", "9"}
	axisFormat  = func(v float64) string { return strconv.FormatFloat(v, 'g', 4, 64) }
	panelGutter = "  "
)

// DefaultPlotOptions returns the options Plot uses for a plain call.
func DefaultPlotOptions() PlotOptions {
	return PlotOptions{
		NCols:  DefaultNCols,
		Width:  DefaultWidth,
		Height: DefaultHeight,
		Smooth: DefaultSmooth,
		XLabel: DefaultXLabel,
	}
}

type point struct{ x, y float64 }

type line struct {
	run    string
	points []point
}

// Plot draws one text chart per metric, one line per run, laid out in
// NCols columns, and writes it to w.
func (r *Reader) Plot(w io.Writer, opts PlotOptions) error {
	if opts.NCols <= 0 {
		opts.NCols = DefaultNCols
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 1 {
		opts.Height = DefaultHeight
	}
	if opts.XLabel == "" {
		opts.XLabel = DefaultXLabel
	}
	if math.IsNaN(opts.Smooth) || opts.Smooth < 0 || opts.Smooth >= 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSmoothing, opts.Smooth)
	}

	runs := r.selected(opts.Runs)
	metrics := opts.Metrics
	known := r.Metrics(opts.Runs)
	if len(metrics) == 0 {
		metrics = known
	}
	for _, m := range metrics {
		if !slices.Contains(known, m) {
			return fmt.Errorf("%w: %q", ErrUnknownMetric, m)
		}
	}

	panels := make([]string, 0, len(metrics))
	for _, m := range metrics {
		lines := make([]line, 0, len(runs))
		for _, rec := range runs {
			lines = append(lines, line{run: rec.Name, points: smoothed(rec, m, opts.Smooth)})
		}
		panels = append(panels, renderPanel(m, lines, opts))
	}

	var rows []string
	for start := 0; start < len(panels); start += opts.NCols {
		end := min(start+opts.NCols, len(panels))
		row := make([]string, 0, 2*(end-start))
		for i, p := range panels[start:end] {
			if i > 0 {
				row = append(row, panelGutter)
			}
			row = append(row, p)
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	if _, err := io.WriteString(w, lipgloss.JoinVertical(lipgloss.Left, rows...)+"\n"); err != nil {
		return fmt.Errorf("write plot: %w", err)
	}
	return nil
}

// smoothed drops nulls from metric m and applies EWM.
func smoothed(rec *record.Record, m string, smooth float64) []point {
	series := rec.Series[m]
	xs := make([]float64, 0, len(series))
	ys := make([]float64, 0, len(series))
	for i, v := range series {
		if v.Valid && !math.IsNaN(v.Value) {
			xs = append(xs, rec.Timesteps[i])
			ys = append(ys, v.Value)
		}
	}
	ys = EWM(ys, 1-smooth)
	out := make([]point, len(xs))
	for i := range xs {
		out[i] = point{xs[i], ys[i]}
	}
	return out
}

// EWM returns the exponentially weighted mean of values with smoothing
// factor alpha, normalized by the sum of weights at every step so early
// values are not biased towards zero.
func EWM(values []float64, alpha float64) []float64 {
	out := make([]float64, len(values))
	decay := 1 - alpha
	var num, den float64
	for i, v := range values {
		num = v + decay*num
		den = 1 + decay*den
		out[i] = num / den
	}
	return out
}

func renderPanel(metric string, lines []line, opts PlotOptions) string {
	xmin, xmax := math.Inf(1), math.Inf(-1)
	ymin, ymax := math.Inf(1), math.Inf(-1)
	for _, l := range lines {
		for _, p := range l.points {
			if math.IsInf(p.y, 0) {
				continue
			}
			xmin, xmax = math.Min(xmin, p.x), math.Max(xmax, p.x)
			ymin, ymax = math.Min(ymin, p.y), math.Max(ymax, p.y)
		}
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(metric))
	b.WriteString("\n")
	if math.IsInf(xmin, 1) {
		b.WriteString(mutedStyle.Render("no data"))
		return panelStyle.Render(b.String())
	}
	if ymax == ymin {
		ymin, ymax = ymin-0.5, ymax+0.5
	}
	if xmax == xmin {
		xmax = xmin + 1
	}

	width, height := opts.Width, opts.Height
	grid := make([][]int, height)
	for i := range grid {
		grid[i] = make([]int, width)
		for j := range grid[i] {
			grid[i][j] = -1
		}
	}
	col := func(x float64) int { return clampInt(int(math.Round((x-xmin)/(xmax-xmin)*float64(width-1))), 0, width-1) }
	row := func(y float64) int {
		return clampInt(height-1-int(math.Round((y-ymin)/(ymax-ymin)*float64(height-1))), 0, height-1)
	}
	for k, l := range lines {
		for i, p := range l.points {
			if math.IsInf(p.y, 0) {
				continue
			}
			c := col(p.x)
			grid[row(p.y)][c] = k
			if i == 0 || math.IsInf(l.points[i-1].y, 0) {
				continue
			}
			prev := l.points[i-1]
			pc := col(prev.x)
			for cc := pc + 1; cc < c; cc++ {
				frac := float64(cc-pc) / float64(c-pc)
				grid[row(prev.y+(p.y-prev.y)*frac)][cc] = k
			}
		}
	}

	top, bottom := axisFormat(ymax), axisFormat(ymin)
	gutter := max(runewidth.StringWidth(top), runewidth.StringWidth(bottom))
	for i, cells := range grid {
		label := ""
		switch i {
		case 0:
			label = top
		case height - 1:
			label = bottom
		}
		b.WriteString(runewidth.FillLeft(label, gutter))
		b.WriteString(" │")
		b.WriteString(renderCells(cells))
		b.WriteString("\n")
	}
	b.WriteString(strings.Repeat(" ", gutter) + " └" + strings.Repeat("─", width) + "\n")
	b.WriteString(strings.Repeat(" ", gutter+2) + xAxisLabels(axisFormat(xmin), opts.XLabel, axisFormat(xmax), width) + "\n")
	b.WriteString(legend(lines))
	return panelStyle.Render(b.String())
}

func renderCells(cells []int) string {
	var b strings.Builder
	for i := 0; i < len(cells); {
		owner := cells[i]
		j := i
		for j < len(cells) && cells[j] == owner {
			j++
		}
		if owner < 0 {
			b.WriteString(strings.Repeat(" ", j-i))
		} else {
			style := lipgloss.NewStyle().Foreground(runPalette[owner%len(runPalette)])
			b.WriteString(style.Render(strings.Repeat(markers[owner%len(markers)], j-i)))
		}
		i = j
	}
	return b.String()
}

func xAxisLabels(left, center, right string, width int) string {
	lw, cw, rw := runewidth.StringWidth(left), runewidth.StringWidth(center), runewidth.StringWidth(right)
	if lw+cw+rw+2 > width {
		return runewidth.Truncate(left+" "+right, width, "…")
	}
	gap := width - lw - cw - rw
	leftGap := gap / 2
	return left + strings.Repeat(" ", leftGap) + center + strings.Repeat(" ", gap-leftGap) + right
}

func legend(lines []line) string {
	parts := make([]string, len(lines))
	for k, l := range lines {
		style := lipgloss.NewStyle().Foreground(runPalette[k%len(runPalette)])
		parts[k] = style.Render(markers[k%len(markers)]) + " " + l.run
	}
	return strings.Join(parts, "  ")
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
