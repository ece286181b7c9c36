// Package bar draws a single-line terminal progress bar around Go iterators
// and shows running means of a session's metrics next to it.
package bar

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/GuyChahine/deeplogs/internal/clock/system"
	"github.com/GuyChahine/deeplogs/internal/record"
)

// ErrMissingLength is returned when a sequence is wrapped without a
// positive length.
var ErrMissingLength = errors.New("progress bar needs the sequence length")

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Source provides running means of recorded metrics, typically a
// *session.Session.
type Source interface {
	TailMeans(k int) []record.MetricMean
}

// Config controls the appearance of a Bar.
type Config struct {
	Description     string
	RunningMeanSize int
	Size            int
	EmptyChar       string
	FillChar        string
	PrintInterval   time.Duration
	Color           bool
	// Width truncates lines to this many cells. Zero detects the terminal
	// width when Writer is a terminal and disables truncation otherwise.
	Width  int
	Writer io.Writer
	Clock  Clock
	Source Source
}

// Defaults.
const (
	DefaultSize          = 10
	DefaultEmptyChar     = " "
	DefaultFillChar      = "█"
	DefaultPrintInterval = 200 * time.Millisecond
)

// Bar renders progress for one loop at a time.
type Bar struct {
	cfg       Config
	descColor *color.Color
	fillColor *color.Color
	lastWidth int
}

// New creates a Bar, filling unset fields with defaults.
func New(cfg Config) *Bar {
	if cfg.RunningMeanSize <= 0 {
		cfg.RunningMeanSize = 1
	}
	if cfg.Size <= 0 {
		cfg.Size = DefaultSize
	}
	if cfg.EmptyChar == "" {
		cfg.EmptyChar = DefaultEmptyChar
	}
	if cfg.FillChar == "" {
		cfg.FillChar = DefaultFillChar
	}
	if cfg.PrintInterval < 0 {
		cfg.PrintInterval = 0
	} else if cfg.PrintInterval == 0 {
		cfg.PrintInterval = DefaultPrintInterval
	}
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	if cfg.Clock == nil {
		cfg.Clock = system.New()
	}
	if cfg.Width == 0 {
		cfg.Width = terminalWidth(cfg.Writer)
	}
	b := &Bar{
		cfg:       cfg,
		descColor: color.New(color.FgCyan, color.Bold),
		fillColor: color.New(color.FgGreen),
	}
	if cfg.Color {
		b.descColor.EnableColor()
		b.fillColor.EnableColor()
	} else {
		b.descColor.DisableColor()
		b.fillColor.DisableColor()
	}
	return b
}

func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 0
	}
	fd := int(f.Fd()) // #nosec G115 -- file descriptors fit in int.
	if !term.IsTerminal(fd) {
		return 0
	}
	width, _, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return width
}

// Range yields 0..n-1 while drawing progress.
func (b *Bar) Range(n int) iter.Seq[int] {
	return func(yield func(int) bool) {
		t := b.start(n)
		defer t.finish()
		for i := 0; i < n; i++ {
			if !yield(i) {
				return
			}
			t.tick(i + 1)
		}
	}
}

// Seq wraps seq, whose length cannot be inferred, drawing progress against
// length. It fails before iterating when length is not positive.
func Seq[T any](b *Bar, seq iter.Seq[T], length int) (iter.Seq[T], error) {
	if length <= 0 {
		return nil, ErrMissingLength
	}
	return func(yield func(T) bool) {
		t := b.start(length)
		defer t.finish()
		done := 0
		for v := range seq {
			if !yield(v) {
				return
			}
			done++
			t.tick(done)
		}
	}, nil
}

// Slice yields the items of s while drawing progress.
func Slice[T any](b *Bar, s []T) iter.Seq[T] {
	return func(yield func(T) bool) {
		t := b.start(len(s))
		defer t.finish()
		for i, v := range s {
			if !yield(v) {
				return
			}
			t.tick(i + 1)
		}
	}
}

type tracker struct {
	bar       *Bar
	total     int
	start     time.Time
	lastPrint time.Time
	printed   bool
}

func (b *Bar) start(total int) *tracker {
	now := b.cfg.Clock.Now()
	return &tracker{bar: b, total: total, start: now}
}

func (t *tracker) tick(done int) {
	now := t.bar.cfg.Clock.Now()
	if t.printed && now.Sub(t.lastPrint) < t.bar.cfg.PrintInterval && done != t.total {
		return
	}
	t.bar.print(t.bar.render(done, t.total, now.Sub(t.start)))
	t.lastPrint = now
	t.printed = true
}

func (t *tracker) finish() {
	if t.printed {
		_, _ = io.WriteString(t.bar.cfg.Writer, "\n")
		t.bar.lastWidth = 0
	}
}

func (b *Bar) print(line string) {
	width := runewidth.StringWidth(line)
	if b.lastWidth > width {
		line += strings.Repeat(" ", b.lastWidth-width)
	}
	b.lastWidth = width
	_, _ = io.WriteString(b.cfg.Writer, line+"\r")
}

// render builds one progress line. Only the plain text is measured for
// truncation; colour codes are added afterwards.
func (b *Bar) render(done, total int, elapsed time.Duration) string {
	perc := float64(done) / float64(total)
	nbFill := int(float64(b.cfg.Size) * perc)
	if nbFill > b.cfg.Size {
		nbFill = b.cfg.Size
	}
	nbEmpty := b.cfg.Size - nbFill

	secs := elapsed.Seconds()
	var eta, ips float64
	if perc > 0 {
		eta = secs/perc - secs
	}
	if secs > 0 {
		ips = float64(done) / secs
	}

	desc := ""
	if b.cfg.Description != "" {
		desc = b.cfg.Description + ": "
	}
	pct := fmt.Sprintf("%4s", strconv.FormatFloat(perc*100, 'f', 0, 64)+"%")
	fill := strings.Repeat(b.cfg.FillChar, nbFill)
	empty := strings.Repeat(b.cfg.EmptyChar, nbEmpty)
	stats := fmt.Sprintf("| %d/%d [%s<%s, %.2fit/s] ", done, total, FormatSeconds(secs), FormatSeconds(eta), ips)
	metrics := b.metrics()

	if b.cfg.Width > 0 {
		fixed := runewidth.StringWidth(desc + pct + "|" + fill + empty + stats)
		room := b.cfg.Width - fixed - 1
		if room < 0 {
			room = 0
		}
		if runewidth.StringWidth(metrics) > room {
			metrics = runewidth.Truncate(metrics, room, "…")
		}
	}
	return b.descColor.Sprint(desc) + pct + "|" + b.fillColor.Sprint(fill) + empty + stats + metrics
}

func (b *Bar) metrics() string {
	if b.cfg.Source == nil {
		return ""
	}
	means := b.cfg.Source.TailMeans(b.cfg.RunningMeanSize)
	parts := make([]string, 0, len(means))
	for _, m := range means {
		parts = append(parts, fmt.Sprintf("%s: %5s", m.Name, formatMean(m)))
	}
	return strings.Join(parts, " | ")
}

// formatMean rounds to three decimals and always shows a decimal point.
func formatMean(m record.MetricMean) string {
	if !m.Valid || math.IsNaN(m.Value) {
		return "nan"
	}
	if math.IsInf(m.Value, 0) {
		if m.Value > 0 {
			return "inf"
		}
		return "-inf"
	}
	s := strconv.FormatFloat(math.Round(m.Value*1000)/1000, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// FormatSeconds renders whole seconds as H:MM:SS, prefixed with a day count
// for durations of a day or more ("2 days, 4:30:00").
func FormatSeconds(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "?"
	}
	total := int64(seconds)
	neg := total < 0
	if neg {
		total = -total
	}
	days := total / 86400
	rest := total % 86400
	clock := fmt.Sprintf("%d:%02d:%02d", rest/3600, rest%3600/60, rest%60)
	prefix := ""
	if neg {
		prefix = "-"
	}
	switch {
	case days == 1:
		return prefix + "1 day, " + clock
	case days > 1:
		return prefix + strconv.FormatInt(days, 10) + " days, " + clock
	default:
		return prefix + clock
	}
}
