// Package reader loads persisted session records for comparison: summary
// statistics, hyperparameter listings, tabular projections and text charts.
package reader

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"go.uber.org/zap"

	"github.com/GuyChahine/deeplogs/internal/record"
	"github.com/GuyChahine/deeplogs/internal/storage"
)

// Skip reports a run that could not be loaded.
type Skip struct {
	Name string
	Err  error
}

// Reader holds a read-only set of loaded records.
type Reader struct {
	runs    []*record.Record
	skipped []Skip
}

// Option configures Open.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger logs skipped runs.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Open loads the named sessions from store, or every session in store when
// names is empty. Runs that are missing or malformed are skipped and reported
// by Skipped; Open itself only fails when the store cannot be listed.
func Open(ctx context.Context, store storage.Store, names []string, opts ...Option) (*Reader, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if len(names) == 0 {
		var err error
		names, err = storage.Sessions(ctx, store)
		if err != nil {
			return nil, err
		}
	}

	r := &Reader{}
	seen := map[string]bool{}
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		rec, err := storage.LoadRecord(ctx, store, name)
		if err != nil {
			o.logger.Warn("skipping run", zap.String("run", name), zap.Error(err))
			r.skipped = append(r.skipped, Skip{Name: name, Err: err})
			continue
		}
		r.runs = append(r.runs, rec)
	}
	return r, nil
}

// FromRecords builds a Reader over records already in memory.
func FromRecords(recs ...*record.Record) *Reader {
	return &Reader{runs: slices.Clone(recs)}
}

// Skipped lists the runs that failed to load.
func (r *Reader) Skipped() []Skip { return slices.Clone(r.skipped) }

// Names returns the loaded run names in load order.
func (r *Reader) Names() []string {
	out := make([]string, len(r.runs))
	for i, rec := range r.runs {
		out[i] = rec.Name
	}
	return out
}

// Runs returns the loaded records.
func (r *Reader) Runs() []*record.Record { return slices.Clone(r.runs) }

// Run returns one loaded record by name.
func (r *Reader) Run(name string) (*record.Record, bool) {
	for _, rec := range r.runs {
		if rec.Name == name {
			return rec, true
		}
	}
	return nil, false
}

// selected returns the loaded runs named in names, or all of them.
func (r *Reader) selected(names []string) []*record.Record {
	if len(names) == 0 {
		return r.runs
	}
	out := make([]*record.Record, 0, len(names))
	for _, rec := range r.runs {
		if slices.Contains(names, rec.Name) {
			out = append(out, rec)
		}
	}
	return out
}

// Table projects the selected runs into tables, one per run.
func (r *Reader) Table(names []string) []record.Table {
	runs := r.selected(names)
	out := make([]record.Table, len(runs))
	for i, rec := range runs {
		out[i] = rec.ToTable()
	}
	return out
}

// Metrics returns the union of metric names across the selected runs, in
// first-seen order.
func (r *Reader) Metrics(names []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, rec := range r.selected(names) {
		for _, m := range rec.Metrics {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

// Info summarizes a run's identity.
type Info struct {
	Name        string
	Description string
	RunID       string
	Hyperparams map[string]record.Param
}

// Infos returns the identity of each selected run.
func (r *Reader) Infos(names []string) []Info {
	runs := r.selected(names)
	out := make([]Info, len(runs))
	for i, rec := range runs {
		out[i] = Info{
			Name:        rec.Name,
			Description: rec.Description,
			RunID:       rec.RunID,
			Hyperparams: rec.Hyperparams,
		}
	}
	return out
}

// HyperparamKeys returns the sorted union of hyperparameter names.
func HyperparamKeys(infos []Info) []string {
	seen := map[string]bool{}
	var keys []string
	for _, info := range infos {
		for k := range info.Hyperparams {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// InfoRows flattens infos into string rows: name, description, then one
// cell per key in keys. Missing hyperparameters render empty.
func InfoRows(infos []Info, keys []string) [][]string {
	rows := make([][]string, len(infos))
	for i, info := range infos {
		row := []string{info.Name, info.Description}
		for _, k := range keys {
			if p, ok := info.Hyperparams[k]; ok {
				row = append(row, p.String())
			} else {
				row = append(row, "")
			}
		}
		rows[i] = row
	}
	return rows
}

func (s Skip) String() string {
	return fmt.Sprintf("%s: %v", s.Name, s.Err)
}
