// Package session records scalar metrics and images for one named run and
// keeps the run's record file up to date in a storage backend.
//
// Scalar appends under the session lock and arms a deferred flush; bursts of
// calls inside one save interval cost a single write. Flush forces a
// synchronous write and Close performs the final one.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GuyChahine/deeplogs/internal/flush"
	"github.com/GuyChahine/deeplogs/internal/id"
	"github.com/GuyChahine/deeplogs/internal/imaging"
	"github.com/GuyChahine/deeplogs/internal/metrics"
	"github.com/GuyChahine/deeplogs/internal/record"
	"github.com/GuyChahine/deeplogs/internal/storage"
)

// ErrClosed is returned by operations on a closed Session.
var ErrClosed = errors.New("session closed")

// DefaultSaveInterval is the delay between the first unsaved update and the
// scheduled write.
const DefaultSaveInterval = 5 * time.Second

// Options configures a Session.
type Options struct {
	Name         string
	Description  string
	Hyperparams  map[string]record.Param
	SaveInterval time.Duration
	WriteTimeout time.Duration
	Store        storage.Store
	Logger       *zap.Logger
	Metrics      *metrics.Collectors
}

// Session owns one Record and persists it through a flush.Scheduler. It is
// safe for concurrent use by multiple goroutines.
type Session struct {
	name    string
	store   storage.Store
	logger  *zap.Logger
	metrics *metrics.Collectors
	sched   *flush.Scheduler

	mu     sync.RWMutex
	rec    *record.Record
	closed bool
}

// New starts a session. Nothing is written until the first flush.
func New(ctx context.Context, opts Options) (*Session, error) {
	if err := storage.CheckSessionName(opts.Name); err != nil {
		return nil, err
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("session %q: store is required", opts.Name)
	}
	if opts.SaveInterval <= 0 {
		opts.SaveInterval = DefaultSaveInterval
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	runID, err := id.New().NewID()
	if err != nil {
		return nil, err
	}

	rec := record.New(opts.Name, opts.Description, opts.Hyperparams)
	rec.RunID = runID
	s := &Session{
		name:    opts.Name,
		store:   opts.Store,
		logger:  logger.With(zap.String("session", opts.Name), zap.String("run_id", runID)),
		metrics: opts.Metrics,
		rec:     rec,
	}
	s.sched = flush.New(flush.Config{
		Interval:     opts.SaveInterval,
		WriteTimeout: opts.WriteTimeout,
		BaseContext:  context.WithoutCancel(ctx),
		Logger:       s.logger,
		OnFlush: func(trigger flush.Trigger, dur time.Duration, err error) {
			s.metrics.ObserveFlush(s.name, string(trigger), dur, err)
		},
	}, s.persist)
	s.logger.Debug("session started", zap.Duration("save_interval", opts.SaveInterval))
	return s, nil
}

// Name returns the session name.
func (s *Session) Name() string { return s.name }

// RunID returns the identifier generated for this run.
func (s *Session) RunID() string { return s.rec.RunID }

// Scalar records values at timestep and schedules a write. Metrics seen for
// the first time are backfilled with nulls; known metrics missing from values
// get a null for this timestep.
func (s *Session) Scalar(timestep float64, values map[string]float64) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.rec.Append(timestep, values)
	s.mu.Unlock()

	s.metrics.ObserveScalar(s.name)
	s.sched.Arm()
	return nil
}

// Image renders t and stores it as <name>/images/<tag>_<timestep>.png. It
// does not touch the record.
func (s *Session) Image(ctx context.Context, timestep float64, t imaging.Tensor, tag string) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	key := storage.ImageKey(s.name, tag, timestep)
	err := storage.CheckKey(key)
	if err == nil && !isSingleSegment(tag) {
		err = fmt.Errorf("%w: image tag %q", storage.ErrInvalidKey, tag)
	}
	var data []byte
	if err == nil {
		data, err = imaging.EncodePNG(t)
	}
	if err == nil {
		err = s.store.Put(ctx, key, data)
	}
	s.metrics.ObserveImage(s.name, err)
	if err != nil {
		return fmt.Errorf("log image %q at %v: %w", tag, timestep, err)
	}
	return nil
}

func isSingleSegment(tag string) bool {
	for _, r := range tag {
		if r == '/' || r == '\\' {
			return false
		}
	}
	return tag != ""
}

// Flush writes the record now and returns the write error.
func (s *Session) Flush(ctx context.Context) error {
	if err := s.sched.FlushNow(ctx); err != nil {
		if errors.Is(err, flush.ErrClosed) {
			return ErrClosed
		}
		return err
	}
	return nil
}

// Close stops accepting updates, cancels the pending write and flushes once.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.sched.Close(ctx)
}

// Pending reports whether a scheduled write is waiting.
func (s *Session) Pending() bool { return s.sched.Pending() }

// LastFlushError returns the result of the most recent write.
func (s *Session) LastFlushError() error { return s.sched.LastError() }

// Snapshot returns a deep copy of the current record.
func (s *Session) Snapshot() *record.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Clone()
}

// Len returns the number of recorded timesteps.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Len()
}

// TailMeans returns the mean of the last k non-null values of every metric.
func (s *Session) TailMeans(k int) []record.MetricMean {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.TailMeans(k)
}

func (s *Session) persist(ctx context.Context, trigger flush.Trigger) error {
	snap := s.Snapshot()
	data, err := record.Marshal(snap)
	if err != nil {
		s.logger.Error("refusing to write inconsistent record", zap.Error(err))
		return err
	}
	if err := s.store.Put(ctx, storage.RecordKey(s.name), data); err != nil {
		return fmt.Errorf("write record %q: %w", s.name, err)
	}
	s.metrics.ObserveRecord(s.name, len(data), snap.Len())
	s.logger.Debug("record written",
		zap.String("trigger", string(trigger)),
		zap.Int("bytes", len(data)),
		zap.Int("timesteps", snap.Len()),
	)
	return nil
}
