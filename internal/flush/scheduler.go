package flush

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrClosed is returned by operations on a closed Scheduler.
var ErrClosed = errors.New("flush scheduler closed")

// Trigger names what caused a write.
type Trigger string

// Write triggers.
const (
	TriggerScheduled Trigger = "scheduled"
	TriggerExplicit  Trigger = "explicit"
	TriggerClose     Trigger = "close"
)

// WriteFunc snapshots and persists the owner's state.
type WriteFunc func(ctx context.Context, trigger Trigger) error

// Config controls timing and reporting for a Scheduler.
//   - Interval: delay between Arm and the scheduled write (default 5s).
//   - WriteTimeout: deadline applied to scheduled writes (default 30s).
//   - BaseContext: parent context of scheduled writes (default context.Background()).
//   - Logger: optional structured logger.
//   - OnFlush: optional hook called after every write.
type Config struct {
	Interval     time.Duration
	WriteTimeout time.Duration
	BaseContext  context.Context
	Logger       *zap.Logger
	OnFlush      func(trigger Trigger, dur time.Duration, err error)
}

const (
	defaultInterval     = 5 * time.Second
	defaultWriteTimeout = 30 * time.Second
	failureLogInterval  = 5 * time.Second
)

// Scheduler runs at most one deferred write per interval. It is safe for
// concurrent use by multiple goroutines.
type Scheduler struct {
	cfg    Config
	write  WriteFunc
	logger *zap.Logger

	mu      sync.Mutex
	pending bool
	closed  bool
	timer   *time.Timer
	lastErr error

	writeMu  sync.Mutex
	inflight sync.WaitGroup

	failLog    rate.Sometimes
	suppressed atomic.Int64

	closeOnce sync.Once
	closeErr  error
}

// New creates an idle Scheduler that calls write when a flush is due.
func New(cfg Config, write WriteFunc) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cfg:     cfg,
		write:   write,
		logger:  logger,
		failLog: rate.Sometimes{Interval: failureLogInterval},
	}
}

// Interval returns the delay between Arm and the scheduled write.
func (s *Scheduler) Interval() time.Duration { return s.cfg.Interval }

// Arm schedules a write if none is pending. It reports whether a new timer
// was started.
func (s *Scheduler) Arm() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.pending {
		return false
	}
	s.pending = true
	s.inflight.Add(1)
	s.timer = time.AfterFunc(s.cfg.Interval, s.fire)
	return true
}

// Pending reports whether a scheduled write is waiting for its timer.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// LastError returns the result of the most recent write.
func (s *Scheduler) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Scheduler) fire() {
	defer s.inflight.Done()

	s.mu.Lock()
	s.pending = false
	s.timer = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(s.cfg.BaseContext, s.cfg.WriteTimeout)
	defer cancel()
	if err := s.run(ctx, TriggerScheduled); err != nil {
		s.logFailure(err)
	}
}

func (s *Scheduler) logFailure(err error) {
	logged := false
	s.failLog.Do(func() {
		logged = true
		s.logger.Error("scheduled flush failed",
			zap.Error(err),
			zap.Int64("suppressed", s.suppressed.Swap(0)),
		)
	})
	if !logged {
		s.suppressed.Add(1)
	}
}

// FlushNow writes synchronously, waiting for any write already running. It
// leaves a pending scheduled write in place.
func (s *Scheduler) FlushNow(ctx context.Context) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return s.run(ctx, TriggerExplicit)
}

func (s *Scheduler) run(ctx context.Context, trigger Trigger) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	start := time.Now()
	err := s.write(ctx, trigger)
	dur := time.Since(start)

	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()

	if s.cfg.OnFlush != nil {
		s.cfg.OnFlush(trigger, dur, err)
	}
	if err != nil {
		return fmt.Errorf("%s flush: %w", trigger, err)
	}
	s.logger.Debug("flushed", zap.String("trigger", string(trigger)), zap.Duration("took", dur))
	return nil
}

// Close cancels a pending timer, waits for an in-flight scheduled write and
// performs one final write. Later calls return the first call's result.
func (s *Scheduler) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		if s.timer != nil && s.timer.Stop() {
			s.pending = false
			s.timer = nil
			s.inflight.Done()
		}
		s.mu.Unlock()

		done := make(chan struct{})
		go func() {
			s.inflight.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			s.closeErr = fmt.Errorf("flush scheduler close wait: %w", ctx.Err())
			return
		}
		s.closeErr = s.run(ctx, TriggerClose)
	})
	return s.closeErr
}
