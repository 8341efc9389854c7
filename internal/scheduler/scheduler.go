// Package scheduler owns the three timer-driven loops coordinating the
// notification pipeline. It holds no business logic: ticks gate on the clock
// and delegate to the rule evaluator and the queue drainer.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"bandonotifier/internal/entity"
	"bandonotifier/internal/service"

	"go.uber.org/zap"
)

const _digestPollInterval = time.Minute

type (
	// Sweeper is the rule evaluator as seen by the loops.
	Sweeper interface {
		RunDeadlineSweep(ctx context.Context) (*service.SweepStats, error)
		RunWeeklyDigest(ctx context.Context) (int, error)
	}

	// Drainer empties the persisted email queue.
	Drainer interface {
		DrainQueue(ctx context.Context, batchSize int) (*service.DrainStats, error)
	}

	// Config is the effective loop configuration. Zero fields in a patch
	// keep their current value; see Merge.
	Config struct {
		AlertInterval   time.Duration `json:"alert_interval"`
		AlertTimes      []string      `json:"alert_times"` // "HH:MM", local time-of-day
		AlertTolerance  time.Duration `json:"alert_tolerance"`
		DigestDay       time.Weekday  `json:"digest_day"`
		DigestTime      string        `json:"digest_time"`
		DigestTolerance time.Duration `json:"digest_tolerance"`
		DrainInterval   time.Duration `json:"drain_interval"`
		DrainBatchSize  int           `json:"drain_batch_size"`
	}

	// Patch is a partial Config; nil fields are left unchanged.
	Patch struct {
		AlertInterval   *time.Duration `json:"alert_interval,omitempty"`
		AlertTimes      []string       `json:"alert_times,omitempty"`
		AlertTolerance  *time.Duration `json:"alert_tolerance,omitempty"`
		DigestDay       *time.Weekday  `json:"digest_day,omitempty"`
		DigestTime      *string        `json:"digest_time,omitempty"`
		DigestTolerance *time.Duration `json:"digest_tolerance,omitempty"`
		DrainInterval   *time.Duration `json:"drain_interval,omitempty"`
		DrainBatchSize  *int           `json:"drain_batch_size,omitempty"`
	}

	// Status is the operator-facing snapshot.
	Status struct {
		Running      bool       `json:"running"`
		Loops        int        `json:"loops"`
		Config       Config     `json:"config"`
		NextAlertAt  *time.Time `json:"next_alert_at,omitempty"`
		NextDigestAt *time.Time `json:"next_digest_at,omitempty"`
	}

	// Scheduler runs the deadline-alert, weekly-digest and queue-drain loops.
	Scheduler struct {
		sweeper Sweeper
		drainer Drainer
		lease   Lease
		clock   Clock
		log     *zap.SugaredLogger

		mu           sync.Mutex
		cfg          Config
		cancel       context.CancelFunc
		wg           sync.WaitGroup
		loops        int
		lastAlertRun time.Time
		lastDigest   time.Time
	}
)

// DefaultConfig returns the documented loop defaults.
func DefaultConfig() Config {
	return Config{
		AlertInterval:   60 * time.Minute,
		AlertTimes:      []string{"09:00", "14:00", "18:00"},
		AlertTolerance:  2 * time.Minute,
		DigestDay:       time.Monday,
		DigestTime:      "08:30",
		DigestTolerance: 5 * time.Minute,
		DrainInterval:   5 * time.Minute,
		DrainBatchSize:  10,
	}
}

// Merge overlays non-nil patch fields on c.
func (c Config) Merge(p Patch) Config {
	if p.AlertInterval != nil {
		c.AlertInterval = *p.AlertInterval
	}
	if len(p.AlertTimes) > 0 {
		c.AlertTimes = p.AlertTimes
	}
	if p.AlertTolerance != nil {
		c.AlertTolerance = *p.AlertTolerance
	}
	if p.DigestDay != nil {
		c.DigestDay = *p.DigestDay
	}
	if p.DigestTime != nil {
		c.DigestTime = *p.DigestTime
	}
	if p.DigestTolerance != nil {
		c.DigestTolerance = *p.DigestTolerance
	}
	if p.DrainInterval != nil {
		c.DrainInterval = *p.DrainInterval
	}
	if p.DrainBatchSize != nil {
		c.DrainBatchSize = *p.DrainBatchSize
	}
	return c
}

func New(sweeper Sweeper, drainer Drainer, log *zap.SugaredLogger, opts ...Option) *Scheduler {
	s := &Scheduler{
		sweeper: sweeper,
		drainer: drainer,
		lease:   SingleProcessLease{},
		clock:   SystemClock(),
		log:     log,
		cfg:     DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type Option func(*Scheduler)

func WithLease(l Lease) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.lease = l
		}
	}
}

func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// Start stops any running loops, merges cfg over the defaults it already
// holds, acquires the lease and launches the three loops.
func (s *Scheduler) Start(ctx context.Context, patch Patch) error {
	const op = "scheduler.Scheduler.Start"

	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	got, err := s.lease.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !got {
		return fmt.Errorf("%s: another scheduler instance holds the lease: %w", op, entity.ErrSchedulerRunning)
	}

	s.cfg = s.cfg.Merge(patch)

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.startLoop(loopCtx, "deadline-alerts", s.cfg.AlertInterval, s.alertTick)
	s.startLoop(loopCtx, "weekly-digest", _digestPollInterval, s.digestTick)
	s.startLoop(loopCtx, "queue-drain", s.cfg.DrainInterval, s.drainTick)

	s.log.Infow("scheduler started",
		"alert_interval", s.cfg.AlertInterval,
		"alert_times", strings.Join(s.cfg.AlertTimes, ","),
		"digest_day", s.cfg.DigestDay.String(),
		"digest_time", s.cfg.DigestTime,
		"drain_interval", s.cfg.DrainInterval,
	)

	return nil
}

func (s *Scheduler) startLoop(ctx context.Context, name string, interval time.Duration, tick func(context.Context)) {
	s.loops++
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.safeTick(ctx, name, tick)
			}
		}
	}()
}

// safeTick keeps a panicking or failing tick from taking the loop down.
func (s *Scheduler) safeTick(ctx context.Context, name string, tick func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("tick panicked", "loop", name, "panic", r)
		}
	}()
	tick(ctx)
}

func (s *Scheduler) alertTick(ctx context.Context) {
	now := s.clock.Now()

	s.mu.Lock()
	cfg := s.cfg
	slot, ok := nearestSlot(now, cfg.AlertTimes, cfg.AlertTolerance)
	if !ok || !s.lastAlertRun.Before(slot.Add(-cfg.AlertTolerance)) {
		s.mu.Unlock()
		return
	}
	s.lastAlertRun = now
	s.mu.Unlock()

	if _, err := s.sweeper.RunDeadlineSweep(ctx); err != nil {
		s.log.Errorw("deadline sweep failed", "error", err)
	}
}

func (s *Scheduler) digestTick(ctx context.Context) {
	now := s.clock.Now()

	s.mu.Lock()
	cfg := s.cfg
	if now.Weekday() != cfg.DigestDay {
		s.mu.Unlock()
		return
	}
	slot, ok := nearestSlot(now, []string{cfg.DigestTime}, cfg.DigestTolerance)
	if !ok || !s.lastDigest.Before(slot.Add(-cfg.DigestTolerance)) {
		s.mu.Unlock()
		return
	}
	s.lastDigest = now
	s.mu.Unlock()

	if _, err := s.sweeper.RunWeeklyDigest(ctx); err != nil {
		s.log.Errorw("weekly digest failed", "error", err)
	}
}

func (s *Scheduler) drainTick(ctx context.Context) {
	s.mu.Lock()
	batch := s.cfg.DrainBatchSize
	s.mu.Unlock()

	if _, err := s.drainer.DrainQueue(ctx, batch); err != nil {
		s.log.Errorw("queue drain failed", "error", err)
	}
}

// Stop cancels all loops and waits for in-flight ticks to finish. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()

	s.mu.Lock()
	s.loops = 0
	s.mu.Unlock()

	if err := s.lease.Release(context.Background()); err != nil {
		s.log.Warnw("lease release failed", "error", err)
	}
	s.log.Infow("scheduler stopped")
}

// RunManualCheck runs one alert sweep and one queue drain synchronously,
// bypassing the time-window gating. Unlike loop ticks, failures surface to
// the caller.
func (s *Scheduler) RunManualCheck(ctx context.Context) (*service.SweepStats, *service.DrainStats, error) {
	const op = "scheduler.Scheduler.RunManualCheck"

	s.mu.Lock()
	batch := s.cfg.DrainBatchSize
	s.mu.Unlock()

	sweepStats, sweepErr := s.sweeper.RunDeadlineSweep(ctx)
	drainStats, drainErr := s.drainer.DrainQueue(ctx, batch)

	if err := errors.Join(sweepErr, drainErr); err != nil {
		return sweepStats, drainStats, fmt.Errorf("%s: %w", op, err)
	}
	return sweepStats, drainStats, nil
}

// Status reports whether loops are active and when the gated loops are
// expected to fire next.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Running: s.cancel != nil,
		Loops:   s.loops,
		Config:  s.cfg,
	}

	now := s.clock.Now()
	if next, ok := nextDailyFire(now, s.cfg.AlertTimes); ok {
		st.NextAlertAt = &next
	}
	if next, ok := nextWeeklyFire(now, s.cfg.DigestDay, s.cfg.DigestTime); ok {
		st.NextDigestAt = &next
	}

	return st
}

// UpdateConfig merges the patch and restarts the loops so the new intervals
// take effect immediately. When stopped, only the stored config changes.
func (s *Scheduler) UpdateConfig(ctx context.Context, patch Patch) error {
	const op = "scheduler.Scheduler.UpdateConfig"

	s.mu.Lock()
	running := s.cancel != nil
	if !running {
		s.cfg = s.cfg.Merge(patch)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.Start(ctx, patch); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// nearestSlot returns today's slot time when now is within tolerance of one
// of the configured "HH:MM" targets.
func nearestSlot(now time.Time, targets []string, tolerance time.Duration) (time.Time, bool) {
	for _, target := range targets {
		hour, minute, err := splitClock(target)
		if err != nil {
			continue
		}
		slot := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		diff := now.Sub(slot)
		if diff < 0 {
			diff = -diff
		}
		if diff <= tolerance {
			return slot, true
		}
	}
	return time.Time{}, false
}

// nextDailyFire scans today's target list forward from now, rolling to
// tomorrow's first slot when all of today's have passed.
func nextDailyFire(now time.Time, targets []string) (time.Time, bool) {
	slots := make([]time.Time, 0, len(targets))
	for _, target := range targets {
		hour, minute, err := splitClock(target)
		if err != nil {
			continue
		}
		slots = append(slots, time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location()))
	}
	if len(slots) == 0 {
		return time.Time{}, false
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })

	for _, slot := range slots {
		if slot.After(now) {
			return slot, true
		}
	}
	return slots[0].AddDate(0, 0, 1), true
}

// nextWeeklyFire finds the next occurrence of day at "HH:MM", rolling a full
// week when this week's slot has passed.
func nextWeeklyFire(now time.Time, day time.Weekday, target string) (time.Time, bool) {
	hour, minute, err := splitClock(target)
	if err != nil {
		return time.Time{}, false
	}

	daysAhead := (int(day) - int(now.Weekday()) + 7) % 7
	slot := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location()).AddDate(0, 0, daysAhead)
	if !slot.After(now) {
		slot = slot.AddDate(0, 0, 7)
	}
	return slot, true
}

func splitClock(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("clock %q out of range", s)
	}
	return hour, minute, nil
}
