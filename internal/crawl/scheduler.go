package crawl

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/burakyilmaz321/fonapi/internal/metrics"
)

// SchedulerConfig controls Scheduler behavior.
type SchedulerConfig struct {
	// Concurrency is the worker pool size. The reference behavior crawls
	// one day at a time; values above 1 trade politeness for throughput.
	Concurrency int
	// FetchTimeout bounds a single fetch attempt.
	FetchTimeout time.Duration
}

// Scheduler drives a Window through fetch jobs with a bounded worker pool,
// applying the retry policy on failure and persisting progress so a
// restarted process resumes where it left off.
//
// Per-day state machine: Pending -> InFlight -> {Succeeded | Retrying ->
// InFlight | Exhausted}. The checkpoint advances only past a contiguous
// prefix of Succeeded days: an Exhausted day blocks advancement so a rerun
// picks it up again, and out-of-order completions under concurrency never
// let the checkpoint skip ahead.
type Scheduler struct {
	job         *Job
	runLog      RunLog
	checkpoints CheckpointStore
	policy      RetryPolicy
	clock       Clock
	idGen       IDGenerator
	cfg         SchedulerConfig
	logger      *zap.Logger
}

// NewScheduler constructs a Scheduler. All collaborators are injected; the
// fetcher and sink are wrapped into the per-attempt Job.
func NewScheduler(
	fetcher Fetcher,
	sink Sink,
	runLog RunLog,
	checkpoints CheckpointStore,
	policy RetryPolicy,
	clock Clock,
	idGen IDGenerator,
	cfg SchedulerConfig,
	logger *zap.Logger,
) *Scheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		job:         NewJob(fetcher, sink, clock, cfg.FetchTimeout),
		runLog:      runLog,
		checkpoints: checkpoints,
		policy:      policy,
		clock:       clock,
		idGen:       idGen,
		cfg:         cfg,
		logger:      logger,
	}
}

type task struct {
	idx int
	day Day
}

type dayResult struct {
	idx      int
	day      Day
	outcome  Outcome
	terminal bool
}

// Run crawls every day of the window not yet covered by the checkpoint and
// blocks until all admitted days reach a terminal outcome or the context is
// canceled. It returns an InvalidRangeError for a malformed window and a
// PartialFailureError when one or more days exhausted their retries; fetch
// errors themselves never surface here.
func (s *Scheduler) Run(ctx context.Context, window Window) error {
	if window.Start.After(window.End) {
		return &InvalidRangeError{Start: window.Start, End: window.End}
	}

	resume, done, err := s.resumePoint(ctx, window)
	if err != nil {
		return err
	}
	if done {
		s.logger.Info("window already completed", zap.String("end", window.End.String()))
		return nil
	}

	runID := s.newRunID()
	s.logger.Info("crawl run starting",
		zap.String("run_id", runID),
		zap.String("start", resume.String()),
		zap.String("end", window.End.String()),
		zap.Int("concurrency", s.cfg.Concurrency),
	)

	tasks := make(chan task)
	results := make(chan dayResult)

	go s.produce(ctx, window, resume, tasks)

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.work(ctx, runID, tasks, results)
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	tracker := newPrefixTracker(window.Start, resume.DaysSince(window.Start))
	var exhausted []Day
	var persistErr error

	for res := range results {
		if !res.terminal {
			// Interrupted mid-flight; the day stays uncheckpointed and is
			// re-crawled on the next run.
			continue
		}
		if res.outcome.Status == StatusExhausted {
			exhausted = append(exhausted, res.day)
		}
		last, advanced := tracker.complete(res.idx, res.outcome.Status)
		if !advanced || persistErr != nil {
			continue
		}
		if err := s.checkpoints.Save(ctx, Checkpoint{LastCompletedDay: last}); err != nil {
			persistErr = fmt.Errorf("persist checkpoint at %s: %w", last, err)
			s.logger.Error("checkpoint save failed", zap.String("day", last.String()), zap.Error(err))
			continue
		}
		metrics.SetCheckpoint(last.Time())
		s.logger.Info("checkpoint advanced", zap.String("last_completed_day", last.String()))
	}

	if persistErr != nil {
		return persistErr
	}
	if err := ctx.Err(); err != nil {
		s.logger.Warn("crawl run interrupted", zap.String("run_id", runID))
		return err
	}
	if len(exhausted) > 0 {
		sort.Slice(exhausted, func(i, j int) bool { return exhausted[i].Before(exhausted[j]) })
		return &PartialFailureError{Days: exhausted}
	}
	s.logger.Info("crawl run finished", zap.String("run_id", runID))
	return nil
}

// resumePoint determines the first day to crawl, honoring a persisted
// checkpoint. done is true when the checkpoint already covers the window.
func (s *Scheduler) resumePoint(ctx context.Context, window Window) (Day, bool, error) {
	cp, found, err := s.checkpoints.Load(ctx)
	if err != nil {
		return Day{}, false, fmt.Errorf("load checkpoint: %w", err)
	}
	if !found || cp.LastCompletedDay.Before(window.Start) {
		return window.Start, false, nil
	}
	if !cp.LastCompletedDay.Before(window.End) {
		return Day{}, true, nil
	}
	resume := cp.LastCompletedDay.Next()
	s.logger.Info("resuming from checkpoint",
		zap.String("last_completed_day", cp.LastCompletedDay.String()),
		zap.String("resume", resume.String()),
	)
	return resume, false, nil
}

// produce admits Pending days in order until the window ends or the stop
// signal arrives. A task is handed over only when a worker slot frees.
func (s *Scheduler) produce(ctx context.Context, window Window, from Day, tasks chan<- task) {
	defer close(tasks)
	it := window.DaysFrom(from)
	idx := from.DaysSince(window.Start)
	for {
		day, ok := it.Next()
		if !ok {
			return
		}
		select {
		case tasks <- task{idx: idx, day: day}:
			idx++
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) work(ctx context.Context, runID string, tasks <-chan task, results chan<- dayResult) {
	for t := range tasks {
		metrics.IncActiveWorkers()
		outcome, terminal := s.runDay(ctx, runID, t.day)
		metrics.DecActiveWorkers()
		results <- dayResult{idx: t.idx, day: t.day, outcome: outcome, terminal: terminal}
	}
}

// runDay executes the attempt/retry loop for one day until a terminal
// outcome or cancellation. Every attempt outcome is appended to the run log.
func (s *Scheduler) runDay(ctx context.Context, runID string, day Day) (Outcome, bool) {
	for attempt := 1; ; attempt++ {
		outcome, err := s.job.Run(ctx, day, attempt)
		outcome.RunID = runID

		if err == nil {
			s.append(ctx, outcome)
			metrics.ObserveDay(string(StatusSucceeded), outcome.Duration())
			s.logger.Info("day crawled",
				zap.String("day", day.String()),
				zap.Int("attempt", attempt),
				zap.Duration("duration", outcome.Duration()),
			)
			return outcome, true
		}

		if s.policy.ShouldRetry(err, attempt) {
			s.append(ctx, outcome)
			metrics.ObserveRetry()
			delay := s.policy.Backoff(attempt)
			s.logger.Warn("attempt failed, retrying",
				zap.String("day", day.String()),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(err),
			)
			if !s.sleep(ctx, delay) {
				return outcome, false
			}
			continue
		}

		if ctx.Err() != nil {
			// Shutdown, not exhaustion: leave the day non-terminal.
			s.append(ctx, outcome)
			return outcome, false
		}

		outcome.Status = StatusExhausted
		s.append(ctx, outcome)
		metrics.ObserveDay(string(StatusExhausted), outcome.Duration())
		s.logger.Error("day exhausted",
			zap.String("day", day.String()),
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
		return outcome, true
	}
}

// append writes an outcome to the run log. Records written during shutdown
// must still land, so the write is detached from cancellation.
func (s *Scheduler) append(ctx context.Context, outcome Outcome) {
	if s.runLog == nil {
		return
	}
	if err := s.runLog.Append(context.WithoutCancel(ctx), outcome); err != nil {
		s.logger.Error("run log append failed",
			zap.String("day", outcome.Day.String()),
			zap.Int("attempt", outcome.Attempt),
			zap.Error(err),
		)
	}
}

// sleep waits for the backoff delay, returning false if canceled first.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Scheduler) newRunID() string {
	if s.idGen == nil {
		return ""
	}
	id, err := s.idGen.NewID()
	if err != nil {
		s.logger.Warn("run id generation failed", zap.Error(err))
		return ""
	}
	return id
}

// prefixTracker tracks terminal outcomes by window offset and computes the
// highest day whose whole prefix succeeded. Exhausted days block the
// frontier so a rerun revisits them.
type prefixTracker struct {
	start    Day
	frontier int
	statuses map[int]Status
}

func newPrefixTracker(start Day, frontier int) *prefixTracker {
	return &prefixTracker{
		start:    start,
		frontier: frontier,
		statuses: make(map[int]Status),
	}
}

// complete records a terminal status for the day at idx. When the frontier
// moves it returns the new last fully completed day and true.
func (t *prefixTracker) complete(idx int, status Status) (Day, bool) {
	t.statuses[idx] = status
	moved := false
	for t.statuses[t.frontier] == StatusSucceeded {
		delete(t.statuses, t.frontier)
		t.frontier++
		moved = true
	}
	if !moved {
		return Day{}, false
	}
	return t.start.AddDays(t.frontier - 1), true
}
