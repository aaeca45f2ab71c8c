package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is the unit of work a Runner executes: one full, idempotent pass.
type Task func(context.Context) error

// RunnerConfig configures trigger dispatch.
type RunnerConfig struct {
	// Interval, when positive, adds a periodic trigger on top of explicit ones.
	Interval time.Duration
	Logger   *zap.Logger
}

// Runner serializes executions of a single idempotent task. Triggers that
// arrive while a pass is running coalesce into at most one follow-up pass:
// each pass recomputes from durable state, so a superseded trigger is
// redundant rather than lost.
type Runner struct {
	name     string
	task     Task
	interval time.Duration
	logger   *zap.Logger

	triggers chan string
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	started  bool
}

// NewRunner builds a runner around the given task.
func NewRunner(name string, task Task, cfg RunnerConfig) *Runner {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Runner{
		name:     name,
		task:     task,
		interval: cfg.Interval,
		logger:   cfg.Logger,
		// Capacity 1 is what makes triggers coalesce.
		triggers: make(chan string, 1),
	}
}

// Start launches the dispatch loop. Safe to call once.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.loop()
	r.started = true
	r.logger.Sugar().Infow("runner started", "runner", r.name, "interval", r.interval)
}

// Stop cancels the loop and waits for the in-flight pass to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.cancel()
	r.mu.Unlock()
	r.wg.Wait()
	r.logger.Sugar().Infow("runner stopped", "runner", r.name)
}

// Trigger requests a pass. Returns false when one was already pending, in
// which case the pending pass covers this request too.
func (r *Runner) Trigger(reason string) bool {
	select {
	case r.triggers <- reason:
		return true
	default:
		return false
	}
}

func (r *Runner) loop() {
	defer r.wg.Done()

	var tick <-chan time.Time
	if r.interval > 0 {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		var reason string
		select {
		case <-r.ctx.Done():
			return
		case reason = <-r.triggers:
		case <-tick:
			reason = "periodic"
		}

		if err := r.task(r.ctx); err != nil {
			r.logger.Sugar().Warnw("task pass failed", "runner", r.name, "reason", reason, "error", err)
			continue
		}
		r.logger.Sugar().Debugw("task pass complete", "runner", r.name, "reason", reason)
	}
}
