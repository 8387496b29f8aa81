package worker

import (
	"context"
	"log/slog"
	"time"

	"basegraph.app/nudge/common/logger"
	"basegraph.app/nudge/internal/queue"
)

type ReclaimerConfig struct {
	MinIdle   time.Duration // How long a task may sit unacked before it is taken over
	Interval  time.Duration
	BatchSize int64
}

// Reclaimer re-runs audits whose worker died between reading and settling
// the task. Without it such a task stays pending forever, because Read only
// delivers new entries.
type Reclaimer struct {
	claimer Claimer
	process queue.MessageProcessor
	cfg     ReclaimerConfig

	stop chan struct{}
	done chan struct{}
}

func NewReclaimer(claimer Claimer, process queue.MessageProcessor, cfg ReclaimerConfig) *Reclaimer {
	if cfg.MinIdle <= 0 {
		cfg.MinIdle = 5 * time.Minute
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	return &Reclaimer{
		claimer: claimer,
		process: process,
		cfg:     cfg,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Run sweeps every Interval until Stop is called or ctx ends.
func (r *Reclaimer) Run(ctx context.Context) {
	defer close(r.done)
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "nudge.worker.reclaimer"})

	t := time.NewTicker(r.cfg.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-t.C:
			r.Sweep(ctx)
		}
	}
}

func (r *Reclaimer) Stop() {
	close(r.stop)
	<-r.done
}

// Sweep claims one batch of idle tasks and processes them in order. It
// returns how many were claimed.
func (r *Reclaimer) Sweep(ctx context.Context) int {
	msgs, err := r.claimer.Claim(ctx, r.cfg.MinIdle, r.cfg.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "reclaim sweep failed", "error", err)
		return 0
	}
	if len(msgs) == 0 {
		return 0
	}

	slog.InfoContext(ctx, "reclaimed idle audit tasks", "count", len(msgs))
	for _, msg := range msgs {
		if ctx.Err() != nil {
			break
		}
		// process settles the task itself; the error is already logged there.
		_ = r.process(ctx, msg)
	}
	return len(msgs)
}
