package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"basegraph.app/nudge/common/logger"
	"basegraph.app/nudge/internal/audit"
	"basegraph.app/nudge/internal/queue"
	"basegraph.app/nudge/internal/service"
)

type Config struct {
	MaxAttempts  int
	ErrorBackoff time.Duration // pause after a failed read
}

type Worker struct {
	consumer Consumer
	runner   AuditRunner
	cfg      Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, runner AuditRunner, cfg Config) *Worker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}
	return &Worker{
		consumer:  consumer,
		runner:    runner,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "nudge.worker",
	})
	slog.InfoContext(ctx, "worker started", "max_attempts", w.cfg.MaxAttempts)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				select {
				case <-ctx.Done():
				case <-w.stopCh:
				case <-time.After(w.cfg.ErrorBackoff):
				}
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		_ = w.Handle(ctx, msg)
	}
	return nil
}

// Handle runs one queued audit and settles the message: ack on success,
// requeue on a retryable failure, DLQ otherwise. The returned error is the
// processing failure, for logging by the caller.
func (w *Worker) Handle(ctx context.Context, msg queue.Message) error {
	taskType := string(msg.TaskType)
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID: &msg.ID,
		TargetID:  &msg.TargetID,
		TaskType:  &taskType,
	})

	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.process_message")
	defer sc.End()
	ctx = sc.Context()
	sc.SetAttributes(
		attribute.String("queue.message_id", msg.ID),
		attribute.Int64("audit.target_id", msg.TargetID),
		attribute.Int("queue.attempt", msg.Attempt),
	)

	if err := w.processMessageSafe(ctx, msg); err != nil {
		sc.RecordError(err)
		slog.ErrorContext(ctx, "message processing failed",
			"error", err,
			"attempt", msg.Attempt)
		w.handleFailedMessage(ctx, msg, err)
		return err
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		// The reclaimer will redeliver it; a second audit only repeats the report.
		slog.WarnContext(ctx, "failed to ACK message", "error", err)
	}
	return nil
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing", "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.processMessage(ctx, msg)
}

func (w *Worker) processMessage(ctx context.Context, msg queue.Message) error {
	slog.InfoContext(ctx, "processing channel audit",
		"reference_date", msg.ReferenceDate,
		"attempt", msg.Attempt)

	start := time.Now()
	targetID := msg.TargetID
	run, err := w.runner.Run(ctx, service.RunAuditParams{
		TargetID:      &targetID,
		ReferenceDate: msg.ReferenceDate,
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "channel audit processed",
		"run_id", run.ID,
		"skipped_reason", run.SkippedReason,
		"sent", run.Sent,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Stream entries carry the last error; keep them small.
const maxErrorLen = 500

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	errMsg := logger.Truncate(err.Error(), maxErrorLen)
	if !retryable(err) || msg.Attempt >= w.cfg.MaxAttempts {
		slog.ErrorContext(ctx, "sending message to DLQ",
			"attempts", msg.Attempt,
			"retryable", retryable(err))
		if dlqErr := w.consumer.SendDLQ(ctx, msg, errMsg); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed message", "attempt", msg.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, errMsg); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}

// Bad input fails the same way on every attempt.
func retryable(err error) bool {
	return !errors.Is(err, audit.ErrInvalidConfig) && !errors.Is(err, service.ErrTargetNotFound)
}
