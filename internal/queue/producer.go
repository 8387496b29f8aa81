package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

type Producer interface {
	// Enqueue appends the task to the stream and returns its message id.
	Enqueue(ctx context.Context, task AuditTask) (string, error)
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, task AuditTask) (string, error) {
	attempt := task.Attempt
	if attempt <= 0 {
		attempt = 1
	}

	fields := map[string]any{
		"task_type": string(TaskTypeChannelAudit),
		"target_id": task.TargetID,
		"attempt":   attempt,
	}
	if task.ReferenceDate != "" {
		fields["reference_date"] = task.ReferenceDate
	}
	if task.TraceID != nil && *task.TraceID != "" {
		fields["trace_id"] = *task.TraceID
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: fields,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("enqueue audit: %w", err)
	}

	p.logger.InfoContext(ctx, "enqueued channel audit",
		"message_id", id,
		"target_id", task.TargetID,
		"reference_date", task.ReferenceDate,
		"attempt", attempt)
	return id, nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
