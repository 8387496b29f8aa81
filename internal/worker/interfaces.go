package worker

import (
	"context"
	"time"

	"basegraph.app/nudge/internal/model"
	"basegraph.app/nudge/internal/queue"
	"basegraph.app/nudge/internal/service"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// AuditRunner is the slice of service.AuditService the worker needs.
type AuditRunner interface {
	Run(ctx context.Context, params service.RunAuditParams) (*model.AuditRun, error)
}

// Claimer hands over tasks that another worker took and never settled.
type Claimer interface {
	Claim(ctx context.Context, minIdle time.Duration, count int64) ([]queue.Message, error)
}
