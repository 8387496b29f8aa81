package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type ConsumerConfig struct {
	Stream       string        // Stream audit tasks are read from
	Group        string        // Consumer group shared by all workers
	Consumer     string        // This worker's name within the group
	DLQStream    string        // Where tasks go once they cannot be retried
	BatchSize    int64         // Tasks per read
	Block        time.Duration // How long a read waits for new tasks
	RequeueDelay time.Duration // Pause before a failed task is re-added
}

// Message is a decoded channel audit task.
type Message struct {
	ID            string
	TaskType      TaskType
	TargetID      int64
	ReferenceDate string
	Attempt       int
	TraceID       string
	Raw           redis.XMessage
}

// MessageProcessor handles one task.
type MessageProcessor func(ctx context.Context, msg Message) error

type RedisConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig

	claimMu     sync.Mutex
	claimCursor string
}

func NewRedisConsumer(ctx context.Context, client *redis.Client, cfg ConsumerConfig) (*RedisConsumer, error) {
	c := &RedisConsumer{client: client, cfg: cfg, claimCursor: "0-0"}

	// "0" rather than "$": tasks enqueued before the first worker started still run.
	err := client.XGroupCreateMkStream(ctx, cfg.Stream, cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("creating consumer group %s on %s: %w", cfg.Group, cfg.Stream, err)
	}
	return c, nil
}

// Read waits up to Block for tasks that have never been delivered.
func (c *RedisConsumer) Read(ctx context.Context) ([]Message, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    c.cfg.BatchSize,
		Block:    c.cfg.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	var raw []redis.XMessage
	for _, s := range streams {
		raw = append(raw, s.Messages...)
	}
	return c.decode(ctx, raw), nil
}

// Claim takes over up to count tasks that another consumer has held for at
// least minIdle. Successive calls walk the pending list and wrap around.
func (c *RedisConsumer) Claim(ctx context.Context, minIdle time.Duration, count int64) ([]Message, error) {
	c.claimMu.Lock()
	defer c.claimMu.Unlock()

	raw, next, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.cfg.Stream,
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		MinIdle:  minIdle,
		Start:    c.claimCursor,
		Count:    count,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("claiming idle tasks: %w", err)
	}
	c.claimCursor = next
	return c.decode(ctx, raw), nil
}

// decode drops and acks entries that are not audit tasks, since no retry
// can make them valid.
func (c *RedisConsumer) decode(ctx context.Context, raw []redis.XMessage) []Message {
	msgs := make([]Message, 0, len(raw))
	for _, x := range raw {
		msg, err := ParseMessage(x)
		if err != nil {
			slog.ErrorContext(ctx, "dropping undecodable task",
				"error", err,
				"stream_id", x.ID,
				"stream", c.cfg.Stream)
			_ = c.Ack(ctx, Message{ID: x.ID, Raw: x})
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func (c *RedisConsumer) Ack(ctx context.Context, msg Message) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
		return fmt.Errorf("acking %s on %s: %w", msg.ID, c.cfg.Stream, err)
	}
	return nil
}

// Requeue settles msg and re-adds it at the tail with the attempt bumped.
func (c *RedisConsumer) Requeue(ctx context.Context, msg Message, errMsg string) error {
	values := MessageValues(msg, msg.Attempt+1)
	if errMsg != "" {
		values["last_error"] = errMsg
	}

	if c.cfg.RequeueDelay > 0 {
		t := time.NewTimer(c.cfg.RequeueDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}

	if err := c.move(ctx, msg, c.cfg.Stream, values); err != nil {
		return fmt.Errorf("requeueing: %w", err)
	}
	slog.InfoContext(ctx, "audit task requeued",
		"next_attempt", msg.Attempt+1,
		"reason", errMsg)
	return nil
}

// SendDLQ settles msg and parks a copy on the dead letter stream.
func (c *RedisConsumer) SendDLQ(ctx context.Context, msg Message, errMsg string) error {
	values := MessageValues(msg, msg.Attempt)
	values["error"] = errMsg

	if err := c.move(ctx, msg, c.cfg.DLQStream, values); err != nil {
		return fmt.Errorf("dead-lettering: %w", err)
	}
	slog.ErrorContext(ctx, "audit task dead-lettered",
		"error", errMsg,
		"dlq_stream", c.cfg.DLQStream)
	return nil
}

// move acks msg and appends values to stream in one MULTI so a crash cannot
// lose the task or run it twice.
func (c *RedisConsumer) move(ctx context.Context, msg Message, stream string, values map[string]any) error {
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID)
		p.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: values})
		return nil
	})
	if err != nil {
		return fmt.Errorf("moving %s to %s: %w", msg.ID, stream, err)
	}
	return nil
}

// ParseMessage decodes stream fields. Redis hands every value back as a string.
func ParseMessage(x redis.XMessage) (Message, error) {
	f := fields(x.Values)

	taskType := f.str("task_type")
	switch {
	case taskType == "":
		return Message{}, errors.New("missing task_type")
	case TaskType(taskType) != TaskTypeChannelAudit:
		return Message{}, fmt.Errorf("unknown task_type %q", taskType)
	}

	if _, ok := x.Values["target_id"]; !ok {
		return Message{}, errors.New("missing target_id")
	}
	targetID, err := strconv.ParseInt(f.str("target_id"), 10, 64)
	if err != nil {
		return Message{}, fmt.Errorf("parsing target_id: %w", err)
	}

	attempt := 1
	if s := f.str("attempt"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Message{}, fmt.Errorf("parsing attempt: %w", err)
		}
		attempt = max(n, 1)
	}

	return Message{
		ID:            x.ID,
		TaskType:      TaskTypeChannelAudit,
		TargetID:      targetID,
		ReferenceDate: f.str("reference_date"),
		Attempt:       attempt,
		TraceID:       f.str("trace_id"),
		Raw:           x,
	}, nil
}

// MessageValues renders msg back into stream fields with the given attempt.
func MessageValues(msg Message, attempt int) map[string]any {
	values := map[string]any{
		"task_type": string(TaskTypeChannelAudit),
		"target_id": msg.TargetID,
		"attempt":   attempt,
	}
	if msg.ReferenceDate != "" {
		values["reference_date"] = msg.ReferenceDate
	}
	if msg.TraceID != "" {
		values["trace_id"] = msg.TraceID
	}
	return values
}

type fields map[string]any

func (f fields) str(key string) string {
	v, ok := f[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
