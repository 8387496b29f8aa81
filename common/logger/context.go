package logger

import (
	"context"
	"log/slog"
)

type fieldsKey struct{}

// LogFields are attached to a context once and added to every record logged
// with it, so an audit run's stages share run_id and channel_id without
// threading them through each call.
type LogFields struct {
	RunID     *int64  // Snowflake id of the audit run
	TargetID  *int64  // Audit target id
	ChannelID *string // Audited channel
	MessageID *string // Redis stream entry id
	TaskType  *string
	Component string // e.g. "nudge.audit.resolver"
}

// WithLogFields merges fields into those already on ctx. Set values win.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	cur := GetLogFields(ctx)
	return context.WithValue(ctx, fieldsKey{}, LogFields{
		RunID:     newer(cur.RunID, fields.RunID),
		TargetID:  newer(cur.TargetID, fields.TargetID),
		ChannelID: newer(cur.ChannelID, fields.ChannelID),
		MessageID: newer(cur.MessageID, fields.MessageID),
		TaskType:  newer(cur.TaskType, fields.TaskType),
		Component: cmpOr(fields.Component, cur.Component),
	})
}

func GetLogFields(ctx context.Context) LogFields {
	fields, _ := ctx.Value(fieldsKey{}).(LogFields)
	return fields
}

func (f LogFields) attrs() []slog.Attr {
	var out []slog.Attr
	if f.RunID != nil {
		out = append(out, slog.Int64("run_id", *f.RunID))
	}
	if f.TargetID != nil {
		out = append(out, slog.Int64("target_id", *f.TargetID))
	}
	if f.ChannelID != nil {
		out = append(out, slog.String("channel_id", *f.ChannelID))
	}
	if f.MessageID != nil {
		out = append(out, slog.String("message_id", *f.MessageID))
	}
	if f.TaskType != nil {
		out = append(out, slog.String("task_type", *f.TaskType))
	}
	if f.Component != "" {
		out = append(out, slog.String("component", f.Component))
	}
	return out
}

func newer[T any](old, new *T) *T {
	if new != nil {
		return new
	}
	return old
}

func cmpOr(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// Ptr returns a pointer to v, for filling LogFields inline.
func Ptr[T any](v T) *T {
	return &v
}

// Truncate cuts s to maxLen bytes and marks the cut with "...".
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
