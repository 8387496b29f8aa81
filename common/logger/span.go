package logger

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "basegraph.app/nudge"

// Span is a started span together with the context that carries it.
//
//	sc := logger.StartSpan(ctx, "audit.run")
//	defer sc.End()
//	ctx = sc.Context()
type Span struct {
	trace.Span
	ctx context.Context
}

func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) *Span {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, opts...)
	return &Span{Span: span, ctx: ctx}
}

// StartSpanFromTraceID continues a trace whose id crossed the Redis stream as a
// hex string. A missing or malformed id starts a new trace.
func StartSpanFromTraceID(ctx context.Context, traceID string, name string, opts ...trace.SpanStartOption) *Span {
	if parent, ok := remoteParent(traceID); ok {
		ctx = trace.ContextWithRemoteSpanContext(ctx, parent)
		opts = append(opts, trace.WithLinks(trace.Link{SpanContext: parent}))
	}
	return StartSpan(ctx, name, opts...)
}

func remoteParent(traceID string) (trace.SpanContext, bool) {
	if traceID == "" {
		return trace.SpanContext{}, false
	}
	tid, err := trace.TraceIDFromHex(traceID)
	if err != nil {
		return trace.SpanContext{}, false
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}), true
}

func (s *Span) Context() context.Context {
	return s.ctx
}

// RecordError records err and marks the span failed. A nil err is ignored.
func (s *Span) RecordError(err error, opts ...trace.EventOption) {
	if err == nil {
		return
	}
	s.Span.RecordError(err, opts...)
	s.SetStatus(codes.Error, err.Error())
}
