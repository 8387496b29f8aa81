package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"basegraph.app/nudge/common/logger"
)

const meterName = "basegraph.app/nudge/audit"

var errEmptyPermalink = errors.New("empty permalink")

// PermalinkResolver looks up the durable link of one message.
type PermalinkResolver interface {
	Permalink(ctx context.Context, channelID, messageTS string) (string, error)
}

// ResolvedLink is the outcome of one lookup: a permalink, or the error that
// kept the message out of the report.
type ResolvedLink struct {
	MessageID string
	Permalink string
	Err       error
}

func (l ResolvedLink) OK() bool {
	return l.Err == nil
}

type LinkResolver struct {
	permalinks  PermalinkResolver
	maxParallel int
	failures    metric.Int64Counter
}

// NewLinkResolver returns a resolver that runs every lookup concurrently.
// maxParallel > 0 caps the number of lookups in flight.
func NewLinkResolver(permalinks PermalinkResolver, maxParallel int) *LinkResolver {
	failures, err := otel.Meter(meterName).Int64Counter(
		"nudge.audit.link_resolution_failures",
		metric.WithDescription("Permalink lookups that failed and were left out of a report"),
	)
	if err != nil {
		failures = noop.Int64Counter{}
	}

	return &LinkResolver{
		permalinks:  permalinks,
		maxParallel: maxParallel,
		failures:    failures,
	}
}

// Resolve looks up a permalink for every item and waits for all of them.
// results[i] always belongs to items[i]; a failed lookup never cancels the others.
func (r *LinkResolver) Resolve(ctx context.Context, channelID string, items []UnresolvedItem) []ResolvedLink {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "nudge.audit.resolver"})

	results := make([]ResolvedLink, len(items))
	var wg sync.WaitGroup

	var sem chan struct{}
	if r.maxParallel > 0 {
		sem = make(chan struct{}, r.maxParallel)
	}

	start := time.Now()
	for i, item := range items {
		wg.Add(1)
		go func(idx int, item UnresolvedItem) {
			defer wg.Done()

			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}

			results[idx] = r.resolveOne(ctx, channelID, item)
		}(i, item)
	}

	wg.Wait()

	failed := 0
	for _, res := range results {
		if !res.OK() {
			failed++
		}
	}
	if failed > 0 {
		r.failures.Add(ctx, int64(failed), metric.WithAttributes(attribute.String("channel_id", channelID)))
	}

	slog.DebugContext(ctx, "permalink lookups finished",
		"total", len(items),
		"failed", failed,
		"duration_ms", time.Since(start).Milliseconds())

	return results
}

func (r *LinkResolver) resolveOne(ctx context.Context, channelID string, item UnresolvedItem) (res ResolvedLink) {
	res.MessageID = item.MessageID

	defer func() {
		if p := recover(); p != nil {
			res.Permalink = ""
			res.Err = &LinkResolutionError{MessageID: item.MessageID, Err: fmt.Errorf("panic: %v", p)}
		}
		if res.Err != nil {
			slog.WarnContext(ctx, "permalink lookup failed, leaving message out of report",
				"error", res.Err,
				"message_ts", item.MessageID)
		}
	}()

	link, err := r.permalinks.Permalink(ctx, channelID, item.MessageID)
	if err != nil {
		res.Err = &LinkResolutionError{MessageID: item.MessageID, Err: err}
		return res
	}

	link = UnescapePermalink(link)
	if link == "" {
		res.Err = &LinkResolutionError{MessageID: item.MessageID, Err: errEmptyPermalink}
		return res
	}

	res.Permalink = link
	return res
}

// UnescapePermalink strips the backslashes of JSON-escaped path separators.
func UnescapePermalink(link string) string {
	return strings.TrimSpace(strings.ReplaceAll(link, `\`, ""))
}
