package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"basegraph.app/nudge/common/logger"
	"basegraph.app/nudge/internal/model"
	"basegraph.app/nudge/internal/policy"
)

type HistoryQuery struct {
	ChannelID string
	Oldest    string // epoch seconds
	Limit     int
}

// HistoryFetcher returns one bounded page of channel history.
type HistoryFetcher interface {
	History(ctx context.Context, query HistoryQuery) (*model.History, error)
}

type Params struct {
	Reference      time.Time // zero means now
	ChannelID      string
	BotUserID      string
	MarkerReaction string
	HistoryLimit   int
}

type Result struct {
	Window  Window
	Items   []ClassifiedItem
	Links   []ResolvedLink
	Report  Report
	Scanned int
}

func (r *Result) Resolved() int {
	return len(r.Report.Lines)
}

func (r *Result) Failed() int {
	return len(r.Links) - len(r.Report.Lines)
}

type Auditor struct {
	history HistoryFetcher
	links   *LinkResolver
	tiers   []model.EscalationTier
}

func NewAuditor(history HistoryFetcher, links *LinkResolver, tiers []model.EscalationTier) (*Auditor, error) {
	if err := policy.Validate(tiers); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &Auditor{
		history: history,
		links:   links,
		tiers:   tiers,
	}, nil
}

// Run audits one channel and composes the report. It returns
// ErrEmptyOrMalformedHistory when there was nothing to read and wraps
// ErrTransport when history could not be fetched; lookup failures only shrink
// the report.
func (a *Auditor) Run(ctx context.Context, p Params) (*Result, error) {
	if p.ChannelID == "" {
		return nil, fmt.Errorf("%w: channel id is required", ErrInvalidConfig)
	}
	if p.MarkerReaction == "" {
		return nil, fmt.Errorf("%w: marker reaction is required", ErrInvalidConfig)
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ChannelID: logger.Ptr(p.ChannelID),
		Component: "nudge.audit",
	})

	sc := logger.StartSpan(ctx, "audit.run")
	defer sc.End()
	ctx = sc.Context()

	window := NewWindow(p.Reference)
	slog.InfoContext(ctx, "searching channel for unresolved questions",
		"from", window.Oldest,
		"to", window.Reference,
		"limit", p.HistoryLimit)

	history, err := a.history.History(ctx, HistoryQuery{
		ChannelID: p.ChannelID,
		Oldest:    window.OldestUnix(),
		Limit:     p.HistoryLimit,
	})
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrTransport, err)
		sc.RecordError(err)
		return nil, err
	}

	unresolved, err := FilterUnresolved(history, FilterParams{
		BotUserID:      p.BotUserID,
		MarkerReaction: p.MarkerReaction,
	})
	if err != nil {
		if errors.Is(err, ErrEmptyOrMalformedHistory) {
			slog.InfoContext(ctx, "no message collection in history, nothing to audit")
		}
		return nil, err
	}

	if history.HasMore {
		slog.WarnContext(ctx, "history page truncated, older questions in the window are not audited",
			"limit", p.HistoryLimit)
	}

	items := ClassifyAll(unresolved, a.tiers, window.Reference)
	for _, item := range items {
		if item.Fallback {
			slog.WarnContext(ctx, "message timestamp not before reference, using catch-all tier",
				"message_ts", item.MessageID,
				"tier_days", item.Tier.ThresholdDays)
		}
	}

	slog.InfoContext(ctx, "classified unresolved questions",
		"scanned", len(history.Messages),
		"unresolved", len(items))

	links := a.links.Resolve(ctx, p.ChannelID, unresolved)

	report := Compose(items, links, ComposeParams{
		ChannelID:      p.ChannelID,
		MarkerReaction: p.MarkerReaction,
		Window:         window,
	})

	result := &Result{
		Window:  window,
		Items:   items,
		Links:   links,
		Report:  report,
		Scanned: len(history.Messages),
	}

	sc.SetAttributes(
		attribute.Int("audit.scanned", result.Scanned),
		attribute.Int("audit.unresolved", len(items)),
		attribute.Int("audit.failed", result.Failed()),
	)

	return result, nil
}
