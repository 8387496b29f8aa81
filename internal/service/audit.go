package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"basegraph.app/nudge/common/id"
	"basegraph.app/nudge/common/logger"
	"basegraph.app/nudge/internal/audit"
	"basegraph.app/nudge/internal/model"
	"basegraph.app/nudge/internal/queue"
	"basegraph.app/nudge/internal/service/notifier"
	"basegraph.app/nudge/internal/store"
)

var (
	ErrTargetNotFound   = errors.New("audit target not found")
	ErrQueueUnavailable = errors.New("audit queue not configured")

	// ErrAuditorUnavailable is returned by binaries started without a Slack token.
	ErrAuditorUnavailable = errors.New("slack auditor not configured")
)

// Auditor runs the core pipeline for one channel.
type Auditor interface {
	Run(ctx context.Context, p audit.Params) (*audit.Result, error)
}

// RunAuditParams selects a target by id or by channel; TargetID wins when
// both are set.
type RunAuditParams struct {
	TargetID      *int64
	ChannelID     string
	ReferenceDate string
	TraceID       *string
}

type EnqueueResult struct {
	MessageID string
	TargetID  int64
}

// AuditDefaults fill in whatever a target leaves blank.
type AuditDefaults struct {
	WebhookURL     string
	BotUserID      string
	MarkerReaction string
	HistoryLimit   int
}

type AuditService interface {
	Run(ctx context.Context, params RunAuditParams) (*model.AuditRun, error)
	RunAll(ctx context.Context, referenceDate string) ([]model.AuditRun, error)
	Enqueue(ctx context.Context, params RunAuditParams) (*EnqueueResult, error)
	ListTargets(ctx context.Context) ([]model.AuditTarget, error)
	RegisterTarget(ctx context.Context, target *model.AuditTarget) error
}

type auditService struct {
	targets  store.AuditTargetStore
	auditor  Auditor
	notifier notifier.Notifier
	producer queue.Producer
	defaults AuditDefaults
}

func NewAuditService(
	targets store.AuditTargetStore,
	auditor Auditor,
	n notifier.Notifier,
	producer queue.Producer,
	defaults AuditDefaults,
) AuditService {
	return &auditService{
		targets:  targets,
		auditor:  auditor,
		notifier: n,
		producer: producer,
		defaults: defaults,
	}
}

// Run audits one target and posts the report. An empty history or a report
// with nothing in it is a successful run with SkippedReason set. A failed
// delivery is logged and leaves Sent false.
func (s *auditService) Run(ctx context.Context, params RunAuditParams) (*model.AuditRun, error) {
	if s.auditor == nil {
		return nil, ErrAuditorUnavailable
	}

	target, err := s.resolveTarget(ctx, params)
	if err != nil {
		return nil, err
	}

	reference, err := audit.ParseReferenceDate(params.ReferenceDate)
	if err != nil {
		return nil, err
	}

	run := &model.AuditRun{
		ID:        id.New(),
		TargetID:  target.ID,
		ChannelID: target.ChannelID,
		StartedAt: time.Now().UTC(),
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		RunID:     &run.ID,
		TargetID:  &run.TargetID,
		ChannelID: &run.ChannelID,
		Component: "nudge.service.audit",
	})

	result, err := s.auditor.Run(ctx, audit.Params{
		Reference:      reference,
		ChannelID:      target.ChannelID,
		BotUserID:      s.botUserID(target),
		MarkerReaction: s.marker(target),
		HistoryLimit:   s.historyLimit(target),
	})
	if err != nil {
		if errors.Is(err, audit.ErrEmptyOrMalformedHistory) {
			window := audit.NewWindow(reference)
			run.WindowStart = window.Oldest
			run.WindowEnd = window.Reference
			run.SkippedReason = model.SkipReasonNoHistory
			slog.InfoContext(ctx, "audit skipped", "reason", run.SkippedReason)
			return run, nil
		}
		return nil, fmt.Errorf("auditing channel %s: %w", target.ChannelID, err)
	}

	run.WindowStart = result.Window.Oldest
	run.WindowEnd = result.Window.Reference
	run.Scanned = result.Scanned
	run.Unresolved = len(result.Items)
	run.Resolved = result.Resolved()
	run.Failed = result.Failed()
	run.Header = result.Report.Header
	run.Body = result.Report.Body

	if result.Report.Empty() {
		run.SkippedReason = model.SkipReasonNothingUnresolved
		slog.InfoContext(ctx, "audit skipped",
			"reason", run.SkippedReason,
			"scanned", run.Scanned,
			"unresolved", run.Unresolved)
		return run, nil
	}

	run.Sent = s.deliver(ctx, target, result.Report)

	slog.InfoContext(ctx, "audit completed",
		"scanned", run.Scanned,
		"unresolved", run.Unresolved,
		"resolved", run.Resolved,
		"failed", run.Failed,
		"sent", run.Sent)

	return run, nil
}

func (s *auditService) deliver(ctx context.Context, target *model.AuditTarget, report audit.Report) bool {
	webhookURL := target.WebhookURL
	if webhookURL == "" {
		webhookURL = s.defaults.WebhookURL
	}
	if webhookURL == "" {
		slog.WarnContext(ctx, "no webhook configured for target, report not sent")
		return false
	}

	if err := s.notifier.Notify(ctx, webhookURL, report.Payload()); err != nil {
		slog.WarnContext(ctx, "failed to deliver audit report", "error", err)
		return false
	}
	return true
}

// RunAll audits every enabled target in turn. One failing target does not
// stop the others; their errors are joined.
func (s *auditService) RunAll(ctx context.Context, referenceDate string) ([]model.AuditRun, error) {
	targets, err := s.targets.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing audit targets: %w", err)
	}

	runs := make([]model.AuditRun, 0, len(targets))
	var errs []error
	for _, t := range targets {
		targetID := t.ID
		run, err := s.Run(ctx, RunAuditParams{
			TargetID:      &targetID,
			ReferenceDate: referenceDate,
		})
		if err != nil {
			slog.ErrorContext(ctx, "audit failed",
				"error", err,
				"target_id", t.ID,
				"channel_id", t.ChannelID)
			errs = append(errs, err)
			continue
		}
		runs = append(runs, *run)
	}

	return runs, errors.Join(errs...)
}

func (s *auditService) Enqueue(ctx context.Context, params RunAuditParams) (*EnqueueResult, error) {
	if s.producer == nil {
		return nil, ErrQueueUnavailable
	}

	target, err := s.resolveTarget(ctx, params)
	if err != nil {
		return nil, err
	}

	// Reject bad dates now rather than after a trip through the queue.
	if _, err := audit.ParseReferenceDate(params.ReferenceDate); err != nil {
		return nil, err
	}

	messageID, err := s.producer.Enqueue(ctx, queue.AuditTask{
		TargetID:      target.ID,
		ReferenceDate: params.ReferenceDate,
		TraceID:       params.TraceID,
	})
	if err != nil {
		return nil, fmt.Errorf("enqueueing audit: %w", err)
	}

	return &EnqueueResult{MessageID: messageID, TargetID: target.ID}, nil
}

func (s *auditService) ListTargets(ctx context.Context) ([]model.AuditTarget, error) {
	targets, err := s.targets.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing audit targets: %w", err)
	}
	return targets, nil
}

func (s *auditService) RegisterTarget(ctx context.Context, target *model.AuditTarget) error {
	if target.ChannelID == "" {
		return fmt.Errorf("%w: channel id is required", audit.ErrInvalidConfig)
	}
	if target.ID == 0 {
		target.ID = id.New()
	}
	if target.MarkerReaction == "" {
		target.MarkerReaction = s.defaults.MarkerReaction
	}
	if target.HistoryLimit <= 0 {
		target.HistoryLimit = s.defaults.HistoryLimit
	}

	if err := s.targets.Upsert(ctx, target); err != nil {
		return fmt.Errorf("registering audit target: %w", err)
	}
	return nil
}

func (s *auditService) resolveTarget(ctx context.Context, params RunAuditParams) (*model.AuditTarget, error) {
	var (
		target *model.AuditTarget
		err    error
	)

	switch {
	case params.TargetID != nil:
		target, err = s.targets.GetByID(ctx, *params.TargetID)
	case params.ChannelID != "":
		target, err = s.targets.GetByChannel(ctx, params.ChannelID)
	default:
		return nil, fmt.Errorf("%w: target id or channel id is required", audit.ErrInvalidConfig)
	}

	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTargetNotFound
		}
		return nil, fmt.Errorf("loading audit target: %w", err)
	}
	return target, nil
}

func (s *auditService) botUserID(t *model.AuditTarget) string {
	if t.BotUserID != "" {
		return t.BotUserID
	}
	return s.defaults.BotUserID
}

func (s *auditService) marker(t *model.AuditTarget) string {
	if t.MarkerReaction != "" {
		return t.MarkerReaction
	}
	return s.defaults.MarkerReaction
}

func (s *auditService) historyLimit(t *model.AuditTarget) int {
	if t.HistoryLimit > 0 {
		return t.HistoryLimit
	}
	return s.defaults.HistoryLimit
}
