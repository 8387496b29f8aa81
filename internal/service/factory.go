package service

import (
	"fmt"

	"basegraph.app/nudge/core/config"
	"basegraph.app/nudge/core/db"
	"basegraph.app/nudge/internal/audit"
	"basegraph.app/nudge/internal/model"
	"basegraph.app/nudge/internal/policy"
	"basegraph.app/nudge/internal/queue"
	"basegraph.app/nudge/internal/service/chat"
	"basegraph.app/nudge/internal/service/notifier"
	"basegraph.app/nudge/internal/store"
)

type ServicesConfig struct {
	Targets  store.AuditTargetStore
	Auditor  Auditor
	Notifier notifier.Notifier
	Producer queue.Producer // nil when the binary never enqueues
	Defaults AuditDefaults
}

type Services struct {
	cfg ServicesConfig
}

func NewServices(cfg ServicesConfig) *Services {
	return &Services{cfg: cfg}
}

func (s *Services) Audits() AuditService {
	return NewAuditService(
		s.cfg.Targets,
		s.cfg.Auditor,
		s.cfg.Notifier,
		s.cfg.Producer,
		s.cfg.Defaults,
	)
}

// NewSlackAuditor wires the audit pipeline to Slack with the configured
// escalation policy.
func NewSlackAuditor(cfg config.Config) (*audit.Auditor, error) {
	tiers, err := policy.Load(cfg.Audit.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: loading escalation policy: %w", audit.ErrInvalidConfig, err)
	}

	reader, err := chat.NewSlackChannelReader(chat.Config{
		Token:       cfg.Slack.Token,
		APIURL:      cfg.Slack.APIURL,
		HTTPTimeout: cfg.Slack.HTTPTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("creating slack client: %w", err)
	}

	reader = chat.NewCachingChannelReader(reader, cfg.Slack.PermalinkCacheTTL)

	return audit.NewAuditor(reader, audit.NewLinkResolver(reader, cfg.Audit.MaxParallel), tiers)
}

// NewTargetStore uses the audit_targets table when a database is
// configured and otherwise serves the single channel from the environment.
func NewTargetStore(database *db.DB, cfg config.Config) store.AuditTargetStore {
	if database != nil {
		return store.NewAuditTargetStore(database.Querier())
	}
	return store.NewStaticTargetStore(model.AuditTarget{
		ChannelID:      cfg.Audit.ChannelID,
		BotUserID:      cfg.Audit.BotUserID,
		MarkerReaction: cfg.Audit.MarkerReaction,
		WebhookURL:     cfg.Slack.WebhookURL,
		HistoryLimit:   cfg.Audit.HistoryLimit,
	})
}

func DefaultsFromConfig(cfg config.Config) AuditDefaults {
	return AuditDefaults{
		WebhookURL:     cfg.Slack.WebhookURL,
		BotUserID:      cfg.Audit.BotUserID,
		MarkerReaction: cfg.Audit.MarkerReaction,
		HistoryLimit:   cfg.Audit.HistoryLimit,
	}
}
