package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"basegraph.app/nudge/core/db"
	"basegraph.app/nudge/internal/model"
)

const auditTargetColumns = `id, channel_id, bot_user_id, marker_reaction, webhook_url,
	history_limit, enabled, created_at, updated_at`

type auditTargetStore struct {
	q db.Querier
}

func NewAuditTargetStore(q db.Querier) AuditTargetStore {
	return &auditTargetStore{q: q}
}

func (s *auditTargetStore) GetByID(ctx context.Context, id int64) (*model.AuditTarget, error) {
	row := s.q.QueryRow(ctx, `SELECT `+auditTargetColumns+` FROM audit_targets WHERE id = $1`, id)
	return scanAuditTarget(row)
}

func (s *auditTargetStore) GetByChannel(ctx context.Context, channelID string) (*model.AuditTarget, error) {
	row := s.q.QueryRow(ctx, `SELECT `+auditTargetColumns+` FROM audit_targets WHERE channel_id = $1`, channelID)
	return scanAuditTarget(row)
}

func (s *auditTargetStore) ListEnabled(ctx context.Context) ([]model.AuditTarget, error) {
	rows, err := s.q.Query(ctx, `SELECT `+auditTargetColumns+` FROM audit_targets WHERE enabled ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing audit targets: %w", err)
	}
	defer rows.Close()

	var targets []model.AuditTarget
	for rows.Next() {
		t, err := scanAuditTarget(rows)
		if err != nil {
			return nil, err
		}
		targets = append(targets, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit targets: %w", err)
	}
	return targets, nil
}

// Upsert inserts the target or updates the row with the same channel id.
// The stored row, including its id, is written back into target.
func (s *auditTargetStore) Upsert(ctx context.Context, target *model.AuditTarget) error {
	row := s.q.QueryRow(ctx, `
		INSERT INTO audit_targets (id, channel_id, bot_user_id, marker_reaction, webhook_url, history_limit, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (channel_id) DO UPDATE SET
			bot_user_id     = EXCLUDED.bot_user_id,
			marker_reaction = EXCLUDED.marker_reaction,
			webhook_url     = EXCLUDED.webhook_url,
			history_limit   = EXCLUDED.history_limit,
			enabled         = EXCLUDED.enabled,
			updated_at      = now()
		RETURNING `+auditTargetColumns,
		target.ID,
		target.ChannelID,
		target.BotUserID,
		target.MarkerReaction,
		target.WebhookURL,
		target.HistoryLimit,
		target.Enabled,
	)

	saved, err := scanAuditTarget(row)
	if err != nil {
		return fmt.Errorf("upserting audit target: %w", err)
	}
	*target = *saved
	return nil
}

func scanAuditTarget(row pgx.Row) (*model.AuditTarget, error) {
	var t model.AuditTarget
	err := row.Scan(
		&t.ID,
		&t.ChannelID,
		&t.BotUserID,
		&t.MarkerReaction,
		&t.WebhookURL,
		&t.HistoryLimit,
		&t.Enabled,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}
