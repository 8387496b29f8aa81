package store

import (
	"context"

	"basegraph.app/nudge/internal/model"
)

// StaticTargetID is the id of the single target served without a database.
const StaticTargetID int64 = 1

type staticTargetStore struct {
	target model.AuditTarget
}

// NewStaticTargetStore serves exactly one target, typically built from the
// environment when no database is configured.
func NewStaticTargetStore(target model.AuditTarget) AuditTargetStore {
	if target.ID == 0 {
		target.ID = StaticTargetID
	}
	target.Enabled = true
	return &staticTargetStore{target: target}
}

func (s *staticTargetStore) GetByID(_ context.Context, id int64) (*model.AuditTarget, error) {
	if id != s.target.ID {
		return nil, ErrNotFound
	}
	t := s.target
	return &t, nil
}

func (s *staticTargetStore) GetByChannel(_ context.Context, channelID string) (*model.AuditTarget, error) {
	if channelID != s.target.ChannelID {
		return nil, ErrNotFound
	}
	t := s.target
	return &t, nil
}

func (s *staticTargetStore) ListEnabled(context.Context) ([]model.AuditTarget, error) {
	return []model.AuditTarget{s.target}, nil
}

func (s *staticTargetStore) Upsert(context.Context, *model.AuditTarget) error {
	return ErrReadOnly
}
