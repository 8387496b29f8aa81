package store

import (
	"context"
	"errors"

	"basegraph.app/nudge/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrReadOnly is returned by registries that cannot be changed at runtime.
var ErrReadOnly = errors.New("target registry is read-only")

// AuditTargetStore defines the contract for audit target data access
type AuditTargetStore interface {
	GetByID(ctx context.Context, id int64) (*model.AuditTarget, error)
	GetByChannel(ctx context.Context, channelID string) (*model.AuditTarget, error)
	ListEnabled(ctx context.Context) ([]model.AuditTarget, error)
	Upsert(ctx context.Context, target *model.AuditTarget) error
}
