package handler_test

import (
	"context"

	"basegraph.app/nudge/internal/model"
	"basegraph.app/nudge/internal/service"
)

type mockAuditService struct {
	runFn            func(ctx context.Context, params service.RunAuditParams) (*model.AuditRun, error)
	runAllFn         func(ctx context.Context, referenceDate string) ([]model.AuditRun, error)
	enqueueFn        func(ctx context.Context, params service.RunAuditParams) (*service.EnqueueResult, error)
	listTargetsFn    func(ctx context.Context) ([]model.AuditTarget, error)
	registerTargetFn func(ctx context.Context, target *model.AuditTarget) error
}

func (m *mockAuditService) Run(ctx context.Context, params service.RunAuditParams) (*model.AuditRun, error) {
	if m.runFn != nil {
		return m.runFn(ctx, params)
	}
	return &model.AuditRun{}, nil
}

func (m *mockAuditService) RunAll(ctx context.Context, referenceDate string) ([]model.AuditRun, error) {
	if m.runAllFn != nil {
		return m.runAllFn(ctx, referenceDate)
	}
	return nil, nil
}

func (m *mockAuditService) Enqueue(ctx context.Context, params service.RunAuditParams) (*service.EnqueueResult, error) {
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, params)
	}
	return &service.EnqueueResult{}, nil
}

func (m *mockAuditService) ListTargets(ctx context.Context) ([]model.AuditTarget, error) {
	if m.listTargetsFn != nil {
		return m.listTargetsFn(ctx)
	}
	return nil, nil
}

func (m *mockAuditService) RegisterTarget(ctx context.Context, target *model.AuditTarget) error {
	if m.registerTargetFn != nil {
		return m.registerTargetFn(ctx, target)
	}
	return nil
}
