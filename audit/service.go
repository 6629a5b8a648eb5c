// api/audit/service.go
package audit

import (
	"context"
	"time"

	"github.com/propsync/keyway/api/model"
)

type Service interface {
	RecordAccess(ctx context.Context, log model.AccessLog) error
	QueryAccessLogs(ctx context.Context, from, to time.Time, propertyID, lockID string) ([]model.AccessLog, error)
	RecordViolation(ctx context.Context, v model.AccessMonitoring) error
	QueryViolations(ctx context.Context, from, to time.Time, propertyID string, severity model.Severity) ([]model.AccessMonitoring, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) RecordAccess(ctx context.Context, log model.AccessLog) error {
	return s.repo.IndexAccessLog(ctx, log)
}

func (s *service) QueryAccessLogs(ctx context.Context, from, to time.Time, propertyID, lockID string) ([]model.AccessLog, error) {
	return s.repo.QueryAccessLogs(ctx, from, to, propertyID, lockID)
}

func (s *service) RecordViolation(ctx context.Context, v model.AccessMonitoring) error {
	return s.repo.IndexViolation(ctx, v)
}

func (s *service) QueryViolations(ctx context.Context, from, to time.Time, propertyID string, severity model.Severity) ([]model.AccessMonitoring, error) {
	return s.repo.QueryViolations(ctx, from, to, propertyID, severity)
}
