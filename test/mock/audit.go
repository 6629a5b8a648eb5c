// test/mock/audit.go
package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/propsync/keyway/api/model"
)

// MockAuditService is a mock implementation of audit.Service
type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) RecordAccess(ctx context.Context, log model.AccessLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockAuditService) QueryAccessLogs(ctx context.Context, from, to time.Time, propertyID, lockID string) ([]model.AccessLog, error) {
	args := m.Called(ctx, from, to, propertyID, lockID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AccessLog), args.Error(1)
}

func (m *MockAuditService) RecordViolation(ctx context.Context, v model.AccessMonitoring) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *MockAuditService) QueryViolations(ctx context.Context, from, to time.Time, propertyID string, severity model.Severity) ([]model.AccessMonitoring, error) {
	args := m.Called(ctx, from, to, propertyID, severity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AccessMonitoring), args.Error(1)
}
