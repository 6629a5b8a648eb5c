// test/mock/platform.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/propsync/keyway/api/platform"
)

// MockAdapter is a mock implementation of platform.Adapter
type MockAdapter struct {
	mock.Mock
	PlatformName string
}

func (m *MockAdapter) Platform() string {
	if m.PlatformName != "" {
		return m.PlatformName
	}
	return "mock"
}

func (m *MockAdapter) ListDevices(ctx context.Context) ([]platform.Device, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]platform.Device), args.Error(1)
}

func (m *MockAdapter) GetDevice(ctx context.Context, externalID string) (*platform.Device, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*platform.Device), args.Error(1)
}

func (m *MockAdapter) Lock(ctx context.Context, externalID string) error {
	args := m.Called(ctx, externalID)
	return args.Error(0)
}

func (m *MockAdapter) Unlock(ctx context.Context, externalID string) error {
	args := m.Called(ctx, externalID)
	return args.Error(0)
}

func (m *MockAdapter) ListAccessCodes(ctx context.Context, externalID string) ([]platform.VendorCode, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]platform.VendorCode), args.Error(1)
}

func (m *MockAdapter) CreateAccessCode(ctx context.Context, externalID string, spec platform.CodeSpec) (string, error) {
	args := m.Called(ctx, externalID, spec)
	return args.String(0), args.Error(1)
}

func (m *MockAdapter) DeleteAccessCode(ctx context.Context, externalID, vendorCodeID string) error {
	args := m.Called(ctx, externalID, vendorCodeID)
	return args.Error(0)
}

func (m *MockAdapter) SyncStatus(ctx context.Context, externalID string) (*platform.Device, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*platform.Device), args.Error(1)
}

// MockResolver is a mock implementation of service.AdapterResolver
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(name string) (platform.Adapter, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(platform.Adapter), args.Error(1)
}
