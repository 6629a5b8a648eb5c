// api/platform/adapter.go
package platform

import (
	"context"
	"fmt"
	"time"

	keyway_errors "github.com/propsync/keyway/api/errors"
	"github.com/propsync/keyway/api/model"
)

// Device is a vendor lock translated into canonical terms.
type Device struct {
	ExternalID   string
	Name         string
	Model        string
	Status       model.LockStatus
	BatteryLevel int
	Online       bool
}

// CodeSpec describes a passcode to push to a vendor lock.
type CodeSpec struct {
	Name       string
	Code       string
	ValidFrom  time.Time
	ValidUntil time.Time
}

// VendorCode is a passcode as reported by the vendor.
type VendorCode struct {
	VendorCodeID string
	Name         string
	ValidFrom    time.Time
	ValidUntil   time.Time
}

// Adapter is the capability set every vendor integration must implement.
// Implementations translate vendor-specific status and type codes into the
// canonical enums; unmapped vendor codes map to UNKNOWN rather than failing.
// All calls are remote and must honor ctx cancellation and the configured
// request timeout.
type Adapter interface {
	Platform() string
	ListDevices(ctx context.Context) ([]Device, error)
	GetDevice(ctx context.Context, externalID string) (*Device, error)
	Lock(ctx context.Context, externalID string) error
	Unlock(ctx context.Context, externalID string) error
	ListAccessCodes(ctx context.Context, externalID string) ([]VendorCode, error)
	CreateAccessCode(ctx context.Context, externalID string, spec CodeSpec) (string, error)
	DeleteAccessCode(ctx context.Context, externalID, vendorCodeID string) error
	SyncStatus(ctx context.Context, externalID string) (*Device, error)
}

// wrapTransportErr folds timeouts and network failures into the retryable
// ErrVendorUnavailable class, keeping the underlying cause in the message.
func wrapTransportErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", keyway_errors.ErrVendorUnavailable, err)
}
