// api/errors/platform_errors.go
package errors

import "errors"

var (
	ErrLockNotFound = errors.New("smart lock not found")
	ErrLockConflict = errors.New("smart lock already registered")
	ErrLockInUse    = errors.New("smart lock still referenced by active codes")

	ErrPlatformNotRegistered = errors.New("no adapter registered for platform")

	// ErrVendorUnavailable covers timeouts and transport failures against a
	// vendor API. Callers may retry.
	ErrVendorUnavailable = errors.New("vendor API unavailable")

	// ErrVendorRejected covers business-level rejections from a vendor API
	// (duplicate passcode, unknown device, bad credentials). Not retryable
	// without changing the request.
	ErrVendorRejected = errors.New("vendor API rejected the request")

	// ErrConsistency is returned when the vendor call succeeded but the local
	// write failed (or the reverse during revocation); local and remote state
	// need reconciliation.
	ErrConsistency = errors.New("vendor and local state diverged")
)
