// api/model/access_log.go
package model

import "time"

// AccessEventType classifies a physical access event reported by a vendor.
type AccessEventType string

const (
	EventUnlock        AccessEventType = "UNLOCK"
	EventLock          AccessEventType = "LOCK"
	EventUnlockFailed  AccessEventType = "UNLOCK_FAILED"
	EventLockFailed    AccessEventType = "LOCK_FAILED"
	EventCodeAdded     AccessEventType = "CODE_ADDED"
	EventCodeRemoved   AccessEventType = "CODE_REMOVED"
	EventBatteryLow    AccessEventType = "BATTERY_LOW"
	EventDeviceOffline AccessEventType = "DEVICE_OFFLINE"
	EventDeviceOnline  AccessEventType = "DEVICE_ONLINE"
	EventTamperAlert   AccessEventType = "TAMPER_ALERT"
)

// AccessMethod is how the accessor operated the lock.
type AccessMethod string

const (
	MethodKeypad      AccessMethod = "KEYPAD"
	MethodRemote      AccessMethod = "REMOTE"
	MethodApp         AccessMethod = "APP"
	MethodFingerprint AccessMethod = "FINGERPRINT"
)

// AccessLog is the immutable record of one physical access attempt.
// Append-only; events arrive from vendor webhooks or a polling collaborator
// already normalized to this shape.
type AccessLog struct {
	ID           string          `json:"id"`
	PropertyID   string          `json:"property_id" binding:"required"`
	LockID       string          `json:"lock_id" binding:"required"`
	Timestamp    time.Time       `json:"timestamp"`
	EventType    AccessEventType `json:"event_type" binding:"required"`
	AccessMethod AccessMethod    `json:"access_method"`
	AccessorID   string          `json:"accessor_id"`
	AccessorType GranteeType     `json:"accessor_type"`
	Success      bool            `json:"success"`
}

// ViolationType classifies a mismatch between an observed access event and
// the rules that should have governed it.
type ViolationType string

const (
	ViolationUnknownAccessor   ViolationType = "UNKNOWN_ACCESSOR"
	ViolationExpiredRule       ViolationType = "EXPIRED_RULE_USED"
	ViolationSuspendedRule     ViolationType = "RULE_SUSPENDED_BUT_USED"
	ViolationOutsideTimeWindow ViolationType = "OUTSIDE_TIME_WINDOW"
	ViolationOutsideWeekday    ViolationType = "OUTSIDE_WEEKDAY"
)

// Severity ranks how urgent a violation is for the reporting collaborators.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// AccessMonitoring is a detected violation. Produced once per offending
// access log by the monitor, never edited. Detection is a post-hoc audit
// signal; it does not block or reverse the physical event.
type AccessMonitoring struct {
	ID            string        `json:"id"`
	AccessLogID   string        `json:"access_log_id"`
	RuleID        string        `json:"rule_id,omitempty"`
	PropertyID    string        `json:"property_id"`
	ViolationType ViolationType `json:"violation_type"`
	Severity      Severity      `json:"severity"`
	Description   string        `json:"description"`
	DetectedAt    time.Time     `json:"detected_at"`
}
