// api/model/lock.go
package model

import "time"

// LockStatus is the canonical lock state every vendor adapter maps into.
type LockStatus string

const (
	LockStatusLocked      LockStatus = "LOCKED"
	LockStatusUnlocked    LockStatus = "UNLOCKED"
	LockStatusUnknown     LockStatus = "UNKNOWN"
	LockStatusMaintenance LockStatus = "MAINTENANCE"
	LockStatusLowBattery  LockStatus = "LOW_BATTERY"
	LockStatusOffline     LockStatus = "OFFLINE"
)

// SmartLock is a vendor lock registered to a property. It is created when the
// lock is registered, mutated by status syncs, and never deleted while active
// codes reference it.
type SmartLock struct {
	ID            string     `json:"id"`
	PropertyID    string     `json:"property_id" binding:"required"`
	Platform      string     `json:"platform" binding:"required"`
	ExternalID    string     `json:"external_id" binding:"required"`
	Name          string     `json:"name"`
	Model         string     `json:"model"`
	Status        LockStatus `json:"status"`
	BatteryLevel  int        `json:"battery_level"`
	Online        bool       `json:"online"`
	LastHeartbeat *time.Time `json:"last_heartbeat,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// LockSearchCriteria filters lock listings.
type LockSearchCriteria struct {
	PropertyID string
	Platform   string
	Status     LockStatus
	Limit      int
	Offset     int
}
