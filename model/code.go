// api/model/code.go
package model

import "time"

// AccessCode is a passcode pushed to a vendor lock on behalf of one rule.
// Only a one-way digest of the passcode is kept; the plaintext is returned
// exactly once at issuance. The vendor-side copy and the local record are
// created and destroyed together, never independently.
type AccessCode struct {
	ID           string    `json:"id"`
	RuleID       string    `json:"rule_id"`
	LockID       string    `json:"lock_id"`
	VendorCodeID string    `json:"vendor_code_id"`
	CodeDigest   string    `json:"-"`
	ValidFrom    time.Time `json:"valid_from"`
	ValidUntil   time.Time `json:"valid_until"`
	UsageCount   int       `json:"usage_count"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IssuedCode is the one-time provisioning result handed back to the caller
// for delivery to the grantee.
type IssuedCode struct {
	Code      AccessCode `json:"code"`
	Plaintext string     `json:"plaintext"`
}
