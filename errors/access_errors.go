// api/errors/access_errors.go
package errors

import "errors"

var (
	ErrRuleNotFound    = errors.New("access rule not found")
	ErrRuleConflict    = errors.New("access rule conflict")
	ErrInvalidRuleData = errors.New("invalid access rule data")
	ErrInvalidTimeSpec = errors.New("invalid time restriction spec")
	ErrRuleSuspended   = errors.New("access rule is suspended")

	ErrCodeNotFound      = errors.New("access code not found")
	ErrInvalidCodeSpec   = errors.New("invalid access code spec")
	ErrCodeCollision     = errors.New("passcode collides with an active code on the lock")
	ErrCodeAlreadyIssued = errors.New("rule already holds a live access code")

	ErrDatabaseOperation = errors.New("database operation failed")
	ErrInternalServer    = errors.New("internal server error")
	ErrInvalidPagination = errors.New("invalid pagination parameters")
)
