// api/service/provisioning_service.go
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/propsync/keyway/api/config"
	keyway_errors "github.com/propsync/keyway/api/errors"
	logger "github.com/propsync/keyway/api/logging"
	"github.com/propsync/keyway/api/model"
	"github.com/propsync/keyway/api/platform"
	"github.com/propsync/keyway/api/util"
)

type IProvisioningService interface {
	ProvisionCode(ctx context.Context, ruleID, lockID string) (*model.IssuedCode, error)
	RevokeCode(ctx context.Context, codeID string) error
	RevokeActiveCodeForRule(ctx context.Context, ruleID string) error
	EnsureValidCode(ctx context.Context, rule *model.AccessRule, expiryThreshold time.Duration) (bool, error)
	GetCode(ctx context.Context, codeID string) (*model.AccessCode, error)
	ListCodesByRule(ctx context.Context, ruleID string) ([]*model.AccessCode, error)
}

// ProvisioningPolicy carries the tunables for passcode issuance.
type ProvisioningPolicy struct {
	CodeLength      int
	MaxAttempts     int
	ShortStayDigits int
	DeliveryLead    time.Duration
}

// PolicyFromConfig reads the issuance tunables set by config defaults.
func PolicyFromConfig() ProvisioningPolicy {
	return ProvisioningPolicy{
		CodeLength:      config.GetInt("provisioning.codeLength"),
		MaxAttempts:     config.GetInt("provisioning.maxAttempts"),
		ShortStayDigits: config.GetInt("provisioning.shortStayDigits"),
		DeliveryLead:    config.GetDuration("provisioning.deliveryLeadTime"),
	}
}

func (p ProvisioningPolicy) withDefaults() ProvisioningPolicy {
	if p.CodeLength == 0 {
		p.CodeLength = 6
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = 5
	}
	if p.ShortStayDigits == 0 {
		p.ShortStayDigits = 6
	}
	if p.DeliveryLead == 0 {
		p.DeliveryLead = 24 * time.Hour
	}
	return p
}

type ProvisioningService struct {
	ruleStore       RuleStore
	codeStore       CodeStore
	lockStore       LockStore
	registry        AdapterResolver
	auditService    AuditRecorder
	notificationSvc *util.NotificationService
	eventBus        *util.EventBus
	policy          ProvisioningPolicy
}

// AuditRecorder is the slice of the audit service the provisioning and lock
// services write through.
type AuditRecorder interface {
	RecordAccess(ctx context.Context, log model.AccessLog) error
}

func NewProvisioningService(ruleStore RuleStore, codeStore CodeStore, lockStore LockStore, registry AdapterResolver, auditService AuditRecorder, notificationSvc *util.NotificationService, eventBus *util.EventBus, policy ProvisioningPolicy) *ProvisioningService {
	return &ProvisioningService{
		ruleStore:       ruleStore,
		codeStore:       codeStore,
		lockStore:       lockStore,
		registry:        registry,
		auditService:    auditService,
		notificationSvc: notificationSvc,
		eventBus:        eventBus,
		policy:          policy.withDefaults(),
	}
}

// ProvisionCode issues a passcode for the rule on the given lock. The vendor
// call happens first; the local record is persisted only after the vendor
// accepted the code, so a stored AccessCode always has a vendor-side twin.
// The plaintext is returned exactly once and never stored or logged.
func (s *ProvisioningService) ProvisionCode(ctx context.Context, ruleID, lockID string) (*model.IssuedCode, error) {
	rule, err := s.ruleStore.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if !rule.IsActive || rule.RenewalStatus == model.RenewalSuspended || rule.RenewalStatus == model.RenewalExpired {
		return nil, fmt.Errorf("%w: rule %s is %s", keyway_errors.ErrRuleSuspended, ruleID, rule.RenewalStatus)
	}

	lock, err := s.lockStore.GetLock(ctx, lockID)
	if err != nil {
		return nil, err
	}
	if lock.PropertyID != rule.PropertyID {
		return nil, fmt.Errorf("%w: lock %s is not installed at property %s", keyway_errors.ErrInvalidCodeSpec, lockID, rule.PropertyID)
	}

	if existing, err := s.codeStore.GetActiveCodeForRule(ctx, ruleID); err == nil && existing != nil && existing.ValidUntil.After(time.Now()) {
		return nil, fmt.Errorf("%w: rule %s, code %s", keyway_errors.ErrCodeAlreadyIssued, ruleID, existing.ID)
	}

	adapter, err := s.registry.Resolve(lock.Platform)
	if err != nil {
		return nil, err
	}

	plaintext, err := s.generatePasscode(ctx, rule, lockID)
	if err != nil {
		return nil, err
	}

	validFrom, validUntil := s.codeWindow(rule, time.Now())

	vendorCodeID, err := adapter.CreateAccessCode(ctx, lock.ExternalID, codeSpecFor(rule, plaintext, validFrom, validUntil))
	if err != nil {
		logger.Error("Vendor rejected or failed access code creation",
			zap.Error(err), zap.String("ruleID", ruleID), zap.String("lockID", lockID))
		return nil, err
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to digest passcode", keyway_errors.ErrInternalServer)
	}

	code := model.AccessCode{
		RuleID:       ruleID,
		LockID:       lockID,
		VendorCodeID: vendorCodeID,
		CodeDigest:   string(digest),
		ValidFrom:    validFrom,
		ValidUntil:   validUntil,
		IsActive:     true,
	}

	codeID, err := s.codeStore.CreateCode(ctx, code)
	if err != nil {
		// The vendor holds a code we failed to record. Compensate by deleting
		// it; if even that fails the two sides have diverged.
		logger.Error("Failed to persist access code after vendor success",
			zap.Error(err), zap.String("ruleID", ruleID), zap.String("vendorCodeID", vendorCodeID))
		if delErr := adapter.DeleteAccessCode(ctx, lock.ExternalID, vendorCodeID); delErr != nil {
			return nil, fmt.Errorf("%w: vendor code %s on lock %s has no local record", keyway_errors.ErrConsistency, vendorCodeID, lockID)
		}
		return nil, err
	}

	stored, err := s.codeStore.GetCode(ctx, codeID)
	if err != nil {
		return nil, err
	}

	s.recordCodeEvent(ctx, rule, lockID, model.EventCodeAdded)

	logger.Info("Access code provisioned",
		zap.String("codeID", codeID),
		zap.String("ruleID", ruleID),
		zap.String("lockID", lockID),
		zap.Time("validUntil", validUntil))
	s.eventBus.Publish(ctx, util.EventCodeProvisioned, *stored)
	if err := s.notificationSvc.NotifyCodeIssued(ctx, *rule, *stored); err != nil {
		logger.Warn("Failed to queue code delivery notification", zap.Error(err), zap.String("codeID", codeID))
	}

	return &model.IssuedCode{Code: *stored, Plaintext: plaintext}, nil
}

// RevokeCode removes the code from the vendor lock and only then deactivates
// the local record. A vendor failure leaves the record ACTIVE so the stored
// state never claims a revocation the lock does not enforce.
func (s *ProvisioningService) RevokeCode(ctx context.Context, codeID string) error {
	code, err := s.codeStore.GetCode(ctx, codeID)
	if err != nil {
		return err
	}
	if !code.IsActive {
		return nil
	}

	lock, err := s.lockStore.GetLock(ctx, code.LockID)
	if err != nil {
		return err
	}
	adapter, err := s.registry.Resolve(lock.Platform)
	if err != nil {
		return err
	}

	if err := adapter.DeleteAccessCode(ctx, lock.ExternalID, code.VendorCodeID); err != nil {
		logger.Error("Vendor failed to delete access code; local record kept active",
			zap.Error(err), zap.String("codeID", codeID), zap.String("lockID", code.LockID))
		return err
	}

	if err := s.codeStore.DeactivateCode(ctx, codeID); err != nil {
		logger.Error("Vendor deleted the code but local deactivation failed",
			zap.Error(err), zap.String("codeID", codeID))
		return fmt.Errorf("%w: code %s deleted on vendor but still active locally", keyway_errors.ErrConsistency, codeID)
	}

	rule, err := s.ruleStore.GetRule(ctx, code.RuleID)
	if err == nil {
		s.recordCodeEvent(ctx, rule, code.LockID, model.EventCodeRemoved)
	}

	logger.Info("Access code revoked", zap.String("codeID", codeID), zap.String("ruleID", code.RuleID))
	s.eventBus.Publish(ctx, util.EventCodeRevoked, *code)
	if err := s.notificationSvc.NotifyCodeRevoked(ctx, *code); err != nil {
		logger.Warn("Failed to queue revocation notification", zap.Error(err), zap.String("codeID", codeID))
	}

	return nil
}

// RevokeActiveCodeForRule tears down the rule's live code if one exists.
// A rule without a live code is a no-op, not an error.
func (s *ProvisioningService) RevokeActiveCodeForRule(ctx context.Context, ruleID string) error {
	code, err := s.codeStore.GetActiveCodeForRule(ctx, ruleID)
	if err != nil {
		if errors.Is(err, keyway_errors.ErrCodeNotFound) {
			return nil
		}
		return err
	}
	return s.RevokeCode(ctx, code.ID)
}

// EnsureValidCode checks whether the rule's current code outlives the
// threshold and replaces it when it does not. Returns whether a new code
// was provisioned. Used by the renewal sweep after extending a rule.
func (s *ProvisioningService) EnsureValidCode(ctx context.Context, rule *model.AccessRule, expiryThreshold time.Duration) (bool, error) {
	current, err := s.codeStore.GetActiveCodeForRule(ctx, rule.ID)
	switch {
	case err == nil:
		if current.ValidUntil.After(time.Now().Add(expiryThreshold)) {
			return false, nil
		}
		if err := s.RevokeCode(ctx, current.ID); err != nil {
			return false, err
		}
		if _, err := s.ProvisionCode(ctx, rule.ID, current.LockID); err != nil {
			return false, err
		}
		return true, nil
	case errors.Is(err, keyway_errors.ErrCodeNotFound):
		lockID, err := s.pickLock(ctx, rule.PropertyID)
		if err != nil {
			return false, err
		}
		if _, err := s.ProvisionCode(ctx, rule.ID, lockID); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, err
	}
}

func (s *ProvisioningService) GetCode(ctx context.Context, codeID string) (*model.AccessCode, error) {
	return s.codeStore.GetCode(ctx, codeID)
}

func (s *ProvisioningService) ListCodesByRule(ctx context.Context, ruleID string) ([]*model.AccessCode, error) {
	return s.codeStore.ListCodesByRule(ctx, ruleID)
}

func (s *ProvisioningService) pickLock(ctx context.Context, propertyID string) (string, error) {
	locks, err := s.lockStore.ListLocks(ctx, model.LockSearchCriteria{PropertyID: propertyID, Limit: 1})
	if err != nil {
		return "", err
	}
	if len(locks) == 0 {
		return "", fmt.Errorf("%w: property %s has no registered lock", keyway_errors.ErrLockNotFound, propertyID)
	}
	return locks[0].ID, nil
}

// generatePasscode produces the plaintext for a new code. Short-stay tenant
// rules derive the digits from the grantee contact so guests recognize their
// own code; everything else draws from crypto/rand. Either way the result is
// checked against the lock's active codes and regenerated on collision.
func (s *ProvisioningService) generatePasscode(ctx context.Context, rule *model.AccessRule, lockID string) (string, error) {
	active, err := s.codeStore.ListActiveCodesByLock(ctx, lockID)
	if err != nil {
		return "", err
	}

	if rule.Term == model.TermShortTerm && rule.GranteeContact != "" {
		derived := digitsFromContact(rule.GranteeContact, s.policy.ShortStayDigits)
		if derived != "" && !collides(derived, active) {
			return derived, nil
		}
	}

	for attempt := 0; attempt < s.policy.MaxAttempts; attempt++ {
		candidate, err := randomDigits(s.policy.CodeLength)
		if err != nil {
			return "", err
		}
		if !collides(candidate, active) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: exhausted %d attempts on lock %s", keyway_errors.ErrCodeCollision, s.policy.MaxAttempts, lockID)
}

// collides compares a candidate against the digests of the lock's active
// codes. Plaintexts are never stored, so the comparison runs through bcrypt.
func collides(candidate string, active []*model.AccessCode) bool {
	for _, code := range active {
		if bcrypt.CompareHashAndPassword([]byte(code.CodeDigest), []byte(candidate)) == nil {
			return true
		}
	}
	return false
}

func randomDigits(length int) (string, error) {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("%w: random source failed", keyway_errors.ErrInternalServer)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// digitsFromContact takes the trailing digits of a phone-style contact.
// Returns "" when the contact does not carry enough digits.
func digitsFromContact(contact string, count int) string {
	var digits []byte
	for i := 0; i < len(contact); i++ {
		if contact[i] >= '0' && contact[i] <= '9' {
			digits = append(digits, contact[i])
		}
	}
	if len(digits) < count {
		return ""
	}
	return string(digits[len(digits)-count:])
}

// codeWindow derives the validity interval for a fresh code: open until the
// rule's next renewal date, clamped to the lease end when one is set. A
// short-stay code with a known lease start does not open immediately; it goes
// live the configured delivery lead ahead of the stay, so guests receive a
// code that only works shortly before check-in.
func (s *ProvisioningService) codeWindow(rule *model.AccessRule, now time.Time) (time.Time, time.Time) {
	from := now
	if rule.Term == model.TermShortTerm && rule.LeaseStart != nil {
		if opens := rule.LeaseStart.Add(-s.policy.DeliveryLead); opens.After(from) {
			from = opens
		}
	}
	until := rule.NextRenewalDate
	if rule.LeaseEnd != nil && rule.LeaseEnd.Before(until) {
		until = *rule.LeaseEnd
	}
	return from, until
}

// codeSpecFor shapes the vendor-side request. The vendor label carries the
// rule id so orphaned codes can be traced back during reconciliation.
func codeSpecFor(rule *model.AccessRule, plaintext string, validFrom, validUntil time.Time) platform.CodeSpec {
	return platform.CodeSpec{
		Name:       "keyway-" + rule.ID,
		Code:       plaintext,
		ValidFrom:  validFrom,
		ValidUntil: validUntil,
	}
}

func (s *ProvisioningService) recordCodeEvent(ctx context.Context, rule *model.AccessRule, lockID string, eventType model.AccessEventType) {
	logEntry := model.AccessLog{
		PropertyID:   rule.PropertyID,
		LockID:       lockID,
		Timestamp:    time.Now(),
		EventType:    eventType,
		AccessMethod: model.MethodRemote,
		AccessorID:   rule.GranteeID,
		AccessorType: rule.GranteeType,
		Success:      true,
	}
	if err := s.auditService.RecordAccess(ctx, logEntry); err != nil {
		logger.Warn("Failed to index code lifecycle event", zap.Error(err), zap.String("lockID", lockID))
	}
}
