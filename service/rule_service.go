// api/service/rule_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/propsync/keyway/api/engine"
	keyway_errors "github.com/propsync/keyway/api/errors"
	logger "github.com/propsync/keyway/api/logging"
	"github.com/propsync/keyway/api/model"
	"github.com/propsync/keyway/api/util"
)

type IRuleService interface {
	CreateRule(ctx context.Context, rule model.AccessRule, actorID string) (*model.AccessRule, error)
	UpdateRule(ctx context.Context, ruleID string, patch model.RulePatch, actorID string) (*model.AccessRule, error)
	GetRule(ctx context.Context, ruleID string) (*model.AccessRule, error)
	ListRules(ctx context.Context, criteria model.RuleSearchCriteria) ([]*model.AccessRule, error)
	ListExpiring(ctx context.Context, within time.Duration) ([]*model.AccessRule, error)
	DeactivateRule(ctx context.Context, ruleID string, actorID string) error
}

// codeRevoker is the slice of the provisioning service rule deactivation
// needs: a suspended rule must not leave a live code behind.
type codeRevoker interface {
	RevokeActiveCodeForRule(ctx context.Context, ruleID string) error
}

type RuleService struct {
	ruleStore       RuleStore
	revoker         codeRevoker
	validationUtil  *util.ValidationUtil
	cacheService    *util.CacheService
	notificationSvc *util.NotificationService
	eventBus        *util.EventBus
}

func NewRuleService(ruleStore RuleStore, revoker codeRevoker, validationUtil *util.ValidationUtil, cacheService *util.CacheService, notificationSvc *util.NotificationService, eventBus *util.EventBus) *RuleService {
	s := &RuleService{
		ruleStore:       ruleStore,
		revoker:         revoker,
		validationUtil:  validationUtil,
		cacheService:    cacheService,
		notificationSvc: notificationSvc,
		eventBus:        eventBus,
	}
	s.subscribeToEvents()
	return s
}

func (s *RuleService) subscribeToEvents() {
	if s.eventBus == nil {
		return
	}
	for _, eventType := range []string{util.EventRuleCreated, util.EventRuleUpdated, util.EventRuleDeactivated} {
		s.eventBus.Subscribe(eventType, func(ctx context.Context, event util.Event) error {
			rule, ok := event.Payload.(model.AccessRule)
			if !ok {
				return fmt.Errorf("unexpected payload for %s", event.Type)
			}
			return s.notificationSvc.NotifyRuleChange(ctx, event.Type, rule)
		})
	}
}

// CreateRule validates the rule, fills the renewal defaults for its type and
// term, and stores it as ACTIVE. Short-stay rules get no cadence; their
// expiry is pinned to the lease end.
func (s *RuleService) CreateRule(ctx context.Context, rule model.AccessRule, actorID string) (*model.AccessRule, error) {
	if rule.Term == "" {
		if rule.RuleType == model.RuleTypeTenant {
			rule.Term = model.TermLongTerm
		} else {
			rule.Term = model.TermRegular
		}
	}
	if rule.TimeRestriction == "" {
		rule.TimeRestriction = model.RestrictionNone
	}

	if err := s.validationUtil.ValidateRule(rule); err != nil {
		logger.Error("Invalid access rule data", zap.Error(err), zap.String("propertyID", rule.PropertyID))
		return nil, err
	}

	now := time.Now()
	if rule.RenewalPeriodDays == 0 {
		rule.RenewalPeriodDays = engine.DefaultRenewalPeriodDays(rule.RuleType, rule.Term)
	}
	if rule.InRenewalCycle() {
		rule.NextRenewalDate = now.AddDate(0, 0, rule.RenewalPeriodDays)
		if rule.LeaseEnd != nil && rule.NextRenewalDate.After(*rule.LeaseEnd) {
			rule.NextRenewalDate = *rule.LeaseEnd
		}
	} else if rule.LeaseEnd != nil {
		rule.NextRenewalDate = *rule.LeaseEnd
	} else {
		return nil, fmt.Errorf("%w: rule has neither a renewal cadence nor a lease end", keyway_errors.ErrInvalidRuleData)
	}
	rule.RenewalStatus = model.RenewalActive
	rule.IsActive = true

	ruleID, err := s.ruleStore.CreateRule(ctx, rule)
	if err != nil {
		logger.Error("Failed to create access rule", zap.Error(err), zap.String("propertyID", rule.PropertyID))
		return nil, err
	}

	created, err := s.ruleStore.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	if err := s.cacheService.SetRule(ctx, *created); err != nil {
		logger.Warn("Failed to cache access rule", zap.Error(err), zap.String("ruleID", ruleID))
	}

	logger.Info("Access rule created",
		zap.String("ruleID", ruleID),
		zap.String("propertyID", created.PropertyID),
		zap.String("granteeID", created.GranteeID),
		zap.String("actorID", actorID))
	s.eventBus.Publish(ctx, util.EventRuleCreated, *created)

	return created, nil
}

// UpdateRule applies the patch to the stored rule. The renewal date is left
// alone; only the sweep and explicit renewal move it.
func (s *RuleService) UpdateRule(ctx context.Context, ruleID string, patch model.RulePatch, actorID string) (*model.AccessRule, error) {
	rule, err := s.ruleStore.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if rule.RenewalStatus == model.RenewalSuspended {
		return nil, fmt.Errorf("%w: rule %s", keyway_errors.ErrRuleSuspended, ruleID)
	}

	applyPatch(rule, patch)

	if err := s.validationUtil.ValidateRule(*rule); err != nil {
		return nil, err
	}

	if err := s.ruleStore.UpdateRule(ctx, *rule); err != nil {
		logger.Error("Failed to update access rule", zap.Error(err), zap.String("ruleID", ruleID))
		return nil, err
	}

	updated, err := s.ruleStore.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	if err := s.cacheService.SetRule(ctx, *updated); err != nil {
		logger.Warn("Failed to refresh cached rule", zap.Error(err), zap.String("ruleID", ruleID))
	}

	logger.Info("Access rule updated", zap.String("ruleID", ruleID), zap.String("actorID", actorID))
	s.eventBus.Publish(ctx, util.EventRuleUpdated, *updated)

	return updated, nil
}

func applyPatch(rule *model.AccessRule, patch model.RulePatch) {
	if patch.TimeRestriction != nil {
		rule.TimeRestriction = *patch.TimeRestriction
	}
	if patch.CustomStart != nil {
		rule.CustomStart = *patch.CustomStart
	}
	if patch.CustomEnd != nil {
		rule.CustomEnd = *patch.CustomEnd
	}
	if patch.AllowedWeekdays != nil {
		rule.AllowedWeekdays = *patch.AllowedWeekdays
	}
	if patch.RenewalPeriodDays != nil {
		rule.RenewalPeriodDays = *patch.RenewalPeriodDays
	}
	if patch.LeaseStart != nil {
		rule.LeaseStart = patch.LeaseStart
	}
	if patch.LeaseEnd != nil {
		rule.LeaseEnd = patch.LeaseEnd
	}
	if patch.GranteeContact != nil {
		rule.GranteeContact = *patch.GranteeContact
	}
}

func (s *RuleService) GetRule(ctx context.Context, ruleID string) (*model.AccessRule, error) {
	if cached, err := s.cacheService.GetRule(ctx, ruleID); err == nil && cached != nil {
		return cached, nil
	}

	rule, err := s.ruleStore.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	if err := s.cacheService.SetRule(ctx, *rule); err != nil {
		logger.Warn("Failed to cache access rule", zap.Error(err), zap.String("ruleID", ruleID))
	}
	return rule, nil
}

func (s *RuleService) ListRules(ctx context.Context, criteria model.RuleSearchCriteria) ([]*model.AccessRule, error) {
	return s.ruleStore.ListRules(ctx, criteria)
}

// ListExpiring returns the rules whose renewal date falls inside the window,
// newest deadline last. Suspended and already-expired rules are excluded.
func (s *RuleService) ListExpiring(ctx context.Context, within time.Duration) ([]*model.AccessRule, error) {
	return s.ruleStore.ListDueForRenewal(ctx, time.Now().Add(within))
}

// DeactivateRule suspends the rule and tears down its live code first. If
// the vendor-side revocation fails the rule is left untouched so the stored
// state never claims a suspension the lock does not enforce.
func (s *RuleService) DeactivateRule(ctx context.Context, ruleID string, actorID string) error {
	rule, err := s.ruleStore.GetRule(ctx, ruleID)
	if err != nil {
		return err
	}
	if rule.RenewalStatus == model.RenewalSuspended {
		return nil
	}

	if err := s.revoker.RevokeActiveCodeForRule(ctx, ruleID); err != nil {
		if !errors.Is(err, keyway_errors.ErrCodeNotFound) {
			logger.Error("Failed to revoke code ahead of rule deactivation",
				zap.Error(err), zap.String("ruleID", ruleID))
			return err
		}
	}

	if err := s.ruleStore.DeactivateRule(ctx, ruleID); err != nil {
		logger.Error("Failed to deactivate access rule", zap.Error(err), zap.String("ruleID", ruleID))
		return err
	}

	if err := s.cacheService.DeleteRule(ctx, ruleID); err != nil {
		logger.Warn("Failed to evict cached rule", zap.Error(err), zap.String("ruleID", ruleID))
	}

	logger.Info("Access rule deactivated", zap.String("ruleID", ruleID), zap.String("actorID", actorID))
	rule.RenewalStatus = model.RenewalSuspended
	rule.IsActive = false
	s.eventBus.Publish(ctx, util.EventRuleDeactivated, *rule)

	return nil
}
