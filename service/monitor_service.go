// api/service/monitor_service.go
package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/propsync/keyway/api/audit"
	"github.com/propsync/keyway/api/config"
	"github.com/propsync/keyway/api/engine"
	logger "github.com/propsync/keyway/api/logging"
	"github.com/propsync/keyway/api/model"
	"github.com/propsync/keyway/api/util"
)

type IMonitorService interface {
	OnAccessEvent(ctx context.Context, entry model.AccessLog) (*model.AccessMonitoring, error)
	QueryAccessLogs(ctx context.Context, from, to time.Time, propertyID, lockID string) ([]model.AccessLog, error)
	QueryViolations(ctx context.Context, from, to time.Time, propertyID string, severity model.Severity) ([]model.AccessMonitoring, error)
}

type MonitorService struct {
	ruleStore       RuleStore
	lockStore       LockStore
	codeStore       CodeStore
	auditService    audit.Service
	evaluator       *engine.Evaluator
	validationUtil  *util.ValidationUtil
	notificationSvc *util.NotificationService
	eventBus        *util.EventBus
	severities      map[model.ViolationType]model.Severity
}

func NewMonitorService(ruleStore RuleStore, lockStore LockStore, codeStore CodeStore, auditService audit.Service, evaluator *engine.Evaluator, validationUtil *util.ValidationUtil, notificationSvc *util.NotificationService, eventBus *util.EventBus, severities map[model.ViolationType]model.Severity) *MonitorService {
	return &MonitorService{
		ruleStore:       ruleStore,
		lockStore:       lockStore,
		codeStore:       codeStore,
		auditService:    auditService,
		evaluator:       evaluator,
		validationUtil:  validationUtil,
		notificationSvc: notificationSvc,
		eventBus:        eventBus,
		severities:      severities,
	}
}

// SeveritiesFromConfig reads the per-violation severity ranking.
func SeveritiesFromConfig() map[model.ViolationType]model.Severity {
	read := func(key string, fallback model.Severity) model.Severity {
		if v := config.GetString("monitoring.severity." + key); v != "" {
			return model.Severity(v)
		}
		return fallback
	}
	return map[model.ViolationType]model.Severity{
		model.ViolationUnknownAccessor:   read("UNKNOWN_ACCESSOR", model.SeverityHigh),
		model.ViolationExpiredRule:       read("EXPIRED_RULE_USED", model.SeverityMedium),
		model.ViolationSuspendedRule:     read("RULE_SUSPENDED_BUT_USED", model.SeverityHigh),
		model.ViolationOutsideTimeWindow: read("OUTSIDE_TIME_WINDOW", model.SeverityLow),
		model.ViolationOutsideWeekday:    read("OUTSIDE_WEEKDAY", model.SeverityLow),
	}
}

// OnAccessEvent ingests one vendor-reported event: it is indexed verbatim,
// device health events update the stored lock state, and entry events are
// checked against the property's rules. Detection is a post-hoc audit
// signal; it never blocks or reverses the physical event.
func (s *MonitorService) OnAccessEvent(ctx context.Context, entry model.AccessLog) (*model.AccessMonitoring, error) {
	if err := s.validationUtil.ValidateAccessEvent(entry); err != nil {
		return nil, err
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	if err := s.auditService.RecordAccess(ctx, entry); err != nil {
		logger.Error("Failed to index access event", zap.Error(err), zap.String("lockID", entry.LockID))
		return nil, err
	}

	s.applyDeviceEvent(ctx, entry)

	if !isEntryEvent(entry.EventType) {
		return nil, nil
	}

	violation := s.classify(ctx, entry)
	if violation == nil {
		return nil, nil
	}

	if err := s.auditService.RecordViolation(ctx, *violation); err != nil {
		logger.Error("Failed to index access violation", zap.Error(err), zap.String("accessLogID", entry.ID))
		return nil, err
	}

	logger.Warn("Access violation detected",
		zap.String("violationID", violation.ID),
		zap.String("type", string(violation.ViolationType)),
		zap.String("severity", string(violation.Severity)),
		zap.String("propertyID", violation.PropertyID))
	s.eventBus.Publish(ctx, util.EventViolationDetected, *violation)
	if err := s.notificationSvc.NotifyViolation(ctx, *violation); err != nil {
		logger.Warn("Failed to queue violation notification", zap.Error(err), zap.String("violationID", violation.ID))
	}

	return violation, nil
}

// applyDeviceEvent folds device health events into the stored lock record.
func (s *MonitorService) applyDeviceEvent(ctx context.Context, entry model.AccessLog) {
	lock, err := s.lockStore.GetLock(ctx, entry.LockID)
	if err != nil {
		logger.Warn("Access event references unknown lock", zap.String("lockID", entry.LockID))
		return
	}

	var status model.LockStatus
	online := lock.Online
	switch entry.EventType {
	case model.EventBatteryLow:
		status = model.LockStatusLowBattery
	case model.EventDeviceOffline:
		status = model.LockStatusOffline
		online = false
	case model.EventDeviceOnline:
		status = model.LockStatusUnknown
		online = true
	default:
		return
	}

	if err := s.lockStore.UpdateState(ctx, entry.LockID, status, lock.BatteryLevel, online, entry.Timestamp); err != nil {
		logger.Warn("Failed to record device health event", zap.Error(err), zap.String("lockID", entry.LockID))
	}
}

func isEntryEvent(t model.AccessEventType) bool {
	switch t {
	case model.EventUnlock, model.EventLock, model.EventUnlockFailed, model.EventLockFailed:
		return true
	}
	return false
}

// classify matches the event against the accessor's rules at the property.
// If any active rule permits the access there is no violation; otherwise the
// highest-precedence rule determines the violation class.
func (s *MonitorService) classify(ctx context.Context, entry model.AccessLog) *model.AccessMonitoring {
	if entry.AccessorID == "" {
		return s.violation(entry, "", model.ViolationUnknownAccessor,
			"access event carries no accessor identity")
	}

	rules, err := s.ruleStore.FindMatchingRules(ctx, entry.PropertyID, entry.AccessorID)
	if err != nil {
		logger.Error("Failed to resolve rules for access event",
			zap.Error(err), zap.String("propertyID", entry.PropertyID), zap.String("accessorID", entry.AccessorID))
		return nil
	}
	if len(rules) == 0 {
		return s.violation(entry, "", model.ViolationUnknownAccessor,
			fmt.Sprintf("no rule grants %s entry to property %s", entry.AccessorID, entry.PropertyID))
	}

	sortByPrecedence(rules)

	var actives, expired, suspended []*model.AccessRule
	for _, rule := range rules {
		switch {
		case rule.RenewalStatus == model.RenewalExpired:
			expired = append(expired, rule)
		case !rule.IsActive || rule.RenewalStatus == model.RenewalSuspended:
			suspended = append(suspended, rule)
		default:
			actives = append(actives, rule)
		}
	}

	var firstDeny *engine.Decision
	var firstDenied *model.AccessRule
	for _, rule := range actives {
		decision := s.evaluator.Evaluate(rule, entry.Timestamp)
		if decision.Allowed() {
			s.touchCodeUsage(ctx, rule.ID, entry)
			return nil
		}
		if firstDeny == nil {
			firstDeny = &decision
			firstDenied = rule
		}
	}

	switch {
	case firstDeny != nil:
		violationType := model.ViolationOutsideTimeWindow
		if firstDeny.Reason == engine.ReasonOutsideWeekday {
			violationType = model.ViolationOutsideWeekday
		}
		return s.violation(entry, firstDenied.ID, violationType,
			fmt.Sprintf("rule %s denies access at %s: %s", firstDenied.ID, entry.Timestamp.Format(time.RFC3339), firstDeny.Reason))
	case len(expired) > 0:
		return s.violation(entry, expired[0].ID, model.ViolationExpiredRule,
			fmt.Sprintf("rule %s expired before this access", expired[0].ID))
	default:
		return s.violation(entry, suspended[0].ID, model.ViolationSuspendedRule,
			fmt.Sprintf("rule %s is suspended but was used", suspended[0].ID))
	}
}

// touchCodeUsage bumps the usage counter of the rule's live code when the
// event came through the keypad. Best effort.
func (s *MonitorService) touchCodeUsage(ctx context.Context, ruleID string, entry model.AccessLog) {
	if entry.AccessMethod != model.MethodKeypad || !entry.Success {
		return
	}
	code, err := s.codeStore.GetActiveCodeForRule(ctx, ruleID)
	if err != nil {
		return
	}
	if err := s.codeStore.IncrementUsage(ctx, code.ID); err != nil {
		logger.Warn("Failed to bump code usage", zap.Error(err), zap.String("codeID", code.ID))
	}
}

func (s *MonitorService) violation(entry model.AccessLog, ruleID string, violationType model.ViolationType, description string) *model.AccessMonitoring {
	severity, ok := s.severities[violationType]
	if !ok {
		severity = model.SeverityMedium
	}
	return &model.AccessMonitoring{
		ID:            uuid.New().String(),
		AccessLogID:   entry.ID,
		RuleID:        ruleID,
		PropertyID:    entry.PropertyID,
		ViolationType: violationType,
		Severity:      severity,
		Description:   description,
		DetectedAt:    time.Now(),
	}
}

// sortByPrecedence orders rules for classification: tenant grants outrank
// provider grants, newer rules outrank older ones.
func sortByPrecedence(rules []*model.AccessRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].RuleType != rules[j].RuleType {
			return rules[i].RuleType == model.RuleTypeTenant
		}
		return rules[i].CreatedAt.After(rules[j].CreatedAt)
	})
}

func (s *MonitorService) QueryAccessLogs(ctx context.Context, from, to time.Time, propertyID, lockID string) ([]model.AccessLog, error) {
	return s.auditService.QueryAccessLogs(ctx, from, to, propertyID, lockID)
}

func (s *MonitorService) QueryViolations(ctx context.Context, from, to time.Time, propertyID string, severity model.Severity) ([]model.AccessMonitoring, error) {
	return s.auditService.QueryViolations(ctx, from, to, propertyID, severity)
}
