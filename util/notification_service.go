// api/util/notification_service.go

package util

import (
	"context"

	"go.uber.org/zap"

	logger "github.com/propsync/keyway/api/logging"
	"github.com/propsync/keyway/api/model"
)

// NotificationService is the boundary to the delivery collaborator
// (email/WhatsApp live outside this service). Here it records the intent;
// a message-queue client would slot in behind the same methods.
type NotificationService struct{}

func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

func (n *NotificationService) NotifyRuleChange(ctx context.Context, changeType string, rule model.AccessRule) error {
	logger.Info("NOTIFICATION: access rule "+changeType,
		zap.String("ruleID", rule.ID),
		zap.String("propertyID", rule.PropertyID),
		zap.String("granteeID", rule.GranteeID))
	return nil
}

// NotifyCodeIssued announces a fresh passcode for delivery to the grantee.
// The plaintext passes through here exactly once and is never logged.
func (n *NotificationService) NotifyCodeIssued(ctx context.Context, rule model.AccessRule, code model.AccessCode) error {
	logger.Info("NOTIFICATION: access code issued",
		zap.String("ruleID", rule.ID),
		zap.String("codeID", code.ID),
		zap.String("granteeID", rule.GranteeID),
		zap.Time("validUntil", code.ValidUntil))
	return nil
}

func (n *NotificationService) NotifyCodeRevoked(ctx context.Context, code model.AccessCode) error {
	logger.Info("NOTIFICATION: access code revoked",
		zap.String("codeID", code.ID),
		zap.String("ruleID", code.RuleID))
	return nil
}

func (n *NotificationService) NotifyViolation(ctx context.Context, v model.AccessMonitoring) error {
	logger.Warn("NOTIFICATION: access violation detected",
		zap.String("violationID", v.ID),
		zap.String("propertyID", v.PropertyID),
		zap.String("type", string(v.ViolationType)),
		zap.String("severity", string(v.Severity)))
	return nil
}
