// api/dao/rule_dao.go
package dao

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	keyway_errors "github.com/propsync/keyway/api/errors"
	logger "github.com/propsync/keyway/api/logging"
	"github.com/propsync/keyway/api/model"
)

type RuleDAO struct {
	Driver neo4j.Driver
}

func NewRuleDAO(driver neo4j.Driver) *RuleDAO {
	dao := &RuleDAO{Driver: driver}
	ctx := context.Background()
	if err := dao.EnsureUniqueConstraint(ctx); err != nil {
		logger.Fatal("Failed to ensure unique constraint on Rule ID", zap.Error(err))
	}
	return dao
}

// EnsureUniqueConstraint ensures the unique constraint on the Rule ID
func (dao *RuleDAO) EnsureUniqueConstraint(ctx context.Context) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        CREATE CONSTRAINT unique_rule_id IF NOT EXISTS
        FOR (r:RULE) REQUIRE r.id IS UNIQUE
        `
		_, err := transaction.Run(query, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create unique constraint: %w", err)
		}
		return nil, nil
	})
	return err
}

func ruleProps(rule model.AccessRule, now time.Time) map[string]interface{} {
	weekdaysJSON, _ := json.Marshal(rule.AllowedWeekdays)
	return map[string]interface{}{
		"ruleType":          string(rule.RuleType),
		"propertyId":        rule.PropertyID,
		"granteeId":         rule.GranteeID,
		"granteeType":       string(rule.GranteeType),
		"granteeContact":    rule.GranteeContact,
		"term":              string(rule.Term),
		"timeRestriction":   string(rule.TimeRestriction),
		"customStart":       rule.CustomStart,
		"customEnd":         rule.CustomEnd,
		"allowedWeekdays":   string(weekdaysJSON),
		"renewalPeriodDays": rule.RenewalPeriodDays,
		"nextRenewalDate":   formatTime(rule.NextRenewalDate),
		"leaseStart":        formatNullableTime(rule.LeaseStart),
		"leaseEnd":          formatNullableTime(rule.LeaseEnd),
		"renewalStatus":     string(rule.RenewalStatus),
		"isActive":          rule.IsActive,
		"version":           rule.Version,
		"updatedAt":         formatTime(now),
	}
}

// CreateRule creates a new rule node linked to the property it grants entry to.
func (dao *RuleDAO) CreateRule(ctx context.Context, rule model.AccessRule) (string, error) {
	start := time.Now()
	logger.Info("Creating access rule",
		zap.String("propertyID", rule.PropertyID),
		zap.String("granteeID", rule.GranteeID))
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}

	result, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		checkQuery := `
        MATCH (r:RULE {id: $id})
        RETURN r.id
        `
		checkResult, err := transaction.Run(checkQuery, map[string]interface{}{"id": rule.ID})
		if err != nil {
			return nil, keyway_errors.ErrDatabaseOperation
		}
		if checkResult.Next() {
			return nil, keyway_errors.ErrRuleConflict
		}

		createQuery := `
        MERGE (prop:PROPERTY {id: $propertyId})
        CREATE (r:RULE {id: $id})
        SET r += $props, r.createdAt = $createdAt
        CREATE (r)-[:GRANTS_ENTRY_TO]->(prop)
        RETURN r.id as id
        `
		now := time.Now()
		records, err := transaction.Run(createQuery, map[string]interface{}{
			"id":         rule.ID,
			"propertyId": rule.PropertyID,
			"props":      ruleProps(rule, now),
			"createdAt":  formatTime(now),
		})
		if err != nil {
			return nil, keyway_errors.ErrDatabaseOperation
		}
		if records.Next() {
			return records.Record().Values[0], nil
		}
		return nil, keyway_errors.ErrDatabaseOperation
	})
	if err != nil {
		logger.Error("Failed to create rule",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return "", err
	}

	logger.Info("Rule created successfully",
		zap.String("ruleID", result.(string)),
		zap.Duration("duration", time.Since(start)))
	return result.(string), nil
}

// UpdateRule saves the full rule, bumping the version counter. Concurrent
// renewals detect the bump through their compare-and-swap check.
func (dao *RuleDAO) UpdateRule(ctx context.Context, rule model.AccessRule) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (r:RULE {id: $id})
        SET r += $props, r.version = r.version + 1
        RETURN r.id
        `
		props := ruleProps(rule, time.Now())
		delete(props, "version")
		records, err := transaction.Run(query, map[string]interface{}{
			"id":    rule.ID,
			"props": props,
		})
		if err != nil {
			return nil, keyway_errors.ErrDatabaseOperation
		}
		if !records.Next() {
			return nil, keyway_errors.ErrRuleNotFound
		}
		return nil, nil
	})
	if err != nil {
		logger.Error("Failed to update rule", zap.Error(err), zap.String("ruleID", rule.ID))
		return err
	}
	return nil
}

// GetRule retrieves a rule by id.
func (dao *RuleDAO) GetRule(ctx context.Context, ruleID string) (*model.AccessRule, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	query := `
    MATCH (r:RULE {id: $id})
    RETURN r
    `
	result, err := session.Run(query, map[string]interface{}{"id": ruleID})
	if err != nil {
		return nil, fmt.Errorf("failed to execute get rule query: %w", err)
	}

	if result.Next() {
		node, ok := nodeFromRecord(result.Record())
		if !ok {
			return nil, keyway_errors.ErrDatabaseOperation
		}
		return mapNodeToRule(node), nil
	}

	logger.Warn("Rule not found", zap.String("ruleID", ruleID))
	return nil, keyway_errors.ErrRuleNotFound
}

// ListRules retrieves rules matching the criteria, newest first.
func (dao *RuleDAO) ListRules(ctx context.Context, criteria model.RuleSearchCriteria) ([]*model.AccessRule, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	query := `
    MATCH (r:RULE)
    WHERE ($propertyId = '' OR r.propertyId = $propertyId)
      AND ($granteeId = '' OR r.granteeId = $granteeId)
      AND ($granteeType = '' OR r.granteeType = $granteeType)
      AND ($ruleType = '' OR r.ruleType = $ruleType)
      AND ($status = '' OR r.renewalStatus = $status)
      AND (NOT $activeOnly OR r.isActive = true)
    RETURN r
    ORDER BY r.createdAt DESC
    SKIP $offset
    LIMIT $limit
    `
	limit := criteria.Limit
	if limit <= 0 {
		limit = 50
	}
	result, err := session.Run(query, map[string]interface{}{
		"propertyId":  criteria.PropertyID,
		"granteeId":   criteria.GranteeID,
		"granteeType": string(criteria.GranteeType),
		"ruleType":    string(criteria.RuleType),
		"status":      string(criteria.Status),
		"activeOnly":  criteria.ActiveOnly,
		"offset":      criteria.Offset,
		"limit":       limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute list rules query: %w", err)
	}

	var rules []*model.AccessRule
	for result.Next() {
		node, ok := nodeFromRecord(result.Record())
		if !ok {
			continue
		}
		rules = append(rules, mapNodeToRule(node))
	}
	return rules, nil
}

// ListDueForRenewal selects rules the sweep must consider: rules that are
// neither suspended nor expired, with a renewal date at or before the
// horizon. Lease-bounded rules are included so the sweep can expire them.
func (dao *RuleDAO) ListDueForRenewal(ctx context.Context, horizon time.Time) ([]*model.AccessRule, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	query := `
    MATCH (r:RULE)
    WHERE NOT r.renewalStatus IN ['SUSPENDED', 'EXPIRED']
      AND r.nextRenewalDate <= $horizon
    RETURN r
    ORDER BY r.nextRenewalDate ASC
    `
	result, err := session.Run(query, map[string]interface{}{
		"horizon": formatTime(horizon),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute renewal selection query: %w", err)
	}

	var rules []*model.AccessRule
	for result.Next() {
		node, ok := nodeFromRecord(result.Record())
		if !ok {
			continue
		}
		rules = append(rules, mapNodeToRule(node))
	}
	return rules, nil
}

// FindMatchingRules returns every rule scoped to the grantee at the property,
// regardless of status, newest first. The monitor needs inactive and expired
// rules too in order to classify violations.
func (dao *RuleDAO) FindMatchingRules(ctx context.Context, propertyID, granteeID string) ([]*model.AccessRule, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	query := `
    MATCH (r:RULE {propertyId: $propertyId, granteeId: $granteeId})
    RETURN r
    ORDER BY r.createdAt DESC
    `
	result, err := session.Run(query, map[string]interface{}{
		"propertyId": propertyID,
		"granteeId":  granteeID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute matching rules query: %w", err)
	}

	var rules []*model.AccessRule
	for result.Next() {
		node, ok := nodeFromRecord(result.Record())
		if !ok {
			continue
		}
		rules = append(rules, mapNodeToRule(node))
	}
	return rules, nil
}

// RenewCAS extends a rule's renewal date if and only if its version still
// matches the expected one. Returns false when another sweep got there first.
func (dao *RuleDAO) RenewCAS(ctx context.Context, ruleID string, expectedVersion int, nextRenewalDate time.Time, status model.RenewalStatus) (bool, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	applied, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (r:RULE {id: $id})
        WHERE r.version = $version
        SET r.nextRenewalDate = $next,
            r.renewalStatus = $status,
            r.version = r.version + 1,
            r.updatedAt = $now
        RETURN r.id
        `
		records, err := transaction.Run(query, map[string]interface{}{
			"id":      ruleID,
			"version": expectedVersion,
			"next":    formatTime(nextRenewalDate),
			"status":  string(status),
			"now":     formatTime(time.Now()),
		})
		if err != nil {
			return false, keyway_errors.ErrDatabaseOperation
		}
		return records.Next(), nil
	})
	if err != nil {
		return false, err
	}
	return applied.(bool), nil
}

// SetRenewalStatus moves a rule into the given lifecycle state.
func (dao *RuleDAO) SetRenewalStatus(ctx context.Context, ruleID string, status model.RenewalStatus) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (r:RULE {id: $id})
        SET r.renewalStatus = $status,
            r.version = r.version + 1,
            r.updatedAt = $now
        RETURN r.id
        `
		records, err := transaction.Run(query, map[string]interface{}{
			"id":     ruleID,
			"status": string(status),
			"now":    formatTime(time.Now()),
		})
		if err != nil {
			return nil, keyway_errors.ErrDatabaseOperation
		}
		if !records.Next() {
			return nil, keyway_errors.ErrRuleNotFound
		}
		return nil, nil
	})
	return err
}

// DeactivateRule suspends a rule. Rules are never hard-deleted.
func (dao *RuleDAO) DeactivateRule(ctx context.Context, ruleID string) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (r:RULE {id: $id})
        SET r.isActive = false,
            r.renewalStatus = 'SUSPENDED',
            r.version = r.version + 1,
            r.updatedAt = $now
        RETURN r.id
        `
		records, err := transaction.Run(query, map[string]interface{}{
			"id":  ruleID,
			"now": formatTime(time.Now()),
		})
		if err != nil {
			return nil, keyway_errors.ErrDatabaseOperation
		}
		if !records.Next() {
			return nil, keyway_errors.ErrRuleNotFound
		}
		return nil, nil
	})
	if err != nil {
		logger.Error("Failed to deactivate rule", zap.Error(err), zap.String("ruleID", ruleID))
		return err
	}

	logger.Info("Rule deactivated", zap.String("ruleID", ruleID))
	return nil
}

func mapNodeToRule(node neo4j.Node) *model.AccessRule {
	props := node.Props
	return &model.AccessRule{
		ID:                getString(props, "id"),
		RuleType:          model.RuleType(getString(props, "ruleType")),
		PropertyID:        getString(props, "propertyId"),
		GranteeID:         getString(props, "granteeId"),
		GranteeType:       model.GranteeType(getString(props, "granteeType")),
		GranteeContact:    getString(props, "granteeContact"),
		Term:              model.Term(getString(props, "term")),
		TimeRestriction:   model.TimeRestriction(getString(props, "timeRestriction")),
		CustomStart:       getString(props, "customStart"),
		CustomEnd:         getString(props, "customEnd"),
		AllowedWeekdays:   getIntSlice(props, "allowedWeekdays"),
		RenewalPeriodDays: getInt(props, "renewalPeriodDays"),
		NextRenewalDate:   getTime(props, "nextRenewalDate"),
		LeaseStart:        getNullableTime(props, "leaseStart"),
		LeaseEnd:          getNullableTime(props, "leaseEnd"),
		RenewalStatus:     model.RenewalStatus(getString(props, "renewalStatus")),
		IsActive:          getBool(props, "isActive"),
		Version:           getInt(props, "version"),
		CreatedAt:         getTime(props, "createdAt"),
		UpdatedAt:         getTime(props, "updatedAt"),
	}
}
