// api/dao/code_dao.go
package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	keyway_errors "github.com/propsync/keyway/api/errors"
	logger "github.com/propsync/keyway/api/logging"
	"github.com/propsync/keyway/api/model"
)

type CodeDAO struct {
	Driver neo4j.Driver
}

func NewCodeDAO(driver neo4j.Driver) *CodeDAO {
	dao := &CodeDAO{Driver: driver}
	ctx := context.Background()
	if err := dao.EnsureUniqueConstraint(ctx); err != nil {
		logger.Fatal("Failed to ensure unique constraint on Code ID", zap.Error(err))
	}
	return dao
}

// EnsureUniqueConstraint ensures the unique constraint on the Code ID
func (dao *CodeDAO) EnsureUniqueConstraint(ctx context.Context) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        CREATE CONSTRAINT unique_code_id IF NOT EXISTS
        FOR (c:CODE) REQUIRE c.id IS UNIQUE
        `
		_, err := transaction.Run(query, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create unique constraint: %w", err)
		}
		return nil, nil
	})
	return err
}

// CreateCode persists a provisioned code and links it to its rule and lock.
// Called only after the vendor accepted the passcode.
func (dao *CodeDAO) CreateCode(ctx context.Context, code model.AccessCode) (string, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	if code.ID == "" {
		code.ID = uuid.New().String()
	}

	result, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (r:RULE {id: $ruleId})
        MATCH (l:LOCK {id: $lockId})
        CREATE (c:CODE {id: $id})
        SET c += $props
        CREATE (r)-[:ISSUED]->(c)
        CREATE (c)-[:STORED_ON]->(l)
        RETURN c.id as id
        `
		now := time.Now()
		records, err := transaction.Run(query, map[string]interface{}{
			"id":     code.ID,
			"ruleId": code.RuleID,
			"lockId": code.LockID,
			"props": map[string]interface{}{
				"ruleId":       code.RuleID,
				"lockId":       code.LockID,
				"vendorCodeId": code.VendorCodeID,
				"codeDigest":   code.CodeDigest,
				"validFrom":    formatTime(code.ValidFrom),
				"validUntil":   formatTime(code.ValidUntil),
				"usageCount":   code.UsageCount,
				"isActive":     code.IsActive,
				"createdAt":    formatTime(now),
				"updatedAt":    formatTime(now),
			},
		})
		if err != nil {
			return nil, keyway_errors.ErrDatabaseOperation
		}
		if records.Next() {
			return records.Record().Values[0], nil
		}
		// Either the rule or the lock does not exist.
		return nil, keyway_errors.ErrRuleNotFound
	})
	if err != nil {
		logger.Error("Failed to persist access code",
			zap.Error(err),
			zap.String("ruleID", code.RuleID))
		return "", err
	}

	logger.Info("Access code persisted",
		zap.String("codeID", result.(string)),
		zap.String("ruleID", code.RuleID))
	return result.(string), nil
}

// GetCode retrieves a code by id.
func (dao *CodeDAO) GetCode(ctx context.Context, codeID string) (*model.AccessCode, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	query := `
    MATCH (c:CODE {id: $id})
    RETURN c
    `
	result, err := session.Run(query, map[string]interface{}{"id": codeID})
	if err != nil {
		return nil, fmt.Errorf("failed to execute get code query: %w", err)
	}

	if result.Next() {
		node, ok := nodeFromRecord(result.Record())
		if !ok {
			return nil, keyway_errors.ErrDatabaseOperation
		}
		return mapNodeToCode(node), nil
	}
	return nil, keyway_errors.ErrCodeNotFound
}

// ListCodesByRule retrieves all codes a rule has ever issued, newest first.
func (dao *CodeDAO) ListCodesByRule(ctx context.Context, ruleID string) ([]*model.AccessCode, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	query := `
    MATCH (c:CODE {ruleId: $ruleId})
    RETURN c
    ORDER BY c.createdAt DESC
    `
	result, err := session.Run(query, map[string]interface{}{"ruleId": ruleID})
	if err != nil {
		return nil, fmt.Errorf("failed to execute list codes query: %w", err)
	}

	var codes []*model.AccessCode
	for result.Next() {
		node, ok := nodeFromRecord(result.Record())
		if !ok {
			continue
		}
		codes = append(codes, mapNodeToCode(node))
	}
	return codes, nil
}

// ListActiveCodesByLock retrieves the live codes on a lock, used for
// collision checks during provisioning.
func (dao *CodeDAO) ListActiveCodesByLock(ctx context.Context, lockID string) ([]*model.AccessCode, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	query := `
    MATCH (c:CODE {lockId: $lockId, isActive: true})
    RETURN c
    `
	result, err := session.Run(query, map[string]interface{}{"lockId": lockID})
	if err != nil {
		return nil, fmt.Errorf("failed to execute active codes query: %w", err)
	}

	var codes []*model.AccessCode
	for result.Next() {
		node, ok := nodeFromRecord(result.Record())
		if !ok {
			continue
		}
		codes = append(codes, mapNodeToCode(node))
	}
	return codes, nil
}

// GetActiveCodeForRule returns the rule's current live code, or
// ErrCodeNotFound when it has none.
func (dao *CodeDAO) GetActiveCodeForRule(ctx context.Context, ruleID string) (*model.AccessCode, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	query := `
    MATCH (c:CODE {ruleId: $ruleId, isActive: true})
    RETURN c
    ORDER BY c.createdAt DESC
    LIMIT 1
    `
	result, err := session.Run(query, map[string]interface{}{"ruleId": ruleID})
	if err != nil {
		return nil, fmt.Errorf("failed to execute active code query: %w", err)
	}

	if result.Next() {
		node, ok := nodeFromRecord(result.Record())
		if !ok {
			return nil, keyway_errors.ErrDatabaseOperation
		}
		return mapNodeToCode(node), nil
	}
	return nil, keyway_errors.ErrCodeNotFound
}

// DeactivateCode marks a code inactive. Called only after the vendor-side
// delete succeeded.
func (dao *CodeDAO) DeactivateCode(ctx context.Context, codeID string) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (c:CODE {id: $id})
        SET c.isActive = false,
            c.updatedAt = $now
        RETURN c.id
        `
		records, err := transaction.Run(query, map[string]interface{}{
			"id":  codeID,
			"now": formatTime(time.Now()),
		})
		if err != nil {
			return nil, keyway_errors.ErrDatabaseOperation
		}
		if !records.Next() {
			return nil, keyway_errors.ErrCodeNotFound
		}
		return nil, nil
	})
	return err
}

// IncrementUsage bumps the usage counter after an observed keypad entry.
func (dao *CodeDAO) IncrementUsage(ctx context.Context, codeID string) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (c:CODE {id: $id})
        SET c.usageCount = c.usageCount + 1,
            c.updatedAt = $now
        RETURN c.id
        `
		records, err := transaction.Run(query, map[string]interface{}{
			"id":  codeID,
			"now": formatTime(time.Now()),
		})
		if err != nil {
			return nil, keyway_errors.ErrDatabaseOperation
		}
		if !records.Next() {
			return nil, keyway_errors.ErrCodeNotFound
		}
		return nil, nil
	})
	return err
}

func mapNodeToCode(node neo4j.Node) *model.AccessCode {
	props := node.Props
	return &model.AccessCode{
		ID:           getString(props, "id"),
		RuleID:       getString(props, "ruleId"),
		LockID:       getString(props, "lockId"),
		VendorCodeID: getString(props, "vendorCodeId"),
		CodeDigest:   getString(props, "codeDigest"),
		ValidFrom:    getTime(props, "validFrom"),
		ValidUntil:   getTime(props, "validUntil"),
		UsageCount:   getInt(props, "usageCount"),
		IsActive:     getBool(props, "isActive"),
		CreatedAt:    getTime(props, "createdAt"),
		UpdatedAt:    getTime(props, "updatedAt"),
	}
}
