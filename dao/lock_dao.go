// api/dao/lock_dao.go
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

type LockDAO struct {
	Driver neo4j.Driver
}

func NewLockDAO(driver neo4j.Driver) *LockDAO {
	dao := &LockDAO{Driver: driver}
	ctx := context.Background()
	if err := dao.EnsureUniqueConstraint(ctx); err != nil {
		logger.Fatal("Failed to ensure unique constraint on Lock ID", zap.Error(err))
	}
	return dao
}

// EnsureUniqueConstraint ensures the unique constraint on the Lock ID
func (dao *LockDAO) EnsureUniqueConstraint(ctx context.Context) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        CREATE CONSTRAINT unique_lock_id IF NOT EXISTS
        FOR (l:LOCK) REQUIRE l.id IS UNIQUE
        `
		_, err := transaction.Run(query, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create unique constraint: %w", err)
		}
		return nil, nil
	})
	return err
}

// CreateLock registers a lock to a property. The owning property node is
// merged so locks can be registered before the CRM pushes property details.
func (dao *LockDAO) CreateLock(ctx context.Context, lock model.SmartLock) (string, error) {
	start := time.Now()
	logger.Info("Registering smart lock",
		zap.String("platform", lock.Platform),
		zap.String("externalID", lock.ExternalID))
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	if lock.ID == "" {
		lock.ID = uuid.New().String()
	}

	result, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		checkQuery := `
        MATCH (l:LOCK {platform: $platform, externalId: $externalId})
        RETURN l.id
        `
		checkResult, err := transaction.Run(checkQuery, map[string]interface{}{
			"platform":   lock.Platform,
			"externalId": lock.ExternalID,
		})
		if err != nil {
			return nil, keyway_errors.ErrDatabaseOperation
		}
		if checkResult.Next() {
			return nil, keyway_errors.ErrLockConflict
		}

		createQuery := `
        MERGE (prop:PROPERTY {id: $propertyId})
        CREATE (l:LOCK {id: $id})
        SET l += $props
        CREATE (l)-[:INSTALLED_AT]->(prop)
        RETURN l.id as id
        `
		parameters := map[string]interface{}{
			"id":         lock.ID,
			"propertyId": lock.PropertyID,
			"props": map[string]interface{}{
				"propertyId":    lock.PropertyID,
				"platform":      lock.Platform,
				"externalId":    lock.ExternalID,
				"name":          lock.Name,
				"model":         lock.Model,
				"status":        string(lock.Status),
				"batteryLevel":  lock.BatteryLevel,
				"online":        lock.Online,
				"lastHeartbeat": formatNullableTime(lock.LastHeartbeat),
				"createdAt":     formatTime(time.Now()),
				"updatedAt":     formatTime(time.Now()),
			},
		}

		records, err := transaction.Run(createQuery, parameters)
		if err != nil {
			return nil, keyway_errors.ErrDatabaseOperation
		}
		if records.Next() {
			return records.Record().Values[0], nil
		}
		return nil, keyway_errors.ErrDatabaseOperation
	})
	if err != nil {
		logger.Error("Failed to register lock",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return "", err
	}

	logger.Info("Lock registered successfully",
		zap.String("lockID", result.(string)),
		zap.Duration("duration", time.Since(start)))
	return result.(string), nil
}

// GetLock retrieves a lock by internal id.
func (dao *LockDAO) GetLock(ctx context.Context, lockID string) (*model.SmartLock, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	query := `
    MATCH (l:LOCK {id: $id})
    RETURN l
    `
	result, err := session.Run(query, map[string]interface{}{"id": lockID})
	if err != nil {
		return nil, fmt.Errorf("failed to execute get lock query: %w", err)
	}

	if result.Next() {
		node, ok := nodeFromRecord(result.Record())
		if !ok {
			return nil, keyway_errors.ErrDatabaseOperation
		}
		return mapNodeToLock(node), nil
	}

	logger.Warn("Lock not found", zap.String("lockID", lockID))
	return nil, keyway_errors.ErrLockNotFound
}

// ListLocks retrieves locks matching the criteria, newest first.
func (dao *LockDAO) ListLocks(ctx context.Context, criteria model.LockSearchCriteria) ([]*model.SmartLock, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	query := `
    MATCH (l:LOCK)
    WHERE ($propertyId = '' OR l.propertyId = $propertyId)
      AND ($platform = '' OR l.platform = $platform)
      AND ($status = '' OR l.status = $status)
    RETURN l
    ORDER BY l.createdAt DESC
    SKIP $offset
    LIMIT $limit
    `
	limit := criteria.Limit
	if limit <= 0 {
		limit = 50
	}
	result, err := session.Run(query, map[string]interface{}{
		"propertyId": criteria.PropertyID,
		"platform":   criteria.Platform,
		"status":     string(criteria.Status),
		"offset":     criteria.Offset,
		"limit":      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute list locks query: %w", err)
	}

	var locks []*model.SmartLock
	for result.Next() {
		node, ok := nodeFromRecord(result.Record())
		if !ok {
			continue
		}
		locks = append(locks, mapNodeToLock(node))
	}
	return locks, nil
}

// UpdateState persists the outcome of a status sync or vendor event.
func (dao *LockDAO) UpdateState(ctx context.Context, lockID string, status model.LockStatus, batteryLevel int, online bool, heartbeat time.Time) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (l:LOCK {id: $id})
        SET l.status = $status,
            l.batteryLevel = $batteryLevel,
            l.online = $online,
            l.lastHeartbeat = $heartbeat,
            l.updatedAt = $now
        RETURN l.id
        `
		records, err := transaction.Run(query, map[string]interface{}{
			"id":           lockID,
			"status":       string(status),
			"batteryLevel": batteryLevel,
			"online":       online,
			"heartbeat":    formatTime(heartbeat),
			"now":          formatTime(time.Now()),
		})
		if err != nil {
			return nil, keyway_errors.ErrDatabaseOperation
		}
		if !records.Next() {
			return nil, keyway_errors.ErrLockNotFound
		}
		return nil, nil
	})
	if err != nil {
		logger.Error("Failed to update lock state", zap.Error(err), zap.String("lockID", lockID))
		return err
	}

	logger.Debug("Lock state updated",
		zap.String("lockID", lockID),
		zap.String("status", string(status)))
	return nil
}

// DeleteLock removes a lock that has no active codes. Locks referenced by
// active codes are never deleted.
func (dao *LockDAO) DeleteLock(ctx context.Context, lockID string) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		guardQuery := `
        MATCH (c:CODE {isActive: true})-[:STORED_ON]->(l:LOCK {id: $id})
        RETURN count(c) as active
        `
		guard, err := transaction.Run(guardQuery, map[string]interface{}{"id": lockID})
		if err != nil {
			return nil, keyway_errors.ErrDatabaseOperation
		}
		if guard.Next() {
			if active, ok := guard.Record().Values[0].(int64); ok && active > 0 {
				return nil, keyway_errors.ErrLockInUse
			}
		}

		deleteQuery := `
        MATCH (l:LOCK {id: $id})
        DETACH DELETE l
        RETURN count(l)
        `
		_, err = transaction.Run(deleteQuery, map[string]interface{}{"id": lockID})
		if err != nil {
			return nil, keyway_errors.ErrDatabaseOperation
		}
		return nil, nil
	})
	return err
}

func mapNodeToLock(node neo4j.Node) *model.SmartLock {
	props := node.Props
	return &model.SmartLock{
		ID:            getString(props, "id"),
		PropertyID:    getString(props, "propertyId"),
		Platform:      getString(props, "platform"),
		ExternalID:    getString(props, "externalId"),
		Name:          getString(props, "name"),
		Model:         getString(props, "model"),
		Status:        model.LockStatus(getString(props, "status")),
		BatteryLevel:  getInt(props, "batteryLevel"),
		Online:        getBool(props, "online"),
		LastHeartbeat: getNullableTime(props, "lastHeartbeat"),
		CreatedAt:     getTime(props, "createdAt"),
		UpdatedAt:     getTime(props, "updatedAt"),
	}
}
