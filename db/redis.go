// api/db/redis.go
package db

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	logger "github.com/propsync/keyway/api/logging"
	"github.com/propsync/keyway/api/model"
)

var (
	RedisClient   *redis.Client
	encryptionKey []byte
)

func InitRedis() error {
	RedisClient = redis.NewClient(&redis.Options{
		Addr:         viper.GetString("redis.addr"),
		Password:     viper.GetString("redis.password"),
		DB:           viper.GetInt("redis.db"),
		DialTimeout:  viper.GetDuration("redis.dialTimeout"),
		ReadTimeout:  viper.GetDuration("redis.readTimeout"),
		WriteTimeout: viper.GetDuration("redis.writeTimeout"),
		PoolSize:     viper.GetInt("redis.poolSize"),
		PoolTimeout:  viper.GetDuration("redis.poolTimeout"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := RedisClient.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	encryptionKey = []byte(viper.GetString("redis.encryptionKey"))
	if len(encryptionKey) != 32 {
		return fmt.Errorf("invalid encryption key length: must be 32 bytes")
	}

	logger.Info("Successfully connected to Redis")
	return nil
}

func CloseRedis() {
	if RedisClient != nil {
		if err := RedisClient.Close(); err != nil {
			logger.Error("Error closing Redis connection", zap.Error(err))
		}
	}
}

func encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// CacheRule caches an access rule. Rules describe who can enter a property,
// so the cached copy is sealed with AES-GCM and a fresh nonce per record.
func CacheRule(ctx context.Context, rule *model.AccessRule) error {
	// Redis is optional; without it every cache op is a no-op and every
	// lookup a miss.
	if RedisClient == nil {
		return nil
	}
	ruleJSON, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("failed to marshal rule: %w", err)
	}

	encryptedRule, err := encrypt(ruleJSON)
	if err != nil {
		return fmt.Errorf("failed to encrypt rule: %w", err)
	}

	key := fmt.Sprintf("rule:%s", rule.ID)
	defaultTTL := viper.GetDuration("redis.defaultCacheTTL")
	err = RedisClient.Set(ctx, key, base64.StdEncoding.EncodeToString(encryptedRule), defaultTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to cache rule: %w", err)
	}

	logger.Debug("Rule cached successfully", zap.String("ruleID", rule.ID))
	return nil
}

func GetCachedRule(ctx context.Context, ruleID string) (*model.AccessRule, error) {
	if RedisClient == nil {
		return nil, nil
	}
	key := fmt.Sprintf("rule:%s", ruleID)
	encryptedRuleStr, err := RedisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		logger.Debug("Rule not found in cache", zap.String("ruleID", ruleID))
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get rule from cache: %w", err)
	}

	encryptedRule, err := base64.StdEncoding.DecodeString(encryptedRuleStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode rule: %w", err)
	}

	ruleJSON, err := decrypt(encryptedRule)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt rule: %w", err)
	}

	var rule model.AccessRule
	err = json.Unmarshal(ruleJSON, &rule)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule: %w", err)
	}

	logger.Debug("Rule retrieved from cache", zap.String("ruleID", ruleID))
	return &rule, nil
}

func DeleteCachedRule(ctx context.Context, ruleID string) error {
	if RedisClient == nil {
		return nil
	}
	key := fmt.Sprintf("rule:%s", ruleID)
	err := RedisClient.Del(ctx, key).Err()
	if err != nil {
		return fmt.Errorf("failed to delete rule from cache: %w", err)
	}
	logger.Debug("Rule deleted from cache", zap.String("ruleID", ruleID))
	return nil
}

func CacheLock(ctx context.Context, lock *model.SmartLock) error {
	if RedisClient == nil {
		return nil
	}
	lockJSON, err := json.Marshal(lock)
	if err != nil {
		return fmt.Errorf("failed to marshal lock: %w", err)
	}

	key := fmt.Sprintf("lock:%s", lock.ID)
	defaultTTL := viper.GetDuration("redis.defaultCacheTTL")
	err = RedisClient.Set(ctx, key, lockJSON, defaultTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to cache lock: %w", err)
	}

	logger.Debug("Lock cached successfully", zap.String("lockID", lock.ID))
	return nil
}

func GetCachedLock(ctx context.Context, lockID string) (*model.SmartLock, error) {
	if RedisClient == nil {
		return nil, nil
	}
	key := fmt.Sprintf("lock:%s", lockID)
	lockJSON, err := RedisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		logger.Debug("Lock not found in cache", zap.String("lockID", lockID))
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get lock from cache: %w", err)
	}

	var lock model.SmartLock
	err = json.Unmarshal([]byte(lockJSON), &lock)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal lock: %w", err)
	}

	logger.Debug("Lock retrieved from cache", zap.String("lockID", lockID))
	return &lock, nil
}

func DeleteCachedLock(ctx context.Context, lockID string) error {
	if RedisClient == nil {
		return nil
	}
	key := fmt.Sprintf("lock:%s", lockID)
	err := RedisClient.Del(ctx, key).Err()
	if err != nil {
		return fmt.Errorf("failed to delete lock from cache: %w", err)
	}
	logger.Debug("Lock deleted from cache", zap.String("lockID", lockID))
	return nil
}

func RateLimit(ctx context.Context, key string, limit int, per time.Duration) (bool, error) {
	if RedisClient == nil {
		return true, nil
	}
	pipe := RedisClient.Pipeline()
	now := time.Now().UnixNano()
	key = fmt.Sprintf("ratelimit:%s", key)

	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", now-(per.Nanoseconds())))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: now})
	pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, per)

	cmds, err := pipe.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to execute rate limit commands: %w", err)
	}

	count := cmds[2].(*redis.IntCmd).Val()
	allowed := count <= int64(limit)
	logger.Debug("Rate limit check",
		zap.String("key", key),
		zap.Int64("count", count),
		zap.Int("limit", limit),
		zap.Bool("allowed", allowed))
	return allowed, nil
}

// LockResource takes a best-effort distributed lock. The renewal sweep uses
// it so that overlapping cron triggers do not run concurrently.
func LockResource(ctx context.Context, resourceName string, ttl time.Duration) (bool, error) {
	if RedisClient == nil {
		return true, nil
	}
	key := fmt.Sprintf("lock:%s", resourceName)
	locked, err := RedisClient.SetNX(ctx, key, "locked", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	logger.Debug("Lock acquisition attempt",
		zap.String("resource", resourceName),
		zap.Bool("locked", locked))
	return locked, nil
}

func UnlockResource(ctx context.Context, resourceName string) error {
	if RedisClient == nil {
		return nil
	}
	key := fmt.Sprintf("lock:%s", resourceName)
	err := RedisClient.Del(ctx, key).Err()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	logger.Debug("Lock released", zap.String("resource", resourceName))
	return nil
}
