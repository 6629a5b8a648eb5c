// api/scheduler/sweeper.go
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/propsync/keyway/api/config"
	"github.com/propsync/keyway/api/db"
	"github.com/propsync/keyway/api/engine"
	logger "github.com/propsync/keyway/api/logging"
	"github.com/propsync/keyway/api/model"
	"github.com/propsync/keyway/api/util"
)

const sweepLockName = "renewal-sweep"

// RuleSweepStore is the rule persistence slice the sweep needs. The renewal
// write is compare-and-set on the rule version so overlapping sweeps extend
// a rule at most once.
type RuleSweepStore interface {
	ListDueForRenewal(ctx context.Context, horizon time.Time) ([]*model.AccessRule, error)
	RenewCAS(ctx context.Context, ruleID string, expectedVersion int, nextRenewalDate time.Time, status model.RenewalStatus) (bool, error)
	SetRenewalStatus(ctx context.Context, ruleID string, status model.RenewalStatus) error
}

// CodeProvisioner replaces or tears down the codes attached to swept rules.
type CodeProvisioner interface {
	EnsureValidCode(ctx context.Context, rule *model.AccessRule, expiryThreshold time.Duration) (bool, error)
	RevokeActiveCodeForRule(ctx context.Context, ruleID string) error
}

// ResourceLocker serializes sweeps across instances.
type ResourceLocker interface {
	Lock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, name string) error
}

// RedisLocker backs ResourceLocker with the shared Redis SETNX lock.
type RedisLocker struct{}

func (RedisLocker) Lock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	return db.LockResource(ctx, name, ttl)
}

func (RedisLocker) Unlock(ctx context.Context, name string) error {
	return db.UnlockResource(ctx, name)
}

// SweepConfig carries the sweep tunables.
type SweepConfig struct {
	Lookahead           time.Duration
	CodeExpiryThreshold time.Duration
	LockTTL             time.Duration
}

// SweepConfigFromDefaults reads the sweep tunables set by config defaults.
func SweepConfigFromDefaults() SweepConfig {
	return SweepConfig{
		Lookahead:           config.GetDuration("renewal.lookahead"),
		CodeExpiryThreshold: config.GetDuration("renewal.codeExpiryThreshold"),
		LockTTL:             config.GetDuration("renewal.sweepLockTTL"),
	}
}

// Failure records one rule the sweep could not process.
type Failure struct {
	RuleID string
	Reason string
}

// Result summarizes one sweep pass.
type Result struct {
	Skipped      bool
	RenewedCount int
	ExpiredCount int
	LostRaces    int
	Failed       []Failure
}

// Sweeper extends rules approaching their renewal date and expires the ones
// that slipped past it. Safe to trigger from overlapping schedules: the
// distributed lock and the per-rule CAS make repeated passes idempotent.
type Sweeper struct {
	ruleStore   RuleSweepStore
	provisioner CodeProvisioner
	locker      ResourceLocker
	eventBus    *util.EventBus
	cfg         SweepConfig
}

func NewSweeper(ruleStore RuleSweepStore, provisioner CodeProvisioner, locker ResourceLocker, eventBus *util.EventBus, cfg SweepConfig) *Sweeper {
	if cfg.Lookahead == 0 {
		cfg.Lookahead = 168 * time.Hour
	}
	if cfg.CodeExpiryThreshold == 0 {
		cfg.CodeExpiryThreshold = 72 * time.Hour
	}
	if cfg.LockTTL == 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	return &Sweeper{
		ruleStore:   ruleStore,
		provisioner: provisioner,
		locker:      locker,
		eventBus:    eventBus,
		cfg:         cfg,
	}
}

// Sweep runs one pass over the rules due inside the lookahead window. A
// failing rule is reported and skipped; it never aborts the pass.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (Result, error) {
	var result Result

	if s.locker != nil {
		acquired, err := s.locker.Lock(ctx, sweepLockName, s.cfg.LockTTL)
		if err != nil {
			return result, err
		}
		if !acquired {
			logger.Info("Renewal sweep already running elsewhere, skipping")
			result.Skipped = true
			return result, nil
		}
		defer func() {
			if err := s.locker.Unlock(ctx, sweepLockName); err != nil {
				logger.Warn("Failed to release sweep lock", zap.Error(err))
			}
		}()
	}

	due, err := s.ruleStore.ListDueForRenewal(ctx, now.Add(s.cfg.Lookahead))
	if err != nil {
		return result, err
	}

	for _, rule := range due {
		if err := s.sweepOne(ctx, rule, now, &result); err != nil {
			logger.Error("Renewal sweep failed for rule",
				zap.Error(err), zap.String("ruleID", rule.ID))
			result.Failed = append(result.Failed, Failure{RuleID: rule.ID, Reason: err.Error()})
		}
	}

	logger.Info("Renewal sweep finished",
		zap.Int("due", len(due)),
		zap.Int("renewed", result.RenewedCount),
		zap.Int("expired", result.ExpiredCount),
		zap.Int("lostRaces", result.LostRaces),
		zap.Int("failed", len(result.Failed)))
	return result, nil
}

// sweepOne renews a rule inside its lookahead window. A rule past its date
// is still renewed when it can be: a late sweep must not expire grants it
// was supposed to extend. Only rules with nothing left to extend expire.
func (s *Sweeper) sweepOne(ctx context.Context, rule *model.AccessRule, now time.Time, result *Result) error {
	switch engine.NextRenewalState(rule, now, s.cfg.Lookahead) {
	case model.RenewalExpired:
		if !s.renewable(rule, now) {
			return s.expire(ctx, rule, result)
		}
		return s.renewOrMarkPending(ctx, rule, now, result)
	case model.RenewalPending:
		if !s.renewable(rule, now) {
			return nil
		}
		return s.renewOrMarkPending(ctx, rule, now, result)
	default:
		return nil
	}
}

// renewOrMarkPending attempts the renewal; when the renewal itself did not
// land, the rule is persisted as PENDING_RENEWAL so it shows up in
// expiring-rule reports until a later sweep succeeds. The version bump tells
// a failed extension apart from a failed code refresh after a won CAS.
func (s *Sweeper) renewOrMarkPending(ctx context.Context, rule *model.AccessRule, now time.Time, result *Result) error {
	version := rule.Version
	err := s.renew(ctx, rule, now, result)
	if err != nil && rule.Version == version && rule.RenewalStatus != model.RenewalPending {
		if markErr := s.ruleStore.SetRenewalStatus(ctx, rule.ID, model.RenewalPending); markErr != nil {
			logger.Warn("Failed to mark rule pending renewal",
				zap.String("ruleID", rule.ID), zap.Error(markErr))
		}
	}
	return err
}

// renewable reports whether the rule has a cadence to extend by and a lease
// that has not already run out.
func (s *Sweeper) renewable(rule *model.AccessRule, now time.Time) bool {
	if !rule.InRenewalCycle() {
		return false
	}
	return rule.LeaseEnd == nil || now.Before(*rule.LeaseEnd)
}

// renew extends the rule by its cadence and refreshes its code when the
// current one would not survive the expiry threshold. The CAS losing simply
// means a concurrent sweep already renewed the rule.
func (s *Sweeper) renew(ctx context.Context, rule *model.AccessRule, now time.Time, result *Result) error {
	next := engine.Renewed(rule, now)
	if rule.LeaseEnd != nil && next.After(*rule.LeaseEnd) {
		next = *rule.LeaseEnd
	}
	if !next.After(rule.NextRenewalDate) {
		// Already capped at the lease end; nothing left to extend.
		return nil
	}

	applied, err := s.ruleStore.RenewCAS(ctx, rule.ID, rule.Version, next, model.RenewalActive)
	if err != nil {
		return err
	}
	if !applied {
		result.LostRaces++
		return nil
	}

	rule.NextRenewalDate = next
	rule.Version++
	if _, err := s.provisioner.EnsureValidCode(ctx, rule, s.cfg.CodeExpiryThreshold); err != nil {
		return err
	}

	result.RenewedCount++
	logger.Info("Access rule renewed",
		zap.String("ruleID", rule.ID),
		zap.Time("nextRenewalDate", next))
	if s.eventBus != nil {
		s.eventBus.Publish(ctx, util.EventRuleRenewed, *rule)
	}
	return nil
}

// expire moves a past-due rule to EXPIRED and tears down its live code.
func (s *Sweeper) expire(ctx context.Context, rule *model.AccessRule, result *Result) error {
	if err := s.provisioner.RevokeActiveCodeForRule(ctx, rule.ID); err != nil {
		return err
	}
	if err := s.ruleStore.SetRenewalStatus(ctx, rule.ID, model.RenewalExpired); err != nil {
		return err
	}
	result.ExpiredCount++
	logger.Info("Access rule expired", zap.String("ruleID", rule.ID))
	return nil
}
