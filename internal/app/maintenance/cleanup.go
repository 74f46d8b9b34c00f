package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/recmind-app/recmind-server/internal/models"
	"github.com/recmind-app/recmind-server/pkg/logger"
)

const (
	defaultCodeSpec            = "@hourly"
	defaultStaleAccountSpec    = "@daily"
	defaultStaleAccountMaxDays = 30
)

// Cleaner runs the background maintenance jobs: expiring stale verification
// codes and pruning unverified accounts that never completed registration.
type Cleaner struct {
	db   *gorm.DB
	cron *cron.Cron
	now  func() time.Time
	log  *zap.Logger

	codeSchedule    string
	accountSchedule string
	staleAfterDays  int
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithCodeSchedule overrides the cron specification for verification-code cleanup.
func WithCodeSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.codeSchedule = spec
		}
	}
}

// WithStaleAccountSchedule overrides the cron specification for unverified-account pruning.
func WithStaleAccountSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.accountSchedule = spec
		}
	}
}

// WithStaleAccountMaxDays adjusts how long unverified accounts are kept.
func WithStaleAccountMaxDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.staleAfterDays = days
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults.
func NewCleaner(db *gorm.DB, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:              db,
		now:             time.Now,
		codeSchedule:    defaultCodeSpec,
		accountSchedule: defaultStaleAccountSpec,
		staleAfterDays:  defaultStaleAccountMaxDays,
		log:             logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the cleanup jobs and launches the scheduler.
func (c *Cleaner) Start() error {
	if c.db == nil {
		return nil
	}

	if _, err := c.cron.AddFunc(c.codeSchedule, func() {
		if _, err := CleanupExpiredCodes(context.Background(), c.db, c.now()); err != nil {
			c.log.Warn("verification code cleanup failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	if _, err := c.cron.AddFunc(c.accountSchedule, func() {
		cutoff := c.now().AddDate(0, 0, -c.staleAfterDays)
		if _, err := CleanupStaleAccounts(context.Background(), c.db, cutoff); err != nil {
			c.log.Warn("stale account cleanup failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all cleanup routines sequentially. Used in tests and
// during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.db == nil {
		return nil
	}

	var errs error

	if _, err := CleanupExpiredCodes(ctx, c.db, c.now()); err != nil {
		errs = multierr.Append(errs, err)
	}

	cutoff := c.now().AddDate(0, 0, -c.staleAfterDays)
	if _, err := CleanupStaleAccounts(ctx, c.db, cutoff); err != nil {
		errs = multierr.Append(errs, err)
	}

	return errs
}

// CleanupExpiredCodes clears verification codes whose lifetime has lapsed so
// an expired code can never be mistaken for a pending one.
func CleanupExpiredCodes(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("cleanup codes: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result := db.WithContext(ctx).
		Model(&models.User{}).
		Where("verification_code <> '' AND code_expires_at < ?", now).
		Updates(map[string]any{
			"verification_code": "",
			"code_expires_at":   nil,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("cleanup codes: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CleanupStaleAccounts deletes local accounts that never verified their email
// before the cutoff.
func CleanupStaleAccounts(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("cleanup accounts: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result := db.WithContext(ctx).
		Where("verified = ? AND provider = ? AND created_at < ?", false, models.ProviderLocal, cutoff).
		Delete(&models.User{})
	if result.Error != nil {
		return 0, fmt.Errorf("cleanup accounts: %w", result.Error)
	}
	return result.RowsAffected, nil
}
