package maintenance

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	iauth "github.com/conpanion/conpanion/internal/auth"
	"github.com/conpanion/conpanion/internal/services"
	"github.com/conpanion/conpanion/pkg/logger"
)

const (
	defaultSessionSpec = "@hourly"
	defaultTokenSpec   = "@daily"
)

// Cleaner coordinates background maintenance tasks: purging expired sessions,
// stale remember-me tokens, and expired verification/reset tokens. Expired
// tokens already fail the liveness predicate, so this is housekeeping rather
// than a correctness requirement.
type Cleaner struct {
	tokens   []*services.TokenService
	sessions *iauth.SessionService
	remember *iauth.RememberService
	cron     *cron.Cron
	log      *zap.Logger

	sessionSchedule string
	tokenSchedule   string
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

// WithSessionSchedule overrides the cron schedule for session cleanup.
func WithSessionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sessionSchedule = spec
		}
	}
}

// WithTokenSchedule overrides the cron schedule for token cleanup.
func WithTokenSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.tokenSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency
// results in the corresponding cleanup job being skipped.
func NewCleaner(sessions *iauth.SessionService, remember *iauth.RememberService, tokens []*services.TokenService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		tokens:          tokens,
		sessions:        sessions,
		remember:        remember,
		sessionSchedule: defaultSessionSpec,
		tokenSchedule:   defaultTokenSpec,
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

// Start registers cleanup jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.sessions != nil || c.remember != nil {
		if _, err := c.cron.AddFunc(c.sessionSchedule, func() {
			c.runSessionCleanup(context.Background())
		}); err != nil {
			return err
		}
	}

	if len(c.tokens) > 0 {
		if _, err := c.cron.AddFunc(c.tokenSchedule, func() {
			c.runTokenCleanup(context.Background())
		}); err != nil {
			return err
		}
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

// RunOnce executes all configured cleanup routines sequentially. Used in tests
// and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.sessions != nil {
		if _, err := c.sessions.CleanupExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.remember != nil {
		if _, err := c.remember.CleanupExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	for _, tokenService := range c.tokens {
		if tokenService == nil {
			continue
		}
		if _, err := tokenService.CleanupExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

func (c *Cleaner) runSessionCleanup(ctx context.Context) {
	if c.sessions != nil {
		if removed, err := c.sessions.CleanupExpired(ctx); err != nil {
			c.log.Warn("session cleanup failed", zap.Error(err))
		} else if removed > 0 {
			c.log.Info("expired sessions removed", zap.Int64("count", removed))
		}
	}

	if c.remember != nil {
		if removed, err := c.remember.CleanupExpired(ctx); err != nil {
			c.log.Warn("remember token cleanup failed", zap.Error(err))
		} else if removed > 0 {
			c.log.Info("expired remember tokens removed", zap.Int64("count", removed))
		}
	}
}

func (c *Cleaner) runTokenCleanup(ctx context.Context) {
	for _, tokenService := range c.tokens {
		if tokenService == nil {
			continue
		}
		if removed, err := tokenService.CleanupExpired(ctx); err != nil {
			c.log.Warn("token cleanup failed",
				zap.String("purpose", tokenService.Purpose()),
				zap.Error(err),
			)
		} else if removed > 0 {
			c.log.Info("expired tokens removed",
				zap.String("purpose", tokenService.Purpose()),
				zap.Int64("count", removed),
			)
		}
	}
}
