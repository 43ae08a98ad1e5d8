package rotation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dencamenew/vsuet-attendance/internal/store"
	"github.com/dencamenew/vsuet-attendance/pkg/crypto"
	"github.com/dencamenew/vsuet-attendance/pkg/logger"
	"github.com/dencamenew/vsuet-attendance/pkg/metrics"
)

// Rotator keeps every active session's token fresh on a fixed cadence and
// announces each replacement on the session's broadcast channel. One Rotator
// runs per process: created at startup, stopped at shutdown, never restarted.
type Rotator struct {
	store      store.Store
	interval   time.Duration
	tokenBytes int
	cron       *cron.Cron
	log        *zap.Logger
	generate   func(int) (string, error)
	started    bool
}

// Option customises the Rotator.
type Option func(*Rotator)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(r *Rotator) {
		if c != nil {
			r.cron = c
		}
	}
}

// WithGenerator overrides token generation, primarily for testing.
func WithGenerator(generate func(int) (string, error)) Option {
	return func(r *Rotator) {
		if generate != nil {
			r.generate = generate
		}
	}
}

// NewRotator constructs a Rotator rotating every interval with tokens of the
// given byte length.
func NewRotator(st store.Store, interval time.Duration, tokenBytes int, opts ...Option) *Rotator {
	rotator := &Rotator{
		store:      st,
		interval:   interval,
		tokenBytes: tokenBytes,
		log:        logger.WithModule("rotation"),
		generate:   crypto.GenerateToken,
	}

	for _, opt := range opts {
		opt(rotator)
	}

	if rotator.cron == nil {
		rotator.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return rotator
}

// Start registers the rotation job and launches the scheduler. Calling Start
// twice is a bug and is rejected.
func (r *Rotator) Start() error {
	if r.started {
		return errors.New("rotation: rotator already started")
	}

	spec := fmt.Sprintf("@every %s", r.interval)
	if _, err := r.cron.AddFunc(spec, func() {
		if err := r.RunOnce(context.Background()); err != nil {
			r.log.Warn("rotation tick finished with errors", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("rotation: schedule job: %w", err)
	}

	r.cron.Start()
	r.started = true
	r.log.Info("token rotation started", zap.Duration("interval", r.interval))
	return nil
}

// Stop halts the scheduler. The returned context is done once any in-flight
// tick has completed.
func (r *Rotator) Stop() context.Context {
	if r.cron == nil {
		return context.Background()
	}
	return r.cron.Stop()
}

// RunOnce performs a single rotation tick: enumerate all sessions, rotate and
// publish for every active one. A failure on one session never aborts the tick
// for the others; an unreachable store fails the whole tick and the next tick
// retries.
func (r *Rotator) RunOnce(ctx context.Context) error {
	ids, err := r.store.SessionIDs(ctx)
	if err != nil {
		return fmt.Errorf("rotation: enumerate sessions: %w", err)
	}

	var errs error
	for _, id := range ids {
		if err := r.rotateSession(ctx, id); err != nil {
			metrics.RotationErrors.Inc()
			r.log.Warn("session rotation failed",
				zap.String("session_id", id),
				zap.Error(err),
			)
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

func (r *Rotator) rotateSession(ctx context.Context, id string) error {
	active, err := r.store.IsActive(ctx, id)
	if errors.Is(err, store.ErrSessionNotFound) {
		// Session vanished between enumeration and the read; nothing to rotate.
		return nil
	}
	if err != nil {
		return err
	}
	if !active {
		// Closed sessions keep their last token frozen and publish nothing.
		return nil
	}

	token, err := r.generate(r.tokenBytes)
	if err != nil {
		return err
	}

	if err := r.store.SetToken(ctx, id, token); err != nil {
		return err
	}

	if err := r.store.PublishToken(ctx, id, token); err != nil {
		return err
	}

	metrics.TokenRotations.Inc()
	return nil
}
