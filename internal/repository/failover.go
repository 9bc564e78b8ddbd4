package repository

import (
	"context"
	"sync/atomic"
	"time"

	"tablebook/internal/domain"
	"tablebook/internal/models"

	"github.com/rs/zerolog"
)

// FailoverStateRepository prefers the primary store and degrades to the
// fallback when the primary errors. Recovery is attempted a minute after
// the last failure.
type FailoverStateRepository struct {
	primary   domain.StateRepository
	fallback  domain.StateRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck time.Time
}

func NewFailoverStateRepository(primary, fallback domain.StateRepository, logger *zerolog.Logger) *FailoverStateRepository {
	return &FailoverStateRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverStateRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary state repository failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck = time.Now()
}

func (r *FailoverStateRepository) GetState(ctx context.Context, token string) (*models.GuestState, error) {
	if !r.isDown.Load() {
		state, err := r.primary.GetState(ctx, token)
		if err == nil {
			return state, nil
		}
		r.markDown(err)
	}

	// Try to recover after 1 minute
	if r.isDown.Load() && time.Since(r.lastCheck) > time.Minute {
		state, err := r.primary.GetState(ctx, token)
		if err == nil {
			r.isDown.Store(false)
			return state, nil
		}
		r.lastCheck = time.Now()
	}

	return r.fallback.GetState(ctx, token)
}

func (r *FailoverStateRepository) SetState(ctx context.Context, state *models.GuestState) error {
	if !r.isDown.Load() {
		err := r.primary.SetState(ctx, state)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.SetState(ctx, state)
}

func (r *FailoverStateRepository) ClearState(ctx context.Context, token string) error {
	if !r.isDown.Load() {
		err := r.primary.ClearState(ctx, token)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.ClearState(ctx, token)
}

func (r *FailoverStateRepository) CheckRateLimit(ctx context.Context, token string, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() {
		allowed, err := r.primary.CheckRateLimit(ctx, token, limit, window)
		if err == nil {
			return allowed, nil
		}
		r.markDown(err)
	}

	return r.fallback.CheckRateLimit(ctx, token, limit, window)
}
