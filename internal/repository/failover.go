package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"fitstudio/internal/domain"
	"fitstudio/internal/models"

	"github.com/rs/zerolog"
)

// FailoverThrottleRepository prefers the shared limiter and falls back to a
// local one while the primary is failing.
type FailoverThrottleRepository struct {
	primary    domain.AttemptLimiter
	fallback   domain.AttemptLimiter
	logger     *zerolog.Logger
	retryAfter time.Duration

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverThrottleRepository(primary, fallback domain.AttemptLimiter, logger *zerolog.Logger) *FailoverThrottleRepository {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverThrottleRepository{
		primary:    primary,
		fallback:   fallback,
		logger:     logger,
		retryAfter: models.ThrottleFallbackRetry * time.Second,
	}
}

func (r *FailoverThrottleRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() || r.shouldRetry() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			if r.isDown.Swap(false) {
				r.logger.Info().Msg("primary throttle repository recovered")
			}
			return allowed, nil
		}
		if !r.isDown.Swap(true) {
			r.logger.Error().Err(err).Msg("primary throttle repository failed, falling back to memory")
		}
		r.markChecked()
	}

	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}

// Down reports whether calls are currently served by the fallback.
func (r *FailoverThrottleRepository) Down() bool {
	return r.isDown.Load()
}

func (r *FailoverThrottleRepository) shouldRetry() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Since(r.lastCheck) > r.retryAfter
}

func (r *FailoverThrottleRepository) markChecked() {
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}
