package api

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"hotelbooking/internal/config"
	"hotelbooking/internal/domain"
)

// rateLimiter keeps one token bucket per caller. With a shared limiter the
// budget is counted in Redis across instances and the local buckets only
// serve while Redis is unreachable.
type rateLimiter struct {
	cfg      config.APIRateLimitConfig
	shared   domain.RateLimiter
	limiters sync.Map // map[string]*rate.Limiter
	logger   *zerolog.Logger
}

func newRateLimiter(cfg config.APIRateLimitConfig, shared domain.RateLimiter, logger *zerolog.Logger) *rateLimiter {
	if !cfg.Shared {
		shared = nil
	}
	return &rateLimiter{cfg: cfg, shared: shared, logger: logger}
}

func (l *rateLimiter) allow(ctx context.Context, key string) bool {
	if l.cfg.RPS <= 0 {
		return true
	}

	if l.shared != nil {
		window := l.cfg.Window
		if window <= 0 {
			window = time.Second
		}
		limit := int(math.Ceil(l.cfg.RPS*window.Seconds())) + l.burst()
		allowed, err := l.shared.Allow(ctx, key, limit, window)
		if err == nil {
			return allowed
		}
		l.logger.Warn().Err(err).Msg("Shared rate limiter failed, using local limiter")
	}

	return l.getLimiter(key).Allow()
}

func (l *rateLimiter) burst() int {
	if l.cfg.Burst <= 0 {
		return 5
	}
	return l.cfg.Burst
}

func (l *rateLimiter) getLimiter(key string) *rate.Limiter {
	if v, ok := l.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}

	lim := rate.NewLimiter(rate.Limit(l.cfg.RPS), l.burst())
	actual, _ := l.limiters.LoadOrStore(key, lim)
	return actual.(*rate.Limiter)
}
