package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"hotelbooking/internal/domain"
)

// Backend is a reference cache that can also count rate limits.
type Backend interface {
	domain.ReferenceCache
	domain.RateLimiter
	InvalidatePrefix(ctx context.Context, prefix string) error
}

var (
	_ Backend = (*RedisCache)(nil)
	_ Backend = (*MemoryCache)(nil)
	_ Backend = (*FailoverCache)(nil)
)

const recoverAfter = time.Minute

// FailoverCache serves from primary until a call fails, then from fallback.
// The primary is retried once a minute.
type FailoverCache struct {
	primary   Backend
	fallback  Backend
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
	now       func() time.Time
}

func NewFailoverCache(primary, fallback Backend, logger *zerolog.Logger) *FailoverCache {
	return &FailoverCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

// usePrimary reports whether the next call should go to the primary.
func (f *FailoverCache) usePrimary() bool {
	if !f.isDown.Load() {
		return true
	}
	return f.now().Sub(time.Unix(0, f.lastCheck.Load())) > recoverAfter
}

func (f *FailoverCache) primaryFailed(err error) {
	if !f.isDown.Swap(true) {
		f.logger.Error().Err(err).Msg("Primary cache failed, falling back to memory")
	}
	f.lastCheck.Store(f.now().UnixNano())
}

func (f *FailoverCache) primaryOK() {
	if f.isDown.Swap(false) {
		f.logger.Info().Msg("Primary cache recovered")
	}
}

func (f *FailoverCache) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	if f.usePrimary() {
		ok, err := f.primary.Get(ctx, key, dst)
		if err == nil {
			f.primaryOK()
			return ok, nil
		}
		f.primaryFailed(err)
	}
	return f.fallback.Get(ctx, key, dst)
}

func (f *FailoverCache) Set(ctx context.Context, key string, value interface{}) error {
	if f.usePrimary() {
		err := f.primary.Set(ctx, key, value)
		if err == nil {
			f.primaryOK()
			return nil
		}
		f.primaryFailed(err)
	}
	return f.fallback.Set(ctx, key, value)
}

// Invalidate clears the fallback as well as the primary.
func (f *FailoverCache) Invalidate(ctx context.Context, keys ...string) error {
	if err := f.fallback.Invalidate(ctx, keys...); err != nil {
		return err
	}
	if f.usePrimary() {
		if err := f.primary.Invalidate(ctx, keys...); err != nil {
			f.primaryFailed(err)
			return err
		}
		f.primaryOK()
	}
	return nil
}

func (f *FailoverCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	if err := f.fallback.InvalidatePrefix(ctx, prefix); err != nil {
		return err
	}
	if f.usePrimary() {
		if err := f.primary.InvalidatePrefix(ctx, prefix); err != nil {
			f.primaryFailed(err)
			return err
		}
		f.primaryOK()
	}
	return nil
}

func (f *FailoverCache) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if f.usePrimary() {
		allowed, err := f.primary.Allow(ctx, key, limit, window)
		if err == nil {
			f.primaryOK()
			return allowed, nil
		}
		f.primaryFailed(err)
	}
	return f.fallback.Allow(ctx, key, limit, window)
}
