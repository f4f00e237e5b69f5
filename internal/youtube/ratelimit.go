package youtube

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	"github.com/benvon/tagtube/internal/models"
)

const (
	defaultMetadataRate = "10-S"
	limiterKey          = "youtube-metadata"
	limiterPrefix       = "tagtube_limiter"
	minLimiterWait      = 50 * time.Millisecond
)

// RateLimited throttles calls to an upstream provider. With a Redis store the
// budget is shared by every process using the same key.
type RateLimited struct {
	next    Provider
	limiter *limiter.Limiter
	logger  *zap.Logger
	now     func() time.Time
}

// NewRateLimited wraps next with a limiter using rate ("10-S", "600-M", ...).
// A nil redisClient keeps the counters in process memory.
func NewRateLimited(next Provider, rate string, redisClient *redis.Client, logger *zap.Logger) (*RateLimited, error) {
	if rate == "" {
		rate = defaultMetadataRate
	}
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse metadata rate %q: %w", rate, err)
	}

	var store limiter.Store
	if redisClient != nil {
		store, err = redisstore.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: limiterPrefix})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis limiter store: %w", err)
		}
	} else {
		store = memorystore.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          limiterPrefix,
			CleanUpInterval: limiter.DefaultCleanUpInterval,
		})
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimited{
		next:    next,
		limiter: limiter.New(store, parsed),
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Lookup waits for budget and then delegates. When the wait would outlast the
// context deadline the call fails fast with ErrRateLimited.
func (r *RateLimited) Lookup(ctx context.Context, videoID string) (*models.Video, error) {
	for {
		lctx, err := r.limiter.Get(ctx, limiterKey)
		if err != nil {
			return nil, fmt.Errorf("failed to check metadata rate limit: %w", err)
		}
		if !lctx.Reached {
			return r.next.Lookup(ctx, videoID)
		}

		wait := time.Unix(lctx.Reset, 0).Sub(r.now())
		// Reset has second granularity and may already look past
		if wait < minLimiterWait {
			wait = minLimiterWait
		}
		if deadline, ok := ctx.Deadline(); ok && r.now().Add(wait).After(deadline) {
			r.logger.Debug("metadata_rate_limit_exceeds_deadline", zap.Duration("wait", wait))
			return nil, ErrRateLimited
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

var _ Provider = (*RateLimited)(nil)
