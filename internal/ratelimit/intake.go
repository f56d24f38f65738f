package ratelimit

import (
	"context"

	"github.com/brushline/leadrail/internal/config"
	"go.uber.org/zap"
)

const intakeKeyPrefix = "leadrail:ratelimit:intake:"

// IntakeLimiter throttles lead submissions per client IP. Without redis the
// limiter allows everything: an open intake form beats a lost lead. Redis
// errors fail open for the same reason.
type IntakeLimiter struct {
	bucket  *TokenBucket
	log     *zap.Logger
	enabled bool
	rate    float64
	burst   int
}

func NewIntakeLimiter(cfg config.Config, bucket *TokenBucket, log *zap.Logger) *IntakeLimiter {
	window := cfg.Intake.RateLimitWindow.Seconds()
	max := cfg.Intake.RateLimitMax
	rate := 0.0
	if window > 0 && max > 0 {
		rate = float64(max) / window
	}
	return &IntakeLimiter{
		bucket:  bucket,
		log:     log.Named("ratelimit"),
		enabled: cfg.Intake.RateLimitEnabled && bucket != nil && rate > 0,
		rate:    rate,
		burst:   max,
	}
}

// Allow reports whether one more submission from ip may proceed.
func (l *IntakeLimiter) Allow(ctx context.Context, ip string) bool {
	if l == nil || !l.enabled || ip == "" {
		return true
	}
	res, err := l.bucket.Allow(ctx, intakeKeyPrefix+ip, l.rate, l.burst)
	if err != nil {
		l.log.Warn("rate limit check failed, allowing request",
			zap.String("ip", ip), zap.Error(err))
		return true
	}
	return res.Allowed
}
