package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/lumeven/funnel/internal/config"
)

const keyCheckoutIP = "checkout:create:ip:%s"

// Module provides the checkout rate limiter.
var Module = fx.Module("ratelimit",
	fx.Provide(NewCheckoutLimiter),
)

// CheckoutLimiter throttles session/payment creation per client IP. Disabled
// limiters allow everything.
type CheckoutLimiter struct {
	enabled bool
	bucket  *TokenBucket
	rate    float64
	burst   int
}

func NewCheckoutLimiter(cfg config.Config, client *redis.Client) *CheckoutLimiter {
	if !cfg.RateLimit.Enabled {
		return &CheckoutLimiter{}
	}
	return &CheckoutLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    cfg.RateLimit.CheckoutRate,
		burst:   cfg.RateLimit.CheckoutBurst,
	}
}

func (l *CheckoutLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *CheckoutLimiter) Allow(ctx context.Context, ip string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = "unknown"
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyCheckoutIP, ip), l.rate, l.burst)
}
