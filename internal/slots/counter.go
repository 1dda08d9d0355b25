package slots

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/lumeven/funnel/internal/config"
	"github.com/lumeven/funnel/internal/ratelimit"
)

const keySlotBatch = "slots:batch:%s"

var (
	ErrUnknownBatch  = errors.New("unknown_batch")
	ErrNoActiveBatch = errors.New("no_active_batch")
)

// Module provides the slot counter.
var Module = fx.Module("slots",
	fx.Provide(NewCounter),
)

type Params struct {
	fx.In

	Log    *zap.Logger
	Client *redis.Client
	Cfg    config.Config
}

// Counter tracks remaining inventory per sales batch in redis.
//
// Decrement is a single atomic DECRBY round trip; the clamp that follows is a
// best-effort correction and is not atomic with it, so the stored value can
// transiently dip below zero under concurrent buyers. Callers never observe
// a negative value.
type Counter struct {
	log     *zap.Logger
	client  *redis.Client
	locks   *ratelimit.Locker
	batches []config.BatchConfig
	index   map[string]config.BatchConfig
}

func NewCounter(p Params) *Counter {
	index := make(map[string]config.BatchConfig, len(p.Cfg.Batches))
	for _, batch := range p.Cfg.Batches {
		index[batch.ID] = batch
	}
	return &Counter{
		log:     p.Log.Named("slots"),
		client:  p.Client,
		locks:   ratelimit.NewLocker(p.Client),
		batches: p.Cfg.Batches,
		index:   index,
	}
}

// Get returns the remaining slots, initializing the key to the batch
// capacity on first access.
func (c *Counter) Get(ctx context.Context, batchID string) (int64, error) {
	batch, ok := c.index[strings.TrimSpace(batchID)]
	if !ok {
		return 0, ErrUnknownBatch
	}

	key := fmt.Sprintf(keySlotBatch, batch.ID)
	if err := c.client.SetNX(ctx, key, batch.Capacity, 0).Err(); err != nil {
		return 0, err
	}

	value, err := c.client.Get(ctx, key).Int64()
	if err != nil {
		return 0, err
	}
	return c.clamp(ctx, key, value), nil
}

// Decrement consumes one slot and returns the new remaining count, floored
// at zero.
func (c *Counter) Decrement(ctx context.Context, batchID string) (int64, error) {
	batch, ok := c.index[strings.TrimSpace(batchID)]
	if !ok {
		return 0, ErrUnknownBatch
	}

	key := fmt.Sprintf(keySlotBatch, batch.ID)
	if err := c.client.SetNX(ctx, key, batch.Capacity, 0).Err(); err != nil {
		return 0, err
	}

	value, err := c.client.DecrBy(ctx, key, 1).Result()
	if err != nil {
		return 0, err
	}
	return c.clamp(ctx, key, value), nil
}

// Reset sets the remaining count for a batch, for manual batch management.
func (c *Counter) Reset(ctx context.Context, batchID string, value int64) error {
	batch, ok := c.index[strings.TrimSpace(batchID)]
	if !ok {
		return ErrUnknownBatch
	}
	if value < 0 {
		value = 0
	}
	return c.client.Set(ctx, fmt.Sprintf(keySlotBatch, batch.ID), value, 0).Err()
}

// Active returns the first configured batch with remaining slots. The batch
// price drives checkout when the request does not carry an amount.
func (c *Counter) Active(ctx context.Context) (config.BatchConfig, int64, error) {
	for _, batch := range c.batches {
		remaining, err := c.Get(ctx, batch.ID)
		if err != nil {
			return config.BatchConfig{}, 0, err
		}
		if remaining > 0 {
			return batch, remaining, nil
		}
	}
	return config.BatchConfig{}, 0, ErrNoActiveBatch
}

// Batch returns the static configuration for a batch id.
func (c *Counter) Batch(batchID string) (config.BatchConfig, bool) {
	batch, ok := c.index[strings.TrimSpace(batchID)]
	return batch, ok
}

func (c *Counter) clamp(ctx context.Context, key string, value int64) int64 {
	if value >= 0 {
		return value
	}
	// Several concurrent buyers can observe the dip at once; the lock keeps
	// them from issuing a stampede of repair writes for the same key.
	held, err := c.locks.WithLock(ctx, key+":repair", 2*time.Second, func(ctx context.Context) error {
		return c.client.Set(ctx, key, 0, 0).Err()
	})
	if err != nil {
		c.log.Warn("slot clamp write failed", zap.String("key", key), zap.Error(err))
	} else if !held {
		c.log.Debug("slot clamp repair already held", zap.String("key", key))
	}
	return 0
}
