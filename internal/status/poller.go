package status

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/lumeven/funnel/internal/checkout/domain"
)

// Module provides the status poller.
var Module = fx.Module("status",
	fx.Provide(NewPoller),
)

// terminal statuses across providers; polling stops on the first one.
var terminalStatuses = map[string]bool{
	"approved":  true,
	"rejected":  true,
	"cancelled": true,
	"refunded":  true,
}

type Params struct {
	fx.In

	Log    *zap.Logger
	Client domain.StatusClient
}

// Poller re-fetches a payment status on a fixed interval until a terminal
// status or context cancellation. It keeps no state beyond the last
// observed value.
type Poller struct {
	log    *zap.Logger
	client domain.StatusClient
	cache  *resultCache
}

func NewPoller(p Params) *Poller {
	return &Poller{
		log:    p.Log.Named("status.poller"),
		client: p.Client,
		cache:  newResultCache(),
	}
}

// Lookup is a single read-through status fetch. Results are cached briefly,
// terminal ones longer, since browsers poll the same payment in a loop.
func (p *Poller) Lookup(ctx context.Context, paymentID string) (*domain.StatusResult, error) {
	if cached, ok := p.cache.get(paymentID); ok {
		return cached, nil
	}
	result, err := p.client.PaymentStatus(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	p.cache.set(paymentID, result)
	return result, nil
}

// Poll blocks until the payment reaches a terminal status or ctx is done.
// The last observed status is returned alongside ctx.Err() on cancellation.
func (p *Poller) Poll(ctx context.Context, paymentID string, interval time.Duration) (*domain.StatusResult, error) {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	var last *domain.StatusResult
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		result, err := p.client.PaymentStatus(ctx, paymentID)
		if err != nil {
			return last, err
		}
		last = result
		if terminalStatuses[result.Status] {
			p.log.Info("payment reached terminal status",
				zap.String("payment_id", paymentID),
				zap.String("status", result.Status),
			)
			return result, nil
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}
