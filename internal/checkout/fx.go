package checkout

import (
	"go.uber.org/fx"

	"github.com/lumeven/funnel/internal/checkout/domain"
	"github.com/lumeven/funnel/internal/checkout/mercadopago"
	"github.com/lumeven/funnel/internal/checkout/service"
	"github.com/lumeven/funnel/internal/checkout/stripe"
	"github.com/lumeven/funnel/internal/config"
	ledgerdomain "github.com/lumeven/funnel/internal/ledger/domain"
	"github.com/lumeven/funnel/internal/slots"
)

var Module = fx.Module("checkout",
	fx.Provide(func(cfg config.Config) *stripe.Client {
		return stripe.NewClient(cfg.Stripe)
	}),
	fx.Provide(func(cfg config.Config) *mercadopago.Client {
		return mercadopago.NewClient(cfg.MercadoPago)
	}),
	fx.Provide(func(s *stripe.Client, m *mercadopago.Client) map[string]domain.SessionBuilder {
		return map[string]domain.SessionBuilder{
			"stripe":      s,
			"mercadopago": m,
		}
	}),
	fx.Provide(func(c *stripe.Client) ledgerdomain.SessionResolver { return c }),
	fx.Provide(func(c *mercadopago.Client) domain.PaymentProcessor { return c }),
	fx.Provide(func(c *mercadopago.Client) domain.StatusClient { return c }),
	fx.Provide(func(c *mercadopago.Client) domain.PaymentFetcher { return c }),
	fx.Provide(func(c *slots.Counter) service.BatchSource { return c }),
	fx.Provide(service.NewService),
)
