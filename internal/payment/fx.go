package payment

import (
	"go.uber.org/fx"

	"github.com/lumeven/funnel/internal/config"
	"github.com/lumeven/funnel/internal/payment/adapters"
	"github.com/lumeven/funnel/internal/payment/adapters/mercadopago"
	"github.com/lumeven/funnel/internal/payment/adapters/stripe"
	"github.com/lumeven/funnel/internal/payment/domain"
	"github.com/lumeven/funnel/internal/payment/repository"
	"github.com/lumeven/funnel/internal/payment/webhook"
)

var Module = fx.Module("payment.webhook",
	fx.Provide(repository.Provide),
	fx.Provide(func(cfg config.Config) *adapters.Registry {
		return adapters.NewRegistry(cfg,
			stripe.NewFactory(),
			mercadopago.NewFactory(),
		)
	}),
	fx.Provide(webhook.NewService),
	fx.Provide(func(s *webhook.Service) domain.Service { return s }),
)
