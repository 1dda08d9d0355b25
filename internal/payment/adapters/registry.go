package adapters

import (
	"strings"

	"github.com/lumeven/funnel/internal/config"
	"github.com/lumeven/funnel/internal/payment/domain"
)

// Registry holds one factory per provider and the webhook credentials each
// adapter needs, so callers resolve adapters by provider name alone.
type Registry struct {
	factories map[string]domain.AdapterFactory
	secrets   map[string]string
}

func NewRegistry(cfg config.Config, factories ...domain.AdapterFactory) *Registry {
	registry := &Registry{
		factories: map[string]domain.AdapterFactory{},
		secrets: map[string]string{
			"stripe":      cfg.Stripe.WebhookSecret,
			"mercadopago": cfg.MercadoPago.WebhookSecret,
		},
	}
	for _, factory := range factories {
		if factory == nil {
			continue
		}
		provider := strings.ToLower(strings.TrimSpace(factory.Provider()))
		if provider == "" {
			continue
		}
		registry.factories[provider] = factory
	}
	return registry
}

func (r *Registry) ProviderExists(provider string) bool {
	if r == nil {
		return false
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	_, ok := r.factories[provider]
	return ok
}

func (r *Registry) NewAdapter(provider string) (domain.PaymentAdapter, error) {
	if r == nil {
		return nil, domain.ErrProviderNotFound
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	factory, ok := r.factories[provider]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return factory.NewAdapter(domain.AdapterConfig{
		Provider: provider,
		Config:   map[string]any{"webhook_secret": r.secrets[provider]},
	})
}
