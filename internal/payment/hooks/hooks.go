package hooks

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	checkoutdomain "github.com/lumeven/funnel/internal/checkout/domain"
	ledgerservice "github.com/lumeven/funnel/internal/ledger/service"
	"github.com/lumeven/funnel/internal/payment/domain"
	"github.com/lumeven/funnel/internal/providers/email"
	"github.com/lumeven/funnel/internal/slots"
)

// Module registers the funnel's webhook event handlers.
var Module = fx.Module("payment.hooks",
	fx.Invoke(Register),
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Webhook  domain.Service
	Ledger   *ledgerservice.Service
	Slots    *slots.Counter
	Email    email.Provider
	Payments checkoutdomain.PaymentFetcher
}

// Register wires the confirmed-sale side effects: ledger row, slot
// decrement and confirmation email. Handlers run under at-least-once
// delivery; everything downstream of RecordOrder is keyed on whether the
// row was newly written.
func Register(p Params) {
	h := &handlers{
		log:      p.Log.Named("payment.hooks"),
		ledger:   p.Ledger,
		slots:    p.Slots,
		email:    p.Email,
		payments: p.Payments,
	}

	p.Webhook.Register(domain.EventTypeCheckoutCompleted, h.handleCheckoutCompleted)
	p.Webhook.Register(domain.EventTypePaymentSucceeded, h.handlePaymentSucceeded)
	p.Webhook.Register(domain.EventTypePaymentUpdated, h.handlePaymentUpdated)
}

type handlers struct {
	log      *zap.Logger
	ledger   *ledgerservice.Service
	slots    *slots.Counter
	email    email.Provider
	payments checkoutdomain.PaymentFetcher
}

func (h *handlers) handleCheckoutCompleted(ctx context.Context, event *domain.Event) error {
	return h.confirmSale(ctx, ledgerservice.NewOrder{
		Name:       event.PayerName,
		Email:      event.PayerEmail,
		Phone:      event.PayerPhone,
		TotalPrice: event.Amount,
		PaymentID:  event.PaymentID,
		Batch:      event.BatchID,
	})
}

func (h *handlers) handlePaymentSucceeded(ctx context.Context, event *domain.Event) error {
	// Backstop for flows where checkout.session.completed never arrived.
	return h.confirmSale(ctx, ledgerservice.NewOrder{
		Email:      event.PayerEmail,
		TotalPrice: event.Amount,
		PaymentID:  event.PaymentID,
		Batch:      event.BatchID,
	})
}

// handlePaymentUpdated serves Mercado Pago notifications, which carry only
// the payment id; the full payment is fetched before acting.
func (h *handlers) handlePaymentUpdated(ctx context.Context, event *domain.Event) error {
	details, err := h.payments.PaymentDetails(ctx, event.PaymentID)
	if err != nil {
		return fmt.Errorf("fetch payment %s: %w", event.PaymentID, err)
	}
	if details.Status != "approved" {
		h.log.Info("payment not approved yet",
			zap.String("payment_id", details.PaymentID),
			zap.String("status", details.Status),
		)
		return nil
	}

	return h.confirmSale(ctx, ledgerservice.NewOrder{
		Name:       details.PayerName,
		Email:      details.PayerEmail,
		TotalPrice: details.Amount,
		PaymentID:  details.PaymentID,
		Batch:      details.BatchID,
	})
}

func (h *handlers) confirmSale(ctx context.Context, order ledgerservice.NewOrder) error {
	inserted, err := h.ledger.RecordOrder(ctx, order)
	if err != nil {
		return err
	}
	if !inserted {
		return nil
	}

	if order.Batch != "" {
		if _, err := h.slots.Decrement(ctx, order.Batch); err != nil {
			// Inventory drift is recoverable via Reset; the sale stands.
			h.log.Warn("slot decrement failed",
				zap.String("batch_id", order.Batch),
				zap.Error(err),
			)
		}
	}

	if order.Email != "" {
		subject := "Inscrição confirmada"
		body := fmt.Sprintf("<p>Olá %s,</p><p>Seu pagamento foi confirmado. Bem-vindo(a)!</p>", order.Name)
		if err := h.email.Send(ctx, []string{order.Email}, subject, body); err != nil {
			h.log.Warn("confirmation email failed",
				zap.String("payment_id", order.PaymentID),
				zap.Error(err),
			)
		}
	}
	return nil
}
