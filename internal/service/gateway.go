package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/treadline/internal/config"
	"github.com/treadline/internal/constants"
	"github.com/treadline/internal/models"
	"github.com/treadline/internal/payment/paypal"
	"github.com/treadline/internal/payment/stripe"
)

// GatewayLineItem is one display line passed to the provider.
type GatewayLineItem struct {
	Name      string
	UnitPrice models.Money
	Quantity  int
}

// GatewaySessionInput describes the provider-side session to create.
// ExpiresAt is the local pending deadline; providers that support a
// session TTL bound theirs to it.
type GatewaySessionInput struct {
	PaymentNo   string
	PaymentID   uint
	Amount      models.Money
	Currency    string
	Description string
	LineItems   []GatewayLineItem
	ExpiresAt   *time.Time
}

// GatewaySession is the opaque handle returned by session creation. Nothing
// here implies the payment succeeded.
type GatewaySession struct {
	TransactionID string
	RedirectURL   string
	Raw           models.JSON
}

// GatewayConfirmation is the provider's authoritative verdict on one
// payment attempt, re-fetched from the provider itself.
type GatewayConfirmation struct {
	Succeeded bool
	Status    string // local payment status vocabulary
	Amount    string
	Currency  string
	PaidAt    *time.Time
	Raw       models.JSON
}

// Gateway is the uniform adapter over one external payment provider.
// Implementations are injected so tests can substitute fakes.
type Gateway interface {
	Name() string
	CreateSession(ctx context.Context, input GatewaySessionInput) (*GatewaySession, error)
	ConfirmPayment(ctx context.Context, providerRef string) (*GatewayConfirmation, error)
}

// GatewayRegistry maps a payment method to its adapter.
type GatewayRegistry map[string]Gateway

// Resolve returns the gateway for a method.
func (r GatewayRegistry) Resolve(method string) (Gateway, error) {
	gateway, ok := r[strings.ToLower(strings.TrimSpace(method))]
	if !ok || gateway == nil {
		return nil, ErrPaymentMethodInvalid
	}
	return gateway, nil
}

// NewGatewayRegistry wires the configured providers.
func NewGatewayRegistry(cfg *config.Config) GatewayRegistry {
	registry := GatewayRegistry{}
	if cfg == nil {
		return registry
	}
	registry[constants.PaymentMethodStripe] = NewStripeGateway(cfg)
	registry[constants.PaymentMethodPaypal] = NewPaypalGateway(cfg)
	return registry
}

// stripeGateway adapts the hosted-checkout provider.
type stripeGateway struct {
	cfg *stripe.Config
}

// NewStripeGateway builds the hosted-checkout adapter from app config.
func NewStripeGateway(cfg *config.Config) Gateway {
	stripeCfg := &stripe.Config{
		SecretKey:     cfg.Payment.Stripe.SecretKey,
		WebhookSecret: cfg.Payment.Stripe.WebhookSecret,
		APIBaseURL:    cfg.Payment.Stripe.APIBase,
		SuccessURL:    cfg.Checkout.SuccessURL,
		CancelURL:     cfg.Checkout.CancelURL,
	}
	stripeCfg.Normalize()
	return &stripeGateway{cfg: stripeCfg}
}

func (g *stripeGateway) Name() string {
	return constants.PaymentMethodStripe
}

func (g *stripeGateway) CreateSession(ctx context.Context, input GatewaySessionInput) (*GatewaySession, error) {
	lines := make([]stripe.LineItem, 0, len(input.LineItems))
	for _, line := range input.LineItems {
		lines = append(lines, stripe.LineItem{
			Name:       line.Name,
			UnitAmount: line.UnitPrice.String(),
			Quantity:   line.Quantity,
		})
	}
	result, err := stripe.CreateSession(ctx, g.cfg, stripe.CreateInput{
		PaymentNo:   input.PaymentNo,
		PaymentID:   input.PaymentID,
		Amount:      input.Amount.String(),
		Currency:    input.Currency,
		Description: input.Description,
		LineItems:   lines,
		ExpiresAt:   input.ExpiresAt,
	})
	if err != nil {
		return nil, mapStripeError(err)
	}
	return &GatewaySession{
		TransactionID: result.SessionID,
		RedirectURL:   result.URL,
		Raw:           models.JSON(result.Raw),
	}, nil
}

func (g *stripeGateway) ConfirmPayment(ctx context.Context, providerRef string) (*GatewayConfirmation, error) {
	result, err := stripe.QueryPayment(ctx, g.cfg, providerRef)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return &GatewayConfirmation{
		Succeeded: result.Status == constants.PaymentStatusCompleted,
		Status:    result.Status,
		Amount:    result.Amount,
		Currency:  result.Currency,
		PaidAt:    result.PaidAt,
		Raw:       models.JSON(result.Raw),
	}, nil
}

// WebhookConfig exposes the webhook secret for signature checks at the
// handler boundary.
func (g *stripeGateway) WebhookConfig() *stripe.Config {
	return g.cfg
}

func mapStripeError(err error) error {
	switch {
	case errors.Is(err, stripe.ErrRequestFailed):
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	case errors.Is(err, stripe.ErrConfigInvalid), errors.Is(err, stripe.ErrResponseInvalid):
		return fmt.Errorf("%w: %v", ErrGatewayRejected, err)
	default:
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
}

// paypalGateway adapts the redirect provider.
type paypalGateway struct {
	cfg *paypal.Config
}

// NewPaypalGateway builds the redirect adapter from app config.
func NewPaypalGateway(cfg *config.Config) Gateway {
	paypalCfg := &paypal.Config{
		ClientID:     cfg.Payment.Paypal.ClientID,
		ClientSecret: cfg.Payment.Paypal.ClientSecret,
		BaseURL:      cfg.Payment.Paypal.APIBase,
		Sandbox:      cfg.Payment.Paypal.Sandbox,
		ReturnURL:    cfg.Checkout.SuccessURL,
		CancelURL:    cfg.Checkout.CancelURL,
	}
	paypalCfg.Normalize()
	return &paypalGateway{cfg: paypalCfg}
}

func (g *paypalGateway) Name() string {
	return constants.PaymentMethodPaypal
}

func (g *paypalGateway) CreateSession(ctx context.Context, input GatewaySessionInput) (*GatewaySession, error) {
	result, err := paypal.CreateOrder(ctx, g.cfg, paypal.CreateInput{
		PaymentNo:   input.PaymentNo,
		PaymentID:   input.PaymentID,
		Amount:      input.Amount.String(),
		Currency:    input.Currency,
		Description: input.Description,
	})
	if err != nil {
		return nil, mapPaypalError(err)
	}
	return &GatewaySession{
		TransactionID: result.OrderID,
		RedirectURL:   result.ApprovalURL,
		Raw:           models.JSON(result.Raw),
	}, nil
}

// ConfirmPayment captures the approved order. When capture is not possible
// the current order state is fetched instead, so duplicate confirmations
// still read the provider's authoritative status.
func (g *paypalGateway) ConfirmPayment(ctx context.Context, providerRef string) (*GatewayConfirmation, error) {
	result, err := paypal.CaptureOrder(ctx, g.cfg, providerRef)
	if err != nil {
		if errors.Is(err, paypal.ErrResponseInvalid) {
			result, err = paypal.GetOrder(ctx, g.cfg, providerRef)
		}
		if err != nil {
			return nil, mapPaypalError(err)
		}
	}
	status, ok := paypal.ToPaymentStatus(result.Status)
	if !ok {
		return nil, fmt.Errorf("%w: unmapped provider status %q", ErrGatewayRejected, result.Status)
	}
	return &GatewayConfirmation{
		Succeeded: status == constants.PaymentStatusCompleted,
		Status:    status,
		Amount:    result.Amount,
		Currency:  result.Currency,
		PaidAt:    result.PaidAt,
		Raw:       models.JSON(result.Raw),
	}, nil
}

func mapPaypalError(err error) error {
	switch {
	case errors.Is(err, paypal.ErrAuthFailed), errors.Is(err, paypal.ErrRequestFailed):
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	case errors.Is(err, paypal.ErrConfigInvalid), errors.Is(err, paypal.ErrResponseInvalid):
		return fmt.Errorf("%w: %v", ErrGatewayRejected, err)
	default:
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
}
