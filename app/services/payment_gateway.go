package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/amirphl/viewiq/config"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/customer"
	"github.com/stripe/stripe-go/v81/event"
	"github.com/stripe/stripe-go/v81/paymentmethod"
	"github.com/stripe/stripe-go/v81/subscription"
	"github.com/stripe/stripe-go/v81/webhook"
)

// PaymentGateway is the subset of the Stripe API the billing flows use
type PaymentGateway interface {
	// VerifyWebhook checks the signature header; it is a no-op when no secret is configured
	VerifyWebhook(payload []byte, signature string) error
	RetrieveEvent(ctx context.Context, id string) (*stripe.Event, error)
	CreateCustomer(ctx context.Context, userID uint, email, name string) (*stripe.Customer, error)
	CreateSubscription(ctx context.Context, customerID, priceID, paymentMethodID string) (*stripe.Subscription, error)
}

// StripeGateway implements PaymentGateway with the package-level Stripe client
type StripeGateway struct {
	webhookSecret string
}

// NewStripeGateway sets the Stripe API key and returns the gateway
func NewStripeGateway(cfg config.StripeConfig) *StripeGateway {
	stripe.Key = cfg.SecretKey
	slog.Info("stripe gateway initialized", "webhook_signature_check", cfg.WebhookSecret != "")
	return &StripeGateway{webhookSecret: cfg.WebhookSecret}
}

func (g *StripeGateway) VerifyWebhook(payload []byte, signature string) error {
	if g.webhookSecret == "" {
		return nil
	}
	_, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return fmt.Errorf("failed to verify webhook signature: %w", err)
	}
	return nil
}

func (g *StripeGateway) RetrieveEvent(ctx context.Context, id string) (*stripe.Event, error) {
	params := &stripe.EventParams{}
	params.Context = ctx
	return event.Get(id, params)
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, userID uint, email, name string) (*stripe.Customer, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	params.AddMetadata("user_id", strconv.FormatUint(uint64(userID), 10))
	return customer.New(params)
}

// CreateSubscription attaches the payment method to the customer, makes it the default and subscribes
func (g *StripeGateway) CreateSubscription(ctx context.Context, customerID, priceID, paymentMethodID string) (*stripe.Subscription, error) {
	if paymentMethodID != "" {
		attach := &stripe.PaymentMethodAttachParams{Customer: stripe.String(customerID)}
		attach.Context = ctx
		if _, err := paymentmethod.Attach(paymentMethodID, attach); err != nil {
			return nil, err
		}
	}

	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
	}
	if paymentMethodID != "" {
		params.DefaultPaymentMethod = stripe.String(paymentMethodID)
	}
	params.Context = ctx
	params.AddExpand("latest_invoice")
	return subscription.New(params)
}
