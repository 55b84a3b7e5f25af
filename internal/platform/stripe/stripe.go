package stripe

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatflowers/gympass/pkg/apperr"
	cfgpkg "github.com/fatflowers/gympass/pkg/config"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const ProviderName = "stripe"

var (
	ErrNotConfigured        = apperr.New(apperr.ErrConfigurationMissing, "stripe secret key is not configured")
	ErrWebhookNotConfigured = apperr.New(apperr.ErrConfigurationMissing, "stripe webhook secret is not configured")
	ErrInvalidSignature     = apperr.New(apperr.ErrValidation, "stripe signature verification failed")
)

// Client wraps the Stripe SDK. It is usable without credentials; every API
// call then fails with ErrNotConfigured before any network I/O.
type Client struct {
	api           *client.API
	webhookSecret string
	log           *zap.SugaredLogger
}

func NewClient(cfg *cfgpkg.Config, log *zap.SugaredLogger) *Client {
	c := &Client{log: log}
	if cfgpkg.Configured(cfg.Stripe.SecretKey) {
		sc := &client.API{}
		sc.Init(cfg.Stripe.SecretKey, nil)
		c.api = sc
	} else {
		log.Warnw("stripe secret key not configured, checkout disabled")
	}
	if cfgpkg.Configured(cfg.Stripe.WebhookSecret) {
		c.webhookSecret = cfg.Stripe.WebhookSecret
	}
	return c
}

func (c *Client) Configured() bool { return c != nil && c.api != nil }

func (c *Client) NewCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	params.Context = ctx
	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		c.logError("CreateCheckoutSession", err)
		return nil, AsProviderError(err)
	}
	return s, nil
}

func (c *Client) GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := c.api.CheckoutSessions.Get(id, params)
	if err != nil {
		c.logError("GetCheckoutSession", err)
		return nil, AsProviderError(err)
	}
	return s, nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
func (c *Client) ParseWebhook(payload []byte, signature string) (stripe.Event, error) {
	if c == nil || c.webhookSecret == "" {
		return stripe.Event{}, ErrWebhookNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}

// AsProviderError converts SDK errors, keeping the Stripe message verbatim.
func AsProviderError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &apperr.ProviderError{
			Provider: ProviderName,
			Code:     string(stripeErr.Code),
			Message:  stripeErr.Msg,
			Err:      err,
		}
	}
	return &apperr.ProviderError{Provider: ProviderName, Message: err.Error(), Err: err}
}

func (c *Client) logError(operation string, err error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		c.log.Errorw("stripe api error",
			"operation", operation,
			"type", string(stripeErr.Type),
			"code", string(stripeErr.Code),
			"message", stripeErr.Msg,
			"request_id", stripeErr.RequestID,
			"status_code", stripeErr.HTTPStatusCode,
		)
		return
	}
	c.log.Errorw("stripe call failed", "operation", operation, "err", err)
}

var Module = fx.Options(
	fx.Provide(NewClient),
)
