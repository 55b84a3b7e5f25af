package checkout

import (
	"context"
	"strings"

	stripeclient "github.com/fatflowers/gympass/internal/platform/stripe"
	"github.com/fatflowers/gympass/pkg/types"
	"github.com/stripe/stripe-go/v82"
)

// StripeProvider hosts payments on Stripe Checkout in payment mode.
type StripeProvider struct {
	client *stripeclient.Client
}

func NewStripeProvider(client *stripeclient.Client) *StripeProvider {
	return &StripeProvider{client: client}
}

func (p *StripeProvider) Name() types.PaymentProvider { return types.PaymentProviderStripe }

func (p *StripeProvider) Configured() bool { return p.client.Configured() }

func (p *StripeProvider) CreateSession(ctx context.Context, req *SessionRequest) (*ProviderSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(req.Currency)),
					UnitAmount: stripe.Int64(req.AmountMinor),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.ProductLabel),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.CorrelationID),
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	s, err := p.client.NewCheckoutSession(ctx, params)
	if err != nil {
		return nil, err
	}
	return fromStripe(s), nil
}

func (p *StripeProvider) GetSession(ctx context.Context, id string) (*ProviderSession, error) {
	s, err := p.client.GetCheckoutSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return fromStripe(s), nil
}

func fromStripe(s *stripe.CheckoutSession) *ProviderSession {
	if s == nil {
		return nil
	}
	return &ProviderSession{
		ID:            s.ID,
		URL:           s.URL,
		Paid:          s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Complete:      s.Status == stripe.CheckoutSessionStatusComplete,
		CorrelationID: s.ClientReferenceID,
		Metadata:      s.Metadata,
		AmountTotal:   s.AmountTotal,
		Currency:      strings.ToUpper(string(s.Currency)),
	}
}

// FromStripeSession converts a session decoded from a webhook payload.
func FromStripeSession(s *stripe.CheckoutSession) *ProviderSession {
	return fromStripe(s)
}
