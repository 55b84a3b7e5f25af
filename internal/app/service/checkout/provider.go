package checkout

import (
	"context"

	"github.com/fatflowers/gympass/pkg/types"
)

// SessionRequest is what the provider needs to host a one-off payment.
type SessionRequest struct {
	AmountMinor  int64
	Currency     string
	ProductLabel string
	// CorrelationID identifies the paying member on the provider side.
	CorrelationID string
	Metadata      map[string]string
	SuccessURL    string
	CancelURL     string
	// IdempotencyKey makes provider-side creation safe to retry.
	IdempotencyKey string
}

// ProviderSession is the provider's view of a checkout session.
type ProviderSession struct {
	ID            string
	URL           string
	Paid          bool
	Complete      bool
	CorrelationID string
	Metadata      map[string]string
	AmountTotal   int64
	Currency      string
}

// Provider is the external payment gateway.
type Provider interface {
	Name() types.PaymentProvider
	// Configured reports whether credentials are present. Callers check it
	// before any I/O.
	Configured() bool
	CreateSession(ctx context.Context, req *SessionRequest) (*ProviderSession, error)
	GetSession(ctx context.Context, id string) (*ProviderSession, error)
}
