// Package checkouttest provides in-memory fakes for the checkout package.
package checkouttest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatflowers/gympass/internal/app/service/checkout"
	"github.com/fatflowers/gympass/internal/models"
	"github.com/fatflowers/gympass/pkg/types"
)

// Repository is an in-memory checkout.Repository.
type Repository struct {
	mu   sync.Mutex
	rows map[string]*models.CheckoutSession
}

func NewRepository(rows ...*models.CheckoutSession) *Repository {
	r := &Repository{rows: make(map[string]*models.CheckoutSession)}
	for _, row := range rows {
		cp := *row
		r.rows[row.Ref] = &cp
	}
	return r
}

var _ checkout.Repository = (*Repository)(nil)

func (r *Repository) Create(_ context.Context, s *models.CheckoutSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[s.Ref]; ok {
		return fmt.Errorf("checkouttest: duplicate ref %s", s.Ref)
	}
	cp := *s
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	r.rows[s.Ref] = &cp
	return nil
}

func (r *Repository) GetByRef(_ context.Context, ref string) (*models.CheckoutSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[ref]
	if !ok {
		return nil, checkout.ErrCheckoutNotFound
	}
	cp := *row
	return &cp, nil
}

func (r *Repository) GetByProviderSessionID(_ context.Context, id string) (*models.CheckoutSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ProviderSessionID != nil && *row.ProviderSessionID == id {
			cp := *row
			return &cp, nil
		}
	}
	return nil, checkout.ErrCheckoutNotFound
}

func (r *Repository) LatestOpen(_ context.Context, memberID, planID string) (*models.CheckoutSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *models.CheckoutSession
	for _, row := range r.rows {
		if row.MemberID != memberID || row.PlanID != planID {
			continue
		}
		if row.State != models.CheckoutStateSessionCreated && row.State != models.CheckoutStateReturnedPending {
			continue
		}
		if best == nil || row.CreatedAt.After(best.CreatedAt) {
			best = row
		}
	}
	if best == nil {
		return nil, checkout.ErrCheckoutNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *Repository) Transition(_ context.Context, ref string, to models.CheckoutState, patch *checkout.Patch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[ref]
	if !ok {
		return checkout.ErrCheckoutNotFound
	}
	if !checkout.CanTransition(row.State, to) {
		return fmt.Errorf("%w: %s -> %s", checkout.ErrInvalidTransition, row.State, to)
	}
	row.State = to
	if patch != nil {
		if patch.ProviderSessionID != nil {
			v := *patch.ProviderSessionID
			row.ProviderSessionID = &v
		}
		if patch.SessionURL != nil {
			v := *patch.SessionURL
			row.SessionURL = &v
		}
		if patch.RejectReason != nil {
			v := *patch.RejectReason
			row.RejectReason = &v
		}
	}
	return nil
}

func (r *Repository) ExpireBefore(_ context.Context, t time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, row := range r.rows {
		if checkout.CanTransition(row.State, models.CheckoutStateExpired) && row.ExpiresAt.Before(t) {
			row.State = models.CheckoutStateExpired
			n++
		}
	}
	return n, nil
}

// Provider is a scripted checkout.Provider.
type Provider struct {
	Unconfigured bool
	// CreateFn overrides session creation; the default returns a URL.
	CreateFn func(req *checkout.SessionRequest) (*checkout.ProviderSession, error)
	// Sessions are returned by GetSession.
	Sessions map[string]*checkout.ProviderSession
	GetErr   error
	// GetHook runs before GetSession answers, e.g. to hold a call open.
	GetHook func(id string)

	Creates atomic.Int64
	Gets    atomic.Int64

	mu       sync.Mutex
	Requests []*checkout.SessionRequest
}

var _ checkout.Provider = (*Provider)(nil)

func (p *Provider) Name() types.PaymentProvider { return types.PaymentProviderStripe }

func (p *Provider) Configured() bool { return !p.Unconfigured }

func (p *Provider) CreateSession(_ context.Context, req *checkout.SessionRequest) (*checkout.ProviderSession, error) {
	p.Creates.Add(1)
	p.mu.Lock()
	p.Requests = append(p.Requests, req)
	p.mu.Unlock()
	if p.CreateFn != nil {
		return p.CreateFn(req)
	}
	id := "cs_test_" + req.Metadata[checkout.MetadataRef]
	return &checkout.ProviderSession{ID: id, URL: "https://checkout.stripe.com/c/pay/" + id}, nil
}

func (p *Provider) GetSession(_ context.Context, id string) (*checkout.ProviderSession, error) {
	p.Gets.Add(1)
	if p.GetHook != nil {
		p.GetHook(id)
	}
	if p.GetErr != nil {
		return nil, p.GetErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.Sessions[id]
	if !ok {
		return nil, fmt.Errorf("checkouttest: no such session %s", id)
	}
	return s, nil
}

// AddPaidSession registers a paid provider session matching a checkout row.
func (p *Provider) AddPaidSession(row *models.CheckoutSession) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Sessions == nil {
		p.Sessions = map[string]*checkout.ProviderSession{}
	}
	id := *row.ProviderSessionID
	p.Sessions[id] = &checkout.ProviderSession{
		ID:            id,
		Paid:          true,
		Complete:      true,
		CorrelationID: row.MemberID,
		Metadata: map[string]string{
			checkout.MetadataRef:      row.Ref,
			checkout.MetadataPlanID:   row.PlanID,
			checkout.MetadataMemberID: row.MemberID,
		},
		AmountTotal: row.Amount,
		Currency:    row.Currency,
	}
}

// Len returns the number of stored rows.
func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}
