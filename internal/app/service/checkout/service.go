package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/fatflowers/gympass/internal/app/service/catalog"
	"github.com/fatflowers/gympass/internal/models"
	"github.com/fatflowers/gympass/pkg/apperr"
	cfgpkg "github.com/fatflowers/gympass/pkg/config"
	"github.com/fatflowers/gympass/pkg/logctx"
	"github.com/fatflowers/gympass/pkg/metrics"
	"github.com/fatflowers/gympass/pkg/tool"
	"go.uber.org/zap"
)

var (
	ErrProviderNotConfigured = apperr.New(apperr.ErrConfigurationMissing, "payment provider is not configured")
	ErrSessionIncomplete     = apperr.New(apperr.ErrProvider, "payment provider returned no checkout url")
)

// Metadata keys attached to provider sessions.
const (
	MetadataRef      = "ref"
	MetadataPlanID   = "plan_id"
	MetadataMemberID = "member_id"
)

const defaultCheckoutTTL = 24 * time.Hour

// Session is what the caller redirects the member to.
type Session struct {
	URL string `json:"url"`
	Ref string `json:"ref"`
}

type Service struct {
	cfg      *cfgpkg.Config
	catalog  *catalog.Catalog
	repo     Repository
	provider Provider
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewService(cfg *cfgpkg.Config, cat *catalog.Catalog, repo Repository, provider Provider, log *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, catalog: cat, repo: repo, provider: provider, log: log, now: time.Now}
}

// SuccessURL builds the return URL the provider redirects to after payment.
// The session id placeholder is substituted by Stripe.
func SuccessURL(returnBaseURL, planID, ref string) string {
	q := url.Values{}
	q.Set("plan_id", planID)
	q.Set("payment_success", "true")
	q.Set("ref", ref)
	return strings.TrimRight(returnBaseURL, "/") + "/plans?" + q.Encode() + "&session_id={CHECKOUT_SESSION_ID}"
}

func CancelURL(returnBaseURL string) string {
	return strings.TrimRight(returnBaseURL, "/") + "/plans"
}

// CreateCheckoutSession starts a hosted payment for planID on behalf of
// memberID. No row is written and no request is sent when the provider is
// not configured.
func (s *Service) CreateCheckoutSession(ctx context.Context, memberID, planID, returnBaseURL string) (*Session, error) {
	log := logctx.FromCtx(ctx, s.log)

	if !s.provider.Configured() {
		metrics.ObserveCheckoutSession(planID, "not_configured")
		return nil, ErrProviderNotConfigured
	}
	if memberID == "" {
		return nil, apperr.New(apperr.ErrValidation, "member id required")
	}
	plan, err := s.catalog.GetPlan(planID)
	if err != nil {
		return nil, err
	}
	amount, currency, err := catalog.ParsePrice(plan.Price.Amount)
	if err != nil {
		return nil, err
	}
	if returnBaseURL == "" {
		returnBaseURL = s.cfg.App.PublicBaseURL
	}

	ttl := s.cfg.Stripe.CheckoutTTL
	if ttl <= 0 {
		ttl = defaultCheckoutTTL
	}
	ref := tool.NewRef()
	row := &models.CheckoutSession{
		ID:         tool.GenerateUUIDV7(),
		Ref:        ref,
		MemberID:   memberID,
		PlanID:     plan.ID,
		ProviderID: s.provider.Name(),
		Amount:     amount,
		Currency:   currency,
		State:      models.CheckoutStateInitiated,
		ExpiresAt:  s.now().Add(ttl),
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	ps, err := s.provider.CreateSession(ctx, &SessionRequest{
		AmountMinor:   amount,
		Currency:      currency,
		ProductLabel:  plan.Title,
		CorrelationID: memberID,
		Metadata: map[string]string{
			MetadataRef:      ref,
			MetadataPlanID:   plan.ID,
			MetadataMemberID: memberID,
		},
		SuccessURL:     SuccessURL(returnBaseURL, plan.ID, ref),
		CancelURL:      CancelURL(returnBaseURL),
		IdempotencyKey: ref,
	})
	if err != nil {
		s.reject(ctx, ref, err.Error())
		metrics.ObserveCheckoutSession(plan.ID, "provider_error")
		var pe *apperr.ProviderError
		if errors.As(err, &pe) {
			return nil, pe
		}
		return nil, &apperr.ProviderError{Provider: string(s.provider.Name()), Message: err.Error(), Err: err}
	}
	if ps == nil || strings.TrimSpace(ps.URL) == "" {
		s.reject(ctx, ref, ErrSessionIncomplete.Error())
		metrics.ObserveCheckoutSession(plan.ID, "incomplete")
		log.Errorw("provider returned session without url", "ref", ref, "plan_id", plan.ID)
		return nil, ErrSessionIncomplete
	}

	if err := s.repo.Transition(ctx, ref, models.CheckoutStateSessionCreated, &Patch{
		ProviderSessionID: &ps.ID,
		SessionURL:        &ps.URL,
	}); err != nil {
		return nil, fmt.Errorf("failed to record checkout session: %w", err)
	}

	metrics.ObserveCheckoutSession(plan.ID, "created")
	log.Infow("checkout session created", "ref", ref, "plan_id", plan.ID, "provider_session_id", ps.ID, "amount", amount, "currency", currency)
	return &Session{URL: ps.URL, Ref: ref}, nil
}

func (s *Service) reject(ctx context.Context, ref, reason string) {
	if err := s.repo.Transition(ctx, ref, models.CheckoutStateRejected, &Patch{RejectReason: &reason}); err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("failed to reject checkout session", "ref", ref, "err", err)
	}
}
