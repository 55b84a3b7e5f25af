package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fatflowers/gympass/internal/app/service/catalog"
	"github.com/fatflowers/gympass/internal/app/service/checkout"
	"github.com/fatflowers/gympass/internal/app/service/member"
	"github.com/fatflowers/gympass/internal/models"
	"github.com/fatflowers/gympass/pkg/apperr"
	cfgpkg "github.com/fatflowers/gympass/pkg/config"
	"github.com/fatflowers/gympass/pkg/logctx"
	"github.com/fatflowers/gympass/pkg/metrics"
	"github.com/fatflowers/gympass/pkg/tool"
	"github.com/fatflowers/gympass/pkg/types"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
)

type Outcome string

const (
	// OutcomeAbandoned means the return carried no success marker or plan.
	OutcomeAbandoned Outcome = "abandoned"
	// OutcomeCommitted means this call extended the entitlement.
	OutcomeCommitted Outcome = "committed"
	// OutcomeAlreadyApplied means the purchase was committed earlier.
	OutcomeAlreadyApplied Outcome = "already_applied"
)

var (
	ErrCheckoutNotFound    = checkout.ErrCheckoutNotFound
	ErrPlanNotFound        = catalog.ErrPlanNotFound
	ErrMemberNotFound      = member.ErrNotFound
	ErrPlanMismatch        = apperr.New(apperr.ErrConflict, "plan does not match checkout session")
	ErrPaymentNotConfirmed = apperr.New(apperr.ErrConflict, "payment not confirmed by provider")
	// ErrPersistenceDenied means a paid purchase could not be written. It
	// also matches member.ErrPermissionDenied.
	ErrPersistenceDenied = apperr.New(apperr.ErrPersistenceDenied, "entitlement write denied")
)

// ReturnEvent is one arrival of a payment confirmation.
type ReturnEvent struct {
	PlanID         string
	PaymentSuccess bool
	// Ref is the correlation token from the return URL or session metadata.
	Ref               string
	ProviderSessionID string
	// MemberID is the authenticated caller. It is used only to find the
	// checkout when Ref is absent, never as the commit target.
	MemberID string
	Source   types.PurchaseSource
	// Confirmed is a provider session already verified by the caller, e.g.
	// decoded from a signed webhook.
	Confirmed *checkout.ProviderSession
}

type Result struct {
	Outcome       Outcome        `json:"outcome"`
	Ref           string         `json:"ref,omitempty"`
	Member        *models.Member `json:"member,omitempty"`
	Plan          *types.Plan    `json:"plan,omitempty"`
	NewExpiration *time.Time     `json:"new_expiration,omitempty"`
}

// Denial describes a paid purchase the store refused to write.
type Denial struct {
	MemberID string
	PlanID   string
	Ref      string
	Source   types.PurchaseSource
	Err      error
	At       time.Time
}

// DenialReporter is told about every persistence denial.
type DenialReporter interface {
	ReportCommitDenied(ctx context.Context, d *Denial)
}

// AuditWriter persists subscription change logs.
type AuditWriter interface {
	SaveSubscriptionLog(ctx context.Context, log *models.SubscriptionLog)
}

type EngineParams struct {
	fx.In

	Cfg       *cfgpkg.Config
	Catalog   *catalog.Catalog
	Checkouts checkout.Repository
	Provider  checkout.Provider
	Store     member.Store
	Locker    *member.Locker
	Notifier  *member.Notifier
	Audit     AuditWriter    `optional:"true"`
	Denials   DenialReporter `optional:"true"`
	Log       *zap.SugaredLogger
}

// Engine applies confirmed payments to member entitlements exactly once.
type Engine struct {
	cfg       *cfgpkg.Config
	catalog   *catalog.Catalog
	checkouts checkout.Repository
	provider  checkout.Provider
	store     member.Store
	locker    *member.Locker
	notifier  *member.Notifier
	audit     AuditWriter
	denials   DenialReporter
	log       *zap.SugaredLogger
	now       func() time.Time
	group     singleflight.Group
}

func NewEngine(p EngineParams) *Engine {
	return &Engine{
		cfg:       p.Cfg,
		catalog:   p.Catalog,
		checkouts: p.Checkouts,
		provider:  p.Provider,
		store:     p.Store,
		locker:    p.Locker,
		notifier:  p.Notifier,
		audit:     p.Audit,
		denials:   p.Denials,
		log:       p.Log,
		now:       time.Now,
	}
}

// Today is the current civil date in the configured time zone.
func (e *Engine) Today() time.Time {
	return tool.DateOf(e.now(), e.cfg.Location())
}

// Extend computes the new expiration. Time left on an entitlement that ends
// after today is kept; a lapsed or missing one restarts from today.
func Extend(current *time.Time, today time.Time, days int) time.Time {
	base := today
	if current != nil && current.After(today) {
		base = *current
	}
	return tool.AddDays(base, days)
}

// Reconcile applies the purchase behind ev. Duplicate and concurrent calls
// for the same purchase extend the entitlement once.
func (e *Engine) Reconcile(ctx context.Context, ev *ReturnEvent) (*Result, error) {
	if ev.Source == "" {
		ev.Source = types.PurchaseSourceRedirect
	}
	if !ev.PaymentSuccess || strings.TrimSpace(ev.PlanID) == "" {
		metrics.ObserveReconcile(string(OutcomeAbandoned), string(ev.Source))
		return &Result{Outcome: OutcomeAbandoned, Ref: ev.Ref}, nil
	}

	start := time.Now()
	dctx := logctx.Detach(ctx)
	var (
		v      any
		err    error
		shared bool
	)
	if key := flightKey(ev); key != "" {
		v, err, shared = e.group.Do(key, func() (any, error) {
			return e.reconcile(dctx, ev)
		})
	} else {
		v, err = e.reconcile(dctx, ev)
	}
	metrics.ObserveProcess("reconcile", string(ev.Source), start)
	if err != nil {
		metrics.ObserveReconcile("error", string(ev.Source))
		return nil, err
	}
	res := v.(*Result)
	if shared {
		logctx.FromCtx(ctx, e.log).Infow("reconcile shared with in-flight call", "ref", res.Ref, "outcome", res.Outcome)
	}
	return res, nil
}

// flightKey names the purchase a return refers to. Returns without a ref
// join on the provider session, then on the caller and plan. An empty key
// means the return cannot be tied to a purchase and is not coalesced.
func flightKey(ev *ReturnEvent) string {
	switch {
	case ev.Ref != "":
		return "ref:" + ev.Ref
	case ev.ProviderSessionID != "":
		return "session:" + ev.ProviderSessionID
	case ev.MemberID != "":
		return "member:" + ev.MemberID + ":" + ev.PlanID
	}
	return ""
}

func (e *Engine) reconcile(ctx context.Context, ev *ReturnEvent) (*Result, error) {
	log := logctx.FromCtx(ctx, e.log)

	row, err := e.resolveCheckout(ctx, ev)
	if err != nil {
		return nil, err
	}
	if row.PlanID != ev.PlanID {
		log.Warnw("return plan does not match checkout", "ref", row.Ref, "checkout_plan_id", row.PlanID, "return_plan_id", ev.PlanID)
		return nil, fmt.Errorf("%w: ref %s", ErrPlanMismatch, row.Ref)
	}
	plan, err := e.catalog.GetPlan(row.PlanID)
	if err != nil {
		e.transition(ctx, row.Ref, models.CheckoutStateRejected, "plan no longer in catalog")
		return nil, err
	}
	switch row.State {
	case models.CheckoutStateRejected:
		return nil, fmt.Errorf("%w: checkout %s is %s", ErrPaymentNotConfirmed, row.Ref, row.State)
	case models.CheckoutStateInitiated:
		// the session_created write was lost; only a provider-confirmed
		// payment may commit it
		if ev.Confirmed == nil && !e.cfg.Stripe.VerifyReturn {
			return nil, fmt.Errorf("%w: checkout %s is %s", ErrPaymentNotConfirmed, row.Ref, row.State)
		}
	case models.CheckoutStateSessionCreated:
		e.transition(ctx, row.Ref, models.CheckoutStateReturnedPending, "")
	}

	if row.State != models.CheckoutStateCommitted {
		if err := e.verify(ctx, ev, row); err != nil {
			return nil, err
		}
	}

	sessionID := row.ProviderSessionID
	var patch *checkout.Patch
	if (sessionID == nil || *sessionID == "") && ev.ProviderSessionID != "" {
		sessionID = &ev.ProviderSessionID
		patch = &checkout.Patch{ProviderSessionID: sessionID}
	}
	res, err := e.commit(ctx, &purchase{
		memberID:          row.MemberID,
		plan:              plan,
		ref:               row.Ref,
		source:            ev.Source,
		providerID:        row.ProviderID,
		providerSessionID: sessionID,
		amount:            row.Amount,
		currency:          row.Currency,
	})
	if err != nil {
		return nil, err
	}
	if err := e.checkouts.Transition(ctx, row.Ref, models.CheckoutStateCommitted, patch); err != nil {
		log.Warnw("checkout transition failed", "ref", row.Ref, "to", models.CheckoutStateCommitted, "err", err)
	}
	return res, nil
}

// resolveCheckout finds the checkout by ref, or by the caller's newest open
// checkout for the plan when the return carried no ref.
func (e *Engine) resolveCheckout(ctx context.Context, ev *ReturnEvent) (*models.CheckoutSession, error) {
	if ev.Ref != "" {
		return e.checkouts.GetByRef(ctx, ev.Ref)
	}
	if ev.ProviderSessionID != "" {
		row, err := e.checkouts.GetByProviderSessionID(ctx, ev.ProviderSessionID)
		if err == nil || !errors.Is(err, ErrCheckoutNotFound) {
			return row, err
		}
	}
	if ev.MemberID == "" {
		return nil, ErrCheckoutNotFound
	}
	return e.checkouts.LatestOpen(ctx, ev.MemberID, ev.PlanID)
}

// verify confirms with the provider that the session was paid for this
// member and ref.
func (e *Engine) verify(ctx context.Context, ev *ReturnEvent, row *models.CheckoutSession) error {
	ps := ev.Confirmed
	if ps == nil {
		if !e.cfg.Stripe.VerifyReturn {
			return nil
		}
		if row.ProviderSessionID == nil || *row.ProviderSessionID == "" {
			return fmt.Errorf("%w: checkout %s has no provider session", ErrPaymentNotConfirmed, row.Ref)
		}
		if ev.ProviderSessionID != "" && ev.ProviderSessionID != *row.ProviderSessionID {
			return fmt.Errorf("%w: session id does not match checkout %s", ErrPaymentNotConfirmed, row.Ref)
		}
		if !e.provider.Configured() {
			return checkout.ErrProviderNotConfigured
		}
		var err error
		ps, err = e.provider.GetSession(ctx, *row.ProviderSessionID)
		if err != nil {
			return err
		}
	}
	if !ps.Paid {
		return fmt.Errorf("%w: session %s is not paid", ErrPaymentNotConfirmed, ps.ID)
	}
	if ref := ps.Metadata[checkout.MetadataRef]; ref != "" && ref != row.Ref {
		return fmt.Errorf("%w: session %s belongs to another checkout", ErrPaymentNotConfirmed, ps.ID)
	}
	if ps.CorrelationID != "" && ps.CorrelationID != row.MemberID {
		return fmt.Errorf("%w: session %s belongs to another member", ErrPaymentNotConfirmed, ps.ID)
	}
	return nil
}

type purchase struct {
	memberID          string
	plan              *types.Plan
	ref               string
	source            types.PurchaseSource
	providerID        types.PaymentProvider
	providerSessionID *string
	amount            int64
	currency          string
	operatorID        string
}

// commit runs the read-modify-write under the member lock and a store
// transaction. The purchase ledger row is the durable guard.
func (e *Engine) commit(ctx context.Context, p *purchase) (*Result, error) {
	log := logctx.FromCtx(ctx, e.log)

	unlock := e.locker.Lock(p.memberID)
	defer unlock()

	today := e.Today()
	var (
		before, after *models.Member
		outcome       Outcome
		newExp        time.Time
	)
	err := e.store.RunInTx(ctx, func(tx member.Tx) error {
		m, err := tx.GetForUpdate(ctx, p.memberID)
		if err != nil {
			return err
		}
		applied, err := tx.PurchaseApplied(ctx, p.ref)
		if err != nil {
			return err
		}
		if applied {
			outcome = OutcomeAlreadyApplied
			after = m
			return nil
		}
		count, err := tx.CountPurchases(ctx, p.memberID)
		if err != nil {
			return err
		}

		before = m.Clone()
		newExp = Extend(m.ExpirationDate, today, p.plan.DurationDays)
		title := p.plan.Title
		ref := p.ref
		m.ExpirationDate = &newExp
		m.SubscriptionType = &title
		m.Status = types.MemberStatusActive
		m.LastAppliedRef = &ref
		if err := tx.SaveMember(ctx, m); err != nil {
			return err
		}

		snapshot := *p.plan
		if err := tx.RecordPurchase(ctx, &models.Purchase{
			ID:                 tool.GenerateUUIDV7(),
			Ref:                p.ref,
			MemberID:           p.memberID,
			PlanID:             p.plan.ID,
			PlanTitle:          p.plan.Title,
			ProviderID:         p.providerID,
			ProviderSessionID:  p.providerSessionID,
			Amount:             p.amount,
			Currency:           p.currency,
			Source:             p.source,
			PreviousExpiration: before.ExpirationDate,
			NewExpiration:      newExp,
			Extra: datatypes.NewJSONType(&models.PurchaseExtra{
				OperatorID:      p.operatorID,
				PlanSnapshot:    &snapshot,
				IsFirstPurchase: count == 0,
			}),
		}); err != nil {
			return err
		}
		outcome = OutcomeCommitted
		after = m
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, member.ErrNotFound):
		return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, p.memberID)
	case errors.Is(err, member.ErrPermissionDenied):
		e.reportDenied(ctx, p, err)
		return nil, fmt.Errorf("%w: %w", ErrPersistenceDenied, err)
	case errors.Is(err, member.ErrDuplicate):
		// another process committed the same ref first; read past the cache
		var m *models.Member
		gerr := e.store.RunInTx(ctx, func(tx member.Tx) error {
			var err error
			m, err = tx.GetForUpdate(ctx, p.memberID)
			return err
		})
		if gerr != nil {
			return nil, fmt.Errorf("failed to reload member %s: %w", p.memberID, gerr)
		}
		outcome, after = OutcomeAlreadyApplied, m
	default:
		return nil, fmt.Errorf("failed to commit purchase %s: %w", p.ref, err)
	}

	after.Refresh(today)
	res := &Result{Outcome: outcome, Ref: p.ref, Member: after, Plan: p.plan, NewExpiration: after.ExpirationDate}
	metrics.ObserveReconcile(string(outcome), string(p.source))

	if outcome == OutcomeAlreadyApplied {
		log.Infow("purchase already applied", "member_id", p.memberID, "ref", p.ref)
		return res, nil
	}

	log.Infow("purchase committed",
		"member_id", p.memberID,
		"ref", p.ref,
		"plan_id", p.plan.ID,
		"source", p.source,
		"previous_expiration", before.ExpirationDate,
		"new_expiration", newExp.Format(time.DateOnly),
	)

	reason := types.SubscriptionChangeReasonPurchase
	if p.source == types.PurchaseSourceAdmin {
		reason = types.SubscriptionChangeReasonGift
	}
	if e.audit != nil {
		e.audit.SaveSubscriptionLog(ctx, &models.SubscriptionLog{
			MemberID: p.memberID,
			Reason:   reason,
			Before:   datatypes.NewJSONType(before),
			After:    datatypes.NewJSONType(after.Clone()),
			Extra:    datatypes.JSONMap{"ref": p.ref, "source": string(p.source), "plan_id": p.plan.ID},
		})
	}
	e.notifier.Notify(ctx, &member.Change{
		Before: before,
		After:  after.Clone(),
		Reason: reason,
		Ref:    p.ref,
		Source: p.source,
	})
	return res, nil
}

func (e *Engine) reportDenied(ctx context.Context, p *purchase, err error) {
	logctx.FromCtx(ctx, e.log).Errorw("entitlement write denied for paid purchase",
		"alert", true,
		"member_id", p.memberID,
		"plan_id", p.plan.ID,
		"ref", p.ref,
		"source", p.source,
		"err", err,
	)
	metrics.ObservePersistenceDenied()
	if e.denials != nil {
		e.denials.ReportCommitDenied(ctx, &Denial{
			MemberID: p.memberID,
			PlanID:   p.plan.ID,
			Ref:      p.ref,
			Source:   p.source,
			Err:      err,
			At:       e.now(),
		})
	}
}

func (e *Engine) transition(ctx context.Context, ref string, to models.CheckoutState, reason string) {
	var patch *checkout.Patch
	if reason != "" {
		patch = &checkout.Patch{RejectReason: &reason}
	}
	if err := e.checkouts.Transition(ctx, ref, to, patch); err != nil {
		logctx.FromCtx(ctx, e.log).Warnw("checkout transition failed", "ref", ref, "to", to, "err", err)
	}
}

// HandleProviderSession applies a session delivered by a signed provider
// webhook through the same idempotent path as the browser return.
func (e *Engine) HandleProviderSession(ctx context.Context, ps *checkout.ProviderSession) (*Result, error) {
	if ps == nil {
		return nil, apperr.New(apperr.ErrValidation, "empty provider session")
	}
	return e.Reconcile(ctx, &ReturnEvent{
		PlanID:            ps.Metadata[checkout.MetadataPlanID],
		PaymentSuccess:    ps.Paid,
		Ref:               ps.Metadata[checkout.MetadataRef],
		ProviderSessionID: ps.ID,
		Source:            types.PurchaseSourceWebhook,
		Confirmed:         ps,
	})
}

// GrantPlan extends a member by a plan without payment, e.g. a gift from
// staff. Each call is a distinct purchase.
func (e *Engine) GrantPlan(ctx context.Context, memberID, planID, operatorID string) (*Result, error) {
	if memberID == "" || planID == "" {
		return nil, apperr.New(apperr.ErrValidation, "member_id and plan_id required")
	}
	plan, err := e.catalog.GetPlan(planID)
	if err != nil {
		return nil, err
	}
	return e.commit(ctx, &purchase{
		memberID:   memberID,
		plan:       plan,
		ref:        tool.NewRef(),
		source:     types.PurchaseSourceAdmin,
		providerID: types.PaymentProviderInner,
		currency:   plan.Price.Currency,
		operatorID: operatorID,
	})
}
