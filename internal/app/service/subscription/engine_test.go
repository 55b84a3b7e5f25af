package subscription

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fatflowers/gympass/internal/app/service/catalog"
	"github.com/fatflowers/gympass/internal/app/service/checkout"
	"github.com/fatflowers/gympass/internal/app/service/checkout/checkouttest"
	"github.com/fatflowers/gympass/internal/app/service/member"
	"github.com/fatflowers/gympass/internal/app/service/member/membertest"
	"github.com/fatflowers/gympass/internal/models"
	"github.com/fatflowers/gympass/pkg/apperr"
	cfgpkg "github.com/fatflowers/gympass/pkg/config"
	"github.com/fatflowers/gympass/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	fixedNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	today    = time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
)

func day(n int) *time.Time {
	d := today.AddDate(0, 0, n)
	return &d
}

type denialRecorder struct {
	mu  sync.Mutex
	got []*Denial
}

func (d *denialRecorder) ReportCommitDenied(_ context.Context, x *Denial) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.got = append(d.got, x)
}

type fixture struct {
	engine   *Engine
	store    *membertest.Store
	repo     *checkouttest.Repository
	provider *checkouttest.Provider
	denials  *denialRecorder
}

func newFixture(t *testing.T, members ...*models.Member) *fixture {
	t.Helper()
	cat, err := catalog.New([]*types.Plan{
		{ID: "standard", Title: "Standard", Price: types.PlanPrice{Amount: "150 RON", Currency: "RON"}},
		{ID: "premium", Title: "Premium", Price: types.PlanPrice{Amount: "250 RON", Currency: "RON"}},
	})
	require.NoError(t, err)

	cfg := &cfgpkg.Config{Timezone: "UTC"}
	cfg.Stripe.VerifyReturn = true
	log := zap.NewNop().Sugar()

	f := &fixture{
		store:    membertest.New(members...),
		repo:     checkouttest.NewRepository(),
		provider: &checkouttest.Provider{},
		denials:  &denialRecorder{},
	}
	f.engine = NewEngine(EngineParams{
		Cfg:       cfg,
		Catalog:   cat,
		Checkouts: f.repo,
		Provider:  f.provider,
		Store:     f.store,
		Locker:    member.NewLocker(),
		Notifier:  member.NewNotifier(member.NotifierParams{Log: log}),
		Denials:   f.denials,
		Log:       log,
	})
	f.engine.now = func() time.Time { return fixedNow }
	return f
}

// checkout registers an open, paid checkout for memberID and planID.
func (f *fixture) checkout(t *testing.T, ref, memberID, planID string) *models.CheckoutSession {
	t.Helper()
	sid := "cs_test_" + ref
	url := "https://checkout.stripe.com/c/pay/" + sid
	row := &models.CheckoutSession{
		ID:                ref,
		Ref:               ref,
		MemberID:          memberID,
		PlanID:            planID,
		ProviderID:        types.PaymentProviderStripe,
		ProviderSessionID: &sid,
		SessionURL:        &url,
		Amount:            15000,
		Currency:          "RON",
		State:             models.CheckoutStateSessionCreated,
		ExpiresAt:         fixedNow.Add(24 * time.Hour),
		CreatedAt:         time.Now(),
	}
	require.NoError(t, f.repo.Create(context.Background(), row))
	f.provider.AddPaidSession(row)
	return row
}

func (f *fixture) state(t *testing.T, ref string) models.CheckoutState {
	row, err := f.repo.GetByRef(context.Background(), ref)
	require.NoError(t, err)
	return row.State
}

func ret(ref, planID string) *ReturnEvent {
	return &ReturnEvent{PlanID: planID, PaymentSuccess: true, Ref: ref, Source: types.PurchaseSourceRedirect}
}

func TestExtend(t *testing.T) {
	require.Equal(t, *day(35), Extend(day(5), today, 30), "renewal keeps remaining days")
	require.Equal(t, *day(30), Extend(day(-10), today, 30), "lapsed restarts from today")
	require.Equal(t, *day(30), Extend(nil, today, 30), "first purchase starts today")
	require.Equal(t, *day(30), Extend(day(0), today, 30), "expiring today is not strictly after today")
	require.Equal(t, *day(37), Extend(day(30), today, 7))
}

func TestReconcile_CommitsExtension(t *testing.T) {
	f := newFixture(t, &models.Member{ID: "u1", Name: "Ana", ExpirationDate: day(5)})
	f.checkout(t, "ref-1", "u1", "standard")

	res, err := f.engine.Reconcile(context.Background(), ret("ref-1", "standard"))
	require.NoError(t, err)
	require.Equal(t, OutcomeCommitted, res.Outcome)
	require.Equal(t, *day(35), *res.NewExpiration)

	m := f.store.Member("u1")
	require.Equal(t, *day(35), *m.ExpirationDate)
	require.Equal(t, "Standard", *m.SubscriptionType)
	require.Equal(t, types.MemberStatusActive, m.Status)
	require.Equal(t, "ref-1", *m.LastAppliedRef)
	require.Equal(t, "Ana", m.Name)

	purchases := f.store.Purchases()
	require.Len(t, purchases, 1)
	require.Equal(t, "ref-1", purchases[0].Ref)
	require.Equal(t, *day(5), *purchases[0].PreviousExpiration)
	require.True(t, purchases[0].Extra.Data().IsFirstPurchase)
	require.Equal(t, models.CheckoutStateCommitted, f.state(t, "ref-1"))
	require.Equal(t, int64(1), f.provider.Gets.Load())
}

func TestReconcile_LapsedRestartsFromToday(t *testing.T) {
	f := newFixture(t, &models.Member{ID: "u1", ExpirationDate: day(-10)})
	f.checkout(t, "ref-1", "u1", "standard")

	res, err := f.engine.Reconcile(context.Background(), ret("ref-1", "standard"))
	require.NoError(t, err)
	require.Equal(t, *day(30), *res.NewExpiration)
}

func TestReconcile_IsIdempotent(t *testing.T) {
	f := newFixture(t, &models.Member{ID: "u1", ExpirationDate: day(5)})
	f.checkout(t, "ref-1", "u1", "standard")

	_, err := f.engine.Reconcile(context.Background(), ret("ref-1", "standard"))
	require.NoError(t, err)

	res, err := f.engine.Reconcile(context.Background(), ret("ref-1", "standard"))
	require.NoError(t, err)
	require.Equal(t, OutcomeAlreadyApplied, res.Outcome)
	require.Equal(t, *day(35), *res.Member.ExpirationDate)
	require.Equal(t, *day(35), *f.store.Member("u1").ExpirationDate)
	require.Len(t, f.store.Purchases(), 1)
}

func TestReconcile_ConcurrentDuplicatesApplyOnce(t *testing.T) {
	f := newFixture(t, &models.Member{ID: "u1", ExpirationDate: day(5)})
	f.checkout(t, "ref-1", "u1", "standard")

	var wg sync.WaitGroup
	outcomes := make(chan Outcome, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.engine.Reconcile(context.Background(), ret("ref-1", "standard"))
			if err != nil {
				t.Error(err)
				return
			}
			outcomes <- res.Outcome
		}()
	}
	wg.Wait()
	close(outcomes)

	committed := 0
	for o := range outcomes {
		if o == OutcomeCommitted {
			committed++
		}
	}
	require.GreaterOrEqual(t, committed, 1)
	require.Equal(t, *day(35), *f.store.Member("u1").ExpirationDate)
	require.Len(t, f.store.Purchases(), 1)
}

func TestReconcile_ConcurrentDistinctPurchasesBothExtend(t *testing.T) {
	f := newFixture(t, &models.Member{ID: "u1"})
	f.checkout(t, "ref-a", "u1", "standard")
	f.checkout(t, "ref-b", "u1", "standard")

	var wg sync.WaitGroup
	for _, ref := range []string{"ref-a", "ref-b"} {
		wg.Add(1)
		go func(ref string) {
			defer wg.Done()
			_, err := f.engine.Reconcile(context.Background(), ret(ref, "standard"))
			assert.NoError(t, err)
		}(ref)
	}
	wg.Wait()

	require.Equal(t, *day(60), *f.store.Member("u1").ExpirationDate)
	require.Len(t, f.store.Purchases(), 2)
}

func TestReconcile_AbandonedReturnWritesNothing(t *testing.T) {
	f := newFixture(t, &models.Member{ID: "u1", ExpirationDate: day(5)})
	f.checkout(t, "ref-1", "u1", "standard")

	for _, ev := range []*ReturnEvent{
		{PlanID: "standard", Ref: "ref-1"},
		{PaymentSuccess: true, Ref: "ref-1"},
		{},
	} {
		res, err := f.engine.Reconcile(context.Background(), ev)
		require.NoError(t, err)
		require.Equal(t, OutcomeAbandoned, res.Outcome)
	}
	require.Zero(t, f.store.Writes.Load())
	require.Zero(t, f.provider.Gets.Load())
	require.Equal(t, models.CheckoutStateSessionCreated, f.state(t, "ref-1"))
}

func TestReconcile_UnknownRef(t *testing.T) {
	f := newFixture(t, &models.Member{ID: "u1"})

	_, err := f.engine.Reconcile(context.Background(), ret("nope", "standard"))
	require.ErrorIs(t, err, ErrCheckoutNotFound)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	require.Zero(t, f.store.Writes.Load())
}

func TestReconcile_FallsBackToLatestOpenCheckout(t *testing.T) {
	f := newFixture(t, &models.Member{ID: "u1"})
	f.checkout(t, "ref-1", "u1", "standard")

	res, err := f.engine.Reconcile(context.Background(), &ReturnEvent{PlanID: "standard", PaymentSuccess: true, MemberID: "u1"})
	require.NoError(t, err)
	require.Equal(t, OutcomeCommitted, res.Outcome)
	require.Equal(t, "ref-1", res.Ref)
}

func TestReconcile_CommitsToCheckoutMemberNotCaller(t *testing.T) {
	f := newFixture(t, &models.Member{ID: "u1"}, &models.Member{ID: "u2"})
	f.checkout(t, "ref-1", "u1", "standard")

	ev := ret("ref-1", "standard")
	ev.MemberID = "u2"
	_, err := f.engine.Reconcile(context.Background(), ev)
	require.NoError(t, err)
	require.NotNil(t, f.store.Member("u1").ExpirationDate)
	require.Nil(t, f.store.Member("u2").ExpirationDate)
}

func TestReconcile_PlanMismatch(t *testing.T) {
	f := newFixture(t, &models.Member{ID: "u1"})
	f.checkout(t, "ref-1", "u1", "standard")

	_, err := f.engine.Reconcile(context.Background(), ret("ref-1", "premium"))
	require.ErrorIs(t, err, ErrPlanMismatch)
	require.Zero(t, f.store.Writes.Load())
}

func TestReconcile_PlanRemovedFromCatalog(t *testing.T) {
	f := newFixture(t, &models.Member{ID: "u1"})
	f.checkout(t, "ref-1", "u1", "standard")
	cat, err := catalog.New([]*types.Plan{{ID: "premium", Title: "Premium", Price: types.PlanPrice{Amount: "250 RON"}}})
	require.NoError(t, err)
	f.engine.catalog = cat

	_, err = f.engine.Reconcile(context.Background(), ret("ref-1", "standard"))
	require.ErrorIs(t, err, ErrPlanNotFound)
	require.Zero(t, f.store.Writes.Load())
	require.Equal(t, models.CheckoutStateRejected, f.state(t, "ref-1"))
}

func TestReconcile_MemberNotFound(t *testing.T) {
	f := newFixture(t)
	f.checkout(t, "ref-1", "ghost", "standard")

	_, err := f.engine.Reconcile(context.Background(), ret("ref-1", "standard"))
	require.ErrorIs(t, err, ErrMemberNotFound)
	require.Zero(t, f.store.Writes.Load())
	require.Empty(t, f.store.Purchases())
}

func TestReconcile_PersistenceDeniedIsDistinct(t *testing.T) {
	f := newFixture(t, &models.Member{ID: "u1", ExpirationDate: day(5)})
	f.checkout(t, "ref-1", "u1", "standard")
	f.store.DenyWrites.Store(true)

	_, err := f.engine.Reconcile(context.Background(), ret("ref-1", "standard"))
	require.ErrorIs(t, err, ErrPersistenceDenied)
	require.ErrorIs(t, err, member.ErrPermissionDenied)
	require.ErrorIs(t, err, apperr.ErrPersistenceDenied)
	require.NotErrorIs(t, err, ErrMemberNotFound)

	require.Len(t, f.denials.got, 1)
	require.Equal(t, "ref-1", f.denials.got[0].Ref)
	require.Equal(t, *day(5), *f.store.Member("u1").ExpirationDate)
	require.Equal(t, models.CheckoutStateReturnedPending, f.state(t, "ref-1"))

	// once the policy is fixed the same return succeeds
	f.store.DenyWrites.Store(false)
	res, err := f.engine.Reconcile(context.Background(), ret("ref-1", "standard"))
	require.NoError(t, err)
	require.Equal(t, OutcomeCommitted, res.Outcome)
}

func TestReconcile_UnpaidSessionIsNotApplied(t *testing.T) {
	f := newFixture(t, &models.Member{ID: "u1"})
	row := f.checkout(t, "ref-1", "u1", "standard")
	f.provider.Sessions[*row.ProviderSessionID].Paid = false

	_, err := f.engine.Reconcile(context.Background(), ret("ref-1", "standard"))
	require.ErrorIs(t, err, ErrPaymentNotConfirmed)
	require.Zero(t, f.store.Writes.Load())
}

func TestReconcile_ProviderErrorLeavesCheckoutRetryable(t *testing.T) {
	f := newFixture(t, &models.Member{ID: "u1"})
	f.checkout(t, "ref-1", "u1", "standard")
	f.provider.GetErr = &apperr.ProviderError{Provider: "stripe", Message: "rate limited"}

	_, err := f.engine.Reconcile(context.Background(), ret("ref-1", "standard"))
	require.ErrorIs(t, err, apperr.ErrProvider)
	require.Equal(t, models.CheckoutStateReturnedPending, f.state(t, "ref-1"))

	f.provider.GetErr = nil
	res, err := f.engine.Reconcile(context.Background(), ret("ref-1", "standard"))
	require.NoError(t, err)
	require.Equal(t, OutcomeCommitted, res.Outcome)
}

func TestHandleProviderSession_WebhookThenRedirect(t *testing.T) {
	f := newFixture(t, &models.Member{ID: "u1"})
	row := f.checkout(t, "ref-1", "u1", "standard")
	ps := f.provider.Sessions[*row.ProviderSessionID]

	res, err := f.engine.HandleProviderSession(context.Background(), ps)
	require.NoError(t, err)
	require.Equal(t, OutcomeCommitted, res.Outcome)
	require.Zero(t, f.provider.Gets.Load())
	require.Equal(t, types.PurchaseSourceWebhook, f.store.Purchases()[0].Source)

	res, err = f.engine.Reconcile(context.Background(), ret("ref-1", "standard"))
	require.NoError(t, err)
	require.Equal(t, OutcomeAlreadyApplied, res.Outcome)
	require.Equal(t, *day(30), *f.store.Member("u1").ExpirationDate)
}

func TestHandleProviderSession_UnpaidIsAbandoned(t *testing.T) {
	f := newFixture(t, &models.Member{ID: "u1"})
	row := f.checkout(t, "ref-1", "u1", "standard")
	ps := *f.provider.Sessions[*row.ProviderSessionID]
	ps.Paid = false

	res, err := f.engine.HandleProviderSession(context.Background(), &ps)
	require.NoError(t, err)
	require.Equal(t, OutcomeAbandoned, res.Outcome)
	require.Zero(t, f.store.Writes.Load())
}

func TestGrantPlan(t *testing.T) {
	f := newFixture(t, &models.Member{ID: "u1", ExpirationDate: day(3)})

	res, err := f.engine.GrantPlan(context.Background(), "u1", "premium", "admin-1")
	require.NoError(t, err)
	require.Equal(t, OutcomeCommitted, res.Outcome)
	require.Equal(t, *day(33), *res.NewExpiration)
	require.Equal(t, "Premium", *f.store.Member("u1").SubscriptionType)

	p := f.store.Purchases()[0]
	require.Equal(t, types.PurchaseSourceAdmin, p.Source)
	require.Equal(t, types.PaymentProviderInner, p.ProviderID)
	require.Equal(t, "admin-1", p.Extra.Data().OperatorID)

	_, err = f.engine.GrantPlan(context.Background(), "u1", "gold", "admin-1")
	require.True(t, errors.Is(err, ErrPlanNotFound))
}

var _ checkout.Provider = (*checkouttest.Provider)(nil)

func TestReconcile_RefLessReturnsOfDifferentMembersAreNotShared(t *testing.T) {
	f := newFixture(t, &models.Member{ID: "a"}, &models.Member{ID: "b"})
	f.checkout(t, "ref-a", "a", "standard")
	f.checkout(t, "ref-b", "b", "standard")

	arrived := make(chan string, 2)
	release := make(chan struct{})
	var once sync.Once
	open := func() { once.Do(func() { close(release) }) }
	t.Cleanup(open)
	f.provider.GetHook = func(id string) {
		arrived <- id
		<-release
	}

	results := make(map[string]*Result)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, sid := range []string{"cs_test_ref-a", "cs_test_ref-b"} {
		wg.Add(1)
		go func(sid string) {
			defer wg.Done()
			res, err := f.engine.Reconcile(context.Background(), &ReturnEvent{
				PlanID:            "standard",
				PaymentSuccess:    true,
				ProviderSessionID: sid,
				Source:            types.PurchaseSourceRedirect,
			})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			results[sid] = res
			mu.Unlock()
		}(sid)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-arrived:
		case <-time.After(2 * time.Second):
			open()
			wg.Wait()
			t.Fatalf("only %d provider lookups started; returns were coalesced", i)
		}
	}
	open()
	wg.Wait()

	require.Len(t, results, 2)
	require.Equal(t, "ref-a", results["cs_test_ref-a"].Ref)
	require.Equal(t, "a", results["cs_test_ref-a"].Member.ID)
	require.Equal(t, "ref-b", results["cs_test_ref-b"].Ref)
	require.Equal(t, "b", results["cs_test_ref-b"].Member.ID)
	require.Equal(t, *day(30), *f.store.Member("a").ExpirationDate)
	require.Equal(t, *day(30), *f.store.Member("b").ExpirationDate)
	require.Len(t, f.store.Purchases(), 2)
}

func TestFlightKey(t *testing.T) {
	require.Equal(t, "ref:r1", flightKey(&ReturnEvent{Ref: "r1", ProviderSessionID: "cs_1", MemberID: "u1"}))
	require.Equal(t, "session:cs_1", flightKey(&ReturnEvent{ProviderSessionID: "cs_1", PlanID: "standard"}))
	require.Equal(t, "member:u1:standard", flightKey(&ReturnEvent{MemberID: "u1", PlanID: "standard"}))
	require.Empty(t, flightKey(&ReturnEvent{PlanID: "standard"}))
}

func TestHandleProviderSession_CommitsInitiatedCheckout(t *testing.T) {
	f := newFixture(t, &models.Member{ID: "u1"})
	row := f.checkout(t, "ref-1", "u1", "standard")
	ps := f.provider.Sessions[*row.ProviderSessionID]

	// the provider session exists but its id never reached the row
	initiated := *row
	initiated.Ref, initiated.ID = "ref-2", "ref-2"
	initiated.ProviderSessionID = nil
	initiated.State = models.CheckoutStateInitiated
	require.NoError(t, f.repo.Create(context.Background(), &initiated))
	paid := *ps
	paid.ID = "cs_test_ref-2"
	paid.Metadata = map[string]string{
		checkout.MetadataRef:    "ref-2",
		checkout.MetadataPlanID: "standard",
	}

	res, err := f.engine.HandleProviderSession(context.Background(), &paid)
	require.NoError(t, err)
	require.Equal(t, OutcomeCommitted, res.Outcome)
	require.Equal(t, *day(30), *f.store.Member("u1").ExpirationDate)
	require.Equal(t, models.CheckoutStateCommitted, f.state(t, "ref-2"))

	stored, err := f.repo.GetByRef(context.Background(), "ref-2")
	require.NoError(t, err)
	require.NotNil(t, stored.ProviderSessionID)
	require.Equal(t, "cs_test_ref-2", *stored.ProviderSessionID)
	require.Equal(t, "cs_test_ref-2", *f.store.Purchases()[0].ProviderSessionID)
}

func TestReconcile_InitiatedCheckoutWithoutSessionIsNotApplied(t *testing.T) {
	f := newFixture(t, &models.Member{ID: "u1"})
	row := f.checkout(t, "ref-1", "u1", "standard")
	require.NoError(t, f.repo.Create(context.Background(), &models.CheckoutSession{
		ID: "ref-2", Ref: "ref-2", MemberID: "u1", PlanID: "standard",
		ProviderID: row.ProviderID, Amount: row.Amount, Currency: row.Currency,
		State: models.CheckoutStateInitiated, ExpiresAt: row.ExpiresAt,
	}))

	_, err := f.engine.Reconcile(context.Background(), ret("ref-2", "standard"))
	require.ErrorIs(t, err, ErrPaymentNotConfirmed)
	require.Zero(t, f.store.Writes.Load())
	require.Equal(t, models.CheckoutStateInitiated, f.state(t, "ref-2"))
}

// staleGetStore answers Get from a snapshot taken before another writer
// committed, like a cache that missed the invalidation.
type staleGetStore struct {
	*membertest.Store
	stale *models.Member
}

func (s *staleGetStore) Get(_ context.Context, _ string) (*models.Member, error) {
	return s.stale.Clone(), nil
}

func TestReconcile_DuplicateCommitReportsFreshMember(t *testing.T) {
	f := newFixture(t, &models.Member{ID: "u1", ExpirationDate: day(5)})
	f.checkout(t, "ref-1", "u1", "standard")

	stale := f.store.Member("u1")
	f.engine.store = &staleGetStore{Store: f.store, stale: stale}
	f.store.RecordHook = func(p *models.Purchase) error {
		winner := stale.Clone()
		winner.ExpirationDate = day(35)
		f.store.Seed(winner, p)
		return member.ErrDuplicate
	}

	res, err := f.engine.Reconcile(context.Background(), ret("ref-1", "standard"))
	require.NoError(t, err)
	require.Equal(t, OutcomeAlreadyApplied, res.Outcome)
	require.Equal(t, *day(35), *res.NewExpiration)
	require.Equal(t, *day(35), *res.Member.ExpirationDate)
}
