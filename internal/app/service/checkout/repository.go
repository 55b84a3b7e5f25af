package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatflowers/gympass/internal/models"
	"github.com/fatflowers/gympass/pkg/apperr"
	"gorm.io/gorm"
)

var (
	ErrCheckoutNotFound  = apperr.New(apperr.ErrNotFound, "checkout session not found")
	ErrInvalidTransition = apperr.New(apperr.ErrConflict, "invalid checkout state transition")
)

var transitions = map[models.CheckoutState][]models.CheckoutState{
	models.CheckoutStateSessionCreated:  {models.CheckoutStateInitiated},
	models.CheckoutStateReturnedPending: {models.CheckoutStateSessionCreated, models.CheckoutStateReturnedPending},
	models.CheckoutStateCommitted:       {models.CheckoutStateInitiated, models.CheckoutStateSessionCreated, models.CheckoutStateReturnedPending, models.CheckoutStateExpired},
	models.CheckoutStateRejected:        {models.CheckoutStateInitiated, models.CheckoutStateSessionCreated, models.CheckoutStateReturnedPending},
	models.CheckoutStateExpired:         {models.CheckoutStateSessionCreated, models.CheckoutStateReturnedPending},
}

// CanTransition reports whether a checkout may move from one state to
// another. Committed to committed is allowed and is a no-op. Initiated and
// expired rows may still commit when the provider confirms payment.
func CanTransition(from, to models.CheckoutState) bool {
	if from == models.CheckoutStateCommitted && to == models.CheckoutStateCommitted {
		return true
	}
	for _, f := range transitions[to] {
		if f == from {
			return true
		}
	}
	return false
}

// Patch holds columns written together with a transition.
type Patch struct {
	ProviderSessionID *string
	SessionURL        *string
	RejectReason      *string
}

type Repository interface {
	Create(ctx context.Context, s *models.CheckoutSession) error
	GetByRef(ctx context.Context, ref string) (*models.CheckoutSession, error)
	GetByProviderSessionID(ctx context.Context, id string) (*models.CheckoutSession, error)
	// LatestOpen returns the newest session_created or returned_pending row
	// for the member and plan.
	LatestOpen(ctx context.Context, memberID, planID string) (*models.CheckoutSession, error)
	Transition(ctx context.Context, ref string, to models.CheckoutState, patch *Patch) error
	// ExpireBefore moves open rows whose expires_at is before t to expired.
	ExpireBefore(ctx context.Context, t time.Time) (int64, error)
}

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository { return &GormRepository{db: db} }

func (r *GormRepository) Create(ctx context.Context, s *models.CheckoutSession) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *GormRepository) first(ctx context.Context, query string, args ...any) (*models.CheckoutSession, error) {
	var s models.CheckoutSession
	if err := r.db.WithContext(ctx).Where(query, args...).Order("created_at desc").First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCheckoutNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *GormRepository) GetByRef(ctx context.Context, ref string) (*models.CheckoutSession, error) {
	return r.first(ctx, "ref = ?", ref)
}

func (r *GormRepository) GetByProviderSessionID(ctx context.Context, id string) (*models.CheckoutSession, error) {
	return r.first(ctx, "provider_session_id = ?", id)
}

func (r *GormRepository) LatestOpen(ctx context.Context, memberID, planID string) (*models.CheckoutSession, error) {
	return r.first(ctx, "member_id = ? AND plan_id = ? AND state IN ?", memberID, planID,
		[]models.CheckoutState{models.CheckoutStateSessionCreated, models.CheckoutStateReturnedPending})
}

func (r *GormRepository) Transition(ctx context.Context, ref string, to models.CheckoutState, patch *Patch) error {
	fields := map[string]any{"state": to}
	if patch != nil {
		if patch.ProviderSessionID != nil {
			fields["provider_session_id"] = *patch.ProviderSessionID
		}
		if patch.SessionURL != nil {
			fields["session_url"] = *patch.SessionURL
		}
		if patch.RejectReason != nil {
			fields["reject_reason"] = *patch.RejectReason
		}
	}
	if to == models.CheckoutStateCommitted {
		fields["committed_at"] = time.Now()
	}

	res := r.db.WithContext(ctx).Model(&models.CheckoutSession{}).
		Where("ref = ? AND state IN ?", ref, transitions[to]).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to transition checkout %s to %s: %w", ref, to, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	current, err := r.GetByRef(ctx, ref)
	if err != nil {
		return err
	}
	if CanTransition(current.State, to) {
		// committed to committed
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.State, to)
}

func (r *GormRepository) ExpireBefore(ctx context.Context, t time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.CheckoutSession{}).
		Where("state IN ? AND expires_at < ?", transitions[models.CheckoutStateExpired], t).
		Update("state", models.CheckoutStateExpired)
	return res.RowsAffected, res.Error
}
