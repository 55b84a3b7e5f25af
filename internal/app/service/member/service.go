package member

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatflowers/gympass/internal/models"
	"github.com/fatflowers/gympass/pkg/apperr"
	cfgpkg "github.com/fatflowers/gympass/pkg/config"
	"github.com/fatflowers/gympass/pkg/logctx"
	"github.com/fatflowers/gympass/pkg/tool"
	"github.com/fatflowers/gympass/pkg/types"
	"go.uber.org/zap"
)

// ProfileUpdate holds the editable profile columns. Nil fields are left as is.
type ProfileUpdate struct {
	Name     *string `json:"name" binding:"omitempty,max=128"`
	Phone    *string `json:"phone" binding:"omitempty,max=32"`
	PhotoURL *string `json:"photo_url" binding:"omitempty,max=2048"`
}

// Service reads members with derived status and applies profile edits.
type Service struct {
	cfg      *cfgpkg.Config
	store    Store
	locker   *Locker
	notifier *Notifier
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewService(cfg *cfgpkg.Config, store Store, locker *Locker, notifier *Notifier, log *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, store: store, locker: locker, notifier: notifier, log: log, now: time.Now}
}

// Today is the current civil date in the configured time zone.
func (s *Service) Today() time.Time {
	return tool.DateOf(s.now(), s.cfg.Location())
}

// Get returns the member with Status recomputed against today.
func (s *Service) Get(ctx context.Context, id string) (*models.Member, types.MemberEntitlementInfo, error) {
	m, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, types.MemberEntitlementInfo{}, err
	}
	today := s.Today()
	m.Refresh(today)
	return m, m.Evaluate(today), nil
}

// UpdateProfile edits profile columns only. It takes the same per-member
// lock as reconciliation so it cannot interleave with a commit.
func (s *Service) UpdateProfile(ctx context.Context, id string, upd *ProfileUpdate) (*models.Member, error) {
	if upd == nil {
		return nil, apperr.New(apperr.ErrValidation, "empty profile update")
	}
	fields := map[string]any{}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, apperr.New(apperr.ErrValidation, "name must not be empty")
		}
		fields["name"] = name
	}
	if upd.Phone != nil {
		fields["phone"] = strings.TrimSpace(*upd.Phone)
	}
	if upd.PhotoURL != nil {
		if *upd.PhotoURL == "" {
			fields["photo_url"] = nil
		} else {
			fields["photo_url"] = *upd.PhotoURL
		}
	}
	if len(fields) == 0 {
		return nil, apperr.New(apperr.ErrValidation, "nothing to update")
	}

	unlock := s.locker.Lock(id)
	defer unlock()

	before, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, id, fields); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	after, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	after.Refresh(s.Today())

	logctx.FromCtx(ctx, s.log).Infow("member profile updated", "member_id", id, "fields", len(fields))
	s.notifier.Notify(ctx, &Change{Before: before, After: after, Reason: types.SubscriptionChangeReasonProfile})
	return after, nil
}

// listColumns are the member columns an admin may filter on.
var listColumns = map[string]bool{
	"id":                true,
	"name":              true,
	"phone":             true,
	"status":            true,
	"subscription_type": true,
	"expiration_date":   true,
	"created_at":        true,
}

func (s *Service) List(ctx context.Context, q *ListQuery) ([]*models.Member, int64, error) {
	if q != nil {
		for _, f := range q.Filters {
			if err := f.Validate(listColumns); err != nil {
				return nil, 0, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
			}
		}
	}
	items, total, err := s.store.List(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	today := s.Today()
	for _, m := range items {
		m.Refresh(today)
	}
	return items, total, nil
}
