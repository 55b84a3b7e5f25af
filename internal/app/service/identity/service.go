package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fatflowers/gympass/internal/app/service/member"
	"github.com/fatflowers/gympass/internal/models"
	"github.com/fatflowers/gympass/pkg/apperr"
	cfgpkg "github.com/fatflowers/gympass/pkg/config"
	"github.com/fatflowers/gympass/pkg/logctx"
	"github.com/fatflowers/gympass/pkg/types"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
)

type Outcome string

const (
	OutcomeExisting        Outcome = "existing"
	OutcomeMigrated        Outcome = "migrated"
	OutcomeNeedsOnboarding Outcome = "needs_onboarding"
	OutcomeOnboarded       Outcome = "onboarded"
)

// Identity is the authenticated subject.
type Identity struct {
	ID    string
	Phone string
}

type Resolution struct {
	Outcome Outcome        `json:"outcome"`
	Member  *models.Member `json:"member,omitempty"`
}

// AuditWriter persists member change logs.
type AuditWriter interface {
	SaveSubscriptionLog(ctx context.Context, log *models.SubscriptionLog)
}

type ServiceParams struct {
	fx.In

	Cfg      *cfgpkg.Config
	Store    member.Store
	Members  *member.Service
	Locker   *member.Locker
	Notifier *member.Notifier
	Audit    AuditWriter `optional:"true"`
	Log      *zap.SugaredLogger
}

// Service maps an auth identity to its member record, migrating legacy
// records keyed by phone.
type Service struct {
	cfg      *cfgpkg.Config
	store    member.Store
	members  *member.Service
	locker   *member.Locker
	notifier *member.Notifier
	audit    AuditWriter
	log      *zap.SugaredLogger
	group    singleflight.Group
}

func NewService(p ServiceParams) *Service {
	return &Service{
		cfg:      p.Cfg,
		store:    p.Store,
		members:  p.Members,
		locker:   p.Locker,
		notifier: p.Notifier,
		audit:    p.Audit,
		log:      p.Log,
	}
}

// Resolve returns the identity's record, migrating a legacy one when only
// a phone match exists. Concurrent calls for one identity run once.
func (s *Service) Resolve(ctx context.Context, id Identity) (*Resolution, error) {
	if id.ID == "" {
		return nil, apperr.New(apperr.ErrValidation, "identity id required")
	}
	dctx := logctx.Detach(ctx)
	v, err, _ := s.group.Do(id.ID, func() (any, error) {
		return s.resolve(dctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Resolution), nil
}

func (s *Service) resolve(ctx context.Context, id Identity) (*Resolution, error) {
	log := logctx.FromCtx(ctx, s.log)

	m, _, err := s.members.Get(ctx, id.ID)
	if err == nil {
		return &Resolution{Outcome: OutcomeExisting, Member: m}, nil
	}
	if !errors.Is(err, member.ErrNotFound) {
		return nil, err
	}

	variants := PhoneVariants(id.Phone, s.cfg.App.CountryCode)
	if len(variants) == 0 {
		return &Resolution{Outcome: OutcomeNeedsOnboarding}, nil
	}
	candidates, err := s.store.FindByPhones(ctx, variants)
	if err != nil {
		return nil, fmt.Errorf("failed to look up legacy member: %w", err)
	}
	var legacy *models.Member
	for _, c := range candidates {
		if c.ID != id.ID {
			legacy = c
			break
		}
	}
	if legacy == nil {
		return &Resolution{Outcome: OutcomeNeedsOnboarding}, nil
	}

	unlock := s.locker.Lock(id.ID)
	defer unlock()

	// created while we searched
	if m, _, err := s.members.Get(ctx, id.ID); err == nil {
		return &Resolution{Outcome: OutcomeExisting, Member: m}, nil
	}

	migrated := legacy.Clone()
	migrated.ID = id.ID
	migrated.Phone = variants[0]
	migrated.QRCode = id.ID
	migrated.CreatedAt = legacy.CreatedAt
	migrated.UpdatedAt = legacy.UpdatedAt
	migrated.Refresh(s.members.Today())
	if err := s.store.Set(ctx, migrated); err != nil {
		return nil, fmt.Errorf("failed to migrate legacy member: %w", err)
	}

	log.Infow("legacy member migrated", "member_id", id.ID, "legacy_id", legacy.ID)
	s.changed(ctx, legacy, migrated, types.SubscriptionChangeReasonMigration, datatypes.JSONMap{"legacy_id": legacy.ID})
	return &Resolution{Outcome: OutcomeMigrated, Member: migrated}, nil
}

// Onboard creates a zero-entitlement record for a first-time member, or
// returns the existing record.
func (s *Service) Onboard(ctx context.Context, id Identity, name string) (*Resolution, error) {
	name = strings.TrimSpace(name)
	if id.ID == "" || name == "" {
		return nil, apperr.New(apperr.ErrValidation, "identity id and name required")
	}

	unlock := s.locker.Lock(id.ID)
	defer unlock()

	m, _, err := s.members.Get(ctx, id.ID)
	if err == nil {
		return &Resolution{Outcome: OutcomeExisting, Member: m}, nil
	}
	if !errors.Is(err, member.ErrNotFound) {
		return nil, err
	}

	m = &models.Member{
		ID:     id.ID,
		Name:   name,
		Phone:  CanonicalPhone(id.Phone, s.cfg.App.CountryCode),
		QRCode: id.ID,
		Status: types.MemberStatusExpired,
	}
	if err := s.store.Set(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to create member: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("member onboarded", "member_id", id.ID)
	s.changed(ctx, nil, m, types.SubscriptionChangeReasonOnboard, datatypes.JSONMap{})
	return &Resolution{Outcome: OutcomeOnboarded, Member: m}, nil
}

func (s *Service) changed(ctx context.Context, before, after *models.Member, reason types.SubscriptionChangeReason, extra datatypes.JSONMap) {
	if s.audit != nil {
		s.audit.SaveSubscriptionLog(ctx, &models.SubscriptionLog{
			MemberID: after.ID,
			Reason:   reason,
			Before:   datatypes.NewJSONType(before.Clone()),
			After:    datatypes.NewJSONType(after.Clone()),
			Extra:    extra,
		})
	}
	s.notifier.Notify(ctx, &member.Change{Before: before.Clone(), After: after.Clone(), Reason: reason})
}

var Module = fx.Options(
	fx.Provide(NewService),
)
