package member

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatflowers/gympass/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	pgInsufficientPrivilege = "42501"
	pgUniqueViolation       = "23505"
)

// GormStore is the Postgres-backed Store.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{db: db} }

// mapErr converts driver errors to the package sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrDuplicate) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgInsufficientPrivilege:
			return fmt.Errorf("%w: %s", ErrPermissionDenied, pgErr.Message)
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		}
	}
	return err
}

func (s *GormStore) Get(ctx context.Context, id string) (*models.Member, error) {
	var m models.Member
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

func (s *GormStore) Set(ctx context.Context, m *models.Member) error {
	if m == nil || m.ID == "" {
		return fmt.Errorf("member id required")
	}
	return mapErr(s.db.WithContext(ctx).Save(m).Error)
}

func (s *GormStore) Update(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&models.Member{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) FindByPhones(ctx context.Context, phones []string) ([]*models.Member, error) {
	if len(phones) == 0 {
		return nil, nil
	}
	var items []*models.Member
	if err := s.db.WithContext(ctx).Where("phone IN ?", phones).Order("created_at").Find(&items).Error; err != nil {
		return nil, mapErr(err)
	}
	return items, nil
}

func (s *GormStore) List(ctx context.Context, q *ListQuery) ([]*models.Member, int64, error) {
	if q == nil {
		q = &ListQuery{}
	}
	db := s.db.WithContext(ctx).Model(&models.Member{})
	for _, f := range q.Filters {
		db = db.Where(clause.Where{Exprs: []clause.Expression{f}})
	}
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, mapErr(err)
	}
	limit := q.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var items []*models.Member
	if err := db.Order("created_at desc").Offset(q.Offset).Limit(limit).Find(&items).Error; err != nil {
		return nil, 0, mapErr(err)
	}
	return items, total, nil
}

func (s *GormStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
	return mapErr(err)
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) GetForUpdate(ctx context.Context, id string) (*models.Member, error) {
	var m models.Member
	err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

func (t *gormTx) PurchaseApplied(ctx context.Context, ref string) (bool, error) {
	var count int64
	if err := t.db.WithContext(ctx).Model(&models.Purchase{}).Where("ref = ?", ref).Count(&count).Error; err != nil {
		return false, mapErr(err)
	}
	return count > 0, nil
}

func (t *gormTx) CountPurchases(ctx context.Context, memberID string) (int64, error) {
	var count int64
	if err := t.db.WithContext(ctx).Model(&models.Purchase{}).Where("member_id = ?", memberID).Count(&count).Error; err != nil {
		return 0, mapErr(err)
	}
	return count, nil
}

func (t *gormTx) SaveMember(ctx context.Context, m *models.Member) error {
	return mapErr(t.db.WithContext(ctx).Save(m).Error)
}

func (t *gormTx) RecordPurchase(ctx context.Context, p *models.Purchase) error {
	return mapErr(t.db.WithContext(ctx).Create(p).Error)
}
