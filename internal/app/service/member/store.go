package member

import (
	"context"

	"github.com/fatflowers/gympass/internal/models"
	"github.com/fatflowers/gympass/pkg/apperr"
	"github.com/fatflowers/gympass/pkg/types"
)

var (
	ErrNotFound = apperr.New(apperr.ErrNotFound, "member not found")
	// ErrPermissionDenied is returned when the backing store rejects a read
	// or write by access policy. It is not a missing record.
	ErrPermissionDenied = apperr.New(apperr.ErrPersistenceDenied, "member store permission denied")
	// ErrDuplicate is returned when a unique key already exists.
	ErrDuplicate = apperr.New(apperr.ErrConflict, "duplicate key")
)

// Store is the entitlement store keyed by auth subject.
type Store interface {
	Get(ctx context.Context, id string) (*models.Member, error)
	// Set overwrites the whole record, creating it when absent.
	Set(ctx context.Context, m *models.Member) error
	// Update merges the given columns into an existing record.
	Update(ctx context.Context, id string, fields map[string]any) error
	// FindByPhones returns records whose phone equals any of phones.
	FindByPhones(ctx context.Context, phones []string) ([]*models.Member, error)
	List(ctx context.Context, q *ListQuery) ([]*models.Member, int64, error)
	// RunInTx runs fn in a single store transaction. An error from fn rolls
	// back every write made through tx.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the view of the store inside RunInTx.
type Tx interface {
	// GetForUpdate reads the record and locks it until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*models.Member, error)
	PurchaseApplied(ctx context.Context, ref string) (bool, error)
	CountPurchases(ctx context.Context, memberID string) (int64, error)
	SaveMember(ctx context.Context, m *models.Member) error
	RecordPurchase(ctx context.Context, p *models.Purchase) error
}

type ListQuery struct {
	Filters []*types.CommonFilter
	Offset  int
	Limit   int
}
