package models

import (
	"time"

	"github.com/fatflowers/gympass/pkg/types"
	"gorm.io/datatypes"
)

type PurchaseExtra struct {
	// OperatorID is set for purchases granted from the admin API.
	OperatorID string `json:"operator_id,omitempty"`
	// PlanSnapshot is the catalog entry as it was at commit time.
	PlanSnapshot *types.Plan `json:"plan_snapshot"`
	// IsFirstPurchase is true for the member's first applied purchase.
	IsFirstPurchase bool `json:"is_first_purchase"`
}

// Purchase is the ledger of applied purchases. A row for Ref means the
// purchase has already extended the member's entitlement.
type Purchase struct {
	ID                 string                             `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Ref                string                             `gorm:"column:ref;type:varchar(64);not null;uniqueIndex" json:"ref"`
	MemberID           string                             `gorm:"column:member_id;type:varchar(128);not null;index" json:"member_id"`
	PlanID             string                             `gorm:"column:plan_id;type:varchar(64);not null" json:"plan_id"`
	PlanTitle          string                             `gorm:"column:plan_title;type:varchar(128);not null" json:"plan_title"`
	ProviderID         types.PaymentProvider              `gorm:"column:provider_id;type:varchar(64);not null" json:"provider_id"`
	ProviderSessionID  *string                            `gorm:"column:provider_session_id;type:varchar(255);default:null" json:"provider_session_id"`
	Amount             int64                              `gorm:"column:amount;type:bigint;not null" json:"amount"`
	Currency           string                             `gorm:"column:currency;type:varchar(16);not null" json:"currency"`
	Source             types.PurchaseSource               `gorm:"column:source;type:varchar(32);not null" json:"source"`
	PreviousExpiration *time.Time                         `gorm:"column:previous_expiration;type:date;default:null" json:"previous_expiration"`
	NewExpiration      time.Time                          `gorm:"column:new_expiration;type:date;not null" json:"new_expiration"`
	Extra              datatypes.JSONType[*PurchaseExtra] `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`
	CreatedAt          time.Time                          `json:"created_at"`
}

func (Purchase) TableName() string {
	return "purchase"
}
