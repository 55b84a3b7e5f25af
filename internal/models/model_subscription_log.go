package models

import (
	"time"

	"github.com/fatflowers/gympass/pkg/types"
	"gorm.io/datatypes"
)

// SubscriptionLog records changes to member entitlements.
// Use case: troubleshooting.
type SubscriptionLog struct {
	ID       string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	MemberID string `gorm:"column:member_id;type:varchar(128);index:idx_member_id_id,priority:1;not null"`
	// Reason is the change reason.
	Reason types.SubscriptionChangeReason `gorm:"column:reason;type:varchar(64);not null"`
	// Before stores the member before the change in JSON format.
	Before datatypes.JSONType[*Member] `gorm:"column:before;type:jsonb;default:'null'"`
	// After stores the member after the change in JSON format.
	After datatypes.JSONType[*Member] `gorm:"column:after;type:jsonb;default:'null'"`
	// Extra stores additional context such as the purchase ref and trigger source.
	Extra     datatypes.JSONMap `gorm:"column:extra;type:jsonb;default:'{}'"`
	CreatedAt time.Time
}

func (SubscriptionLog) TableName() string {
	return "subscription_log"
}
