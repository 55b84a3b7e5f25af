package models

import (
	"time"

	"github.com/fatflowers/gympass/pkg/types"
)

type CheckoutState string

const (
	CheckoutStateInitiated       CheckoutState = "initiated"
	CheckoutStateSessionCreated  CheckoutState = "session_created"
	CheckoutStateReturnedPending CheckoutState = "returned_pending"
	CheckoutStateCommitted       CheckoutState = "committed"
	CheckoutStateRejected        CheckoutState = "rejected"
	CheckoutStateExpired         CheckoutState = "expired"
)

// Terminal reports whether no further transition is allowed. Committed may
// still be re-entered as an idempotent no-op.
func (s CheckoutState) Terminal() bool {
	return s == CheckoutStateCommitted || s == CheckoutStateRejected || s == CheckoutStateExpired
}

// CheckoutSession is the local reference to a provider-hosted payment session.
type CheckoutSession struct {
	ID string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	// Ref is the correlation token threaded through the return URL.
	Ref               string                `gorm:"column:ref;type:varchar(64);not null;uniqueIndex" json:"ref"`
	MemberID          string                `gorm:"column:member_id;type:varchar(128);not null;index:idx_member_plan_state,priority:1" json:"member_id"`
	PlanID            string                `gorm:"column:plan_id;type:varchar(64);not null;index:idx_member_plan_state,priority:2" json:"plan_id"`
	ProviderID        types.PaymentProvider `gorm:"column:provider_id;type:varchar(64);not null" json:"provider_id"`
	ProviderSessionID *string               `gorm:"column:provider_session_id;type:varchar(255);default:null;index" json:"provider_session_id"`
	SessionURL        *string               `gorm:"column:session_url;type:text;default:null" json:"session_url"`
	Amount            int64                 `gorm:"column:amount;type:bigint;not null" json:"amount"`
	Currency          string                `gorm:"column:currency;type:varchar(16);not null" json:"currency"`
	State             CheckoutState         `gorm:"column:state;type:varchar(32);not null;index:idx_member_plan_state,priority:3" json:"state"`
	RejectReason      *string               `gorm:"column:reject_reason;type:text;default:null" json:"reject_reason"`
	ExpiresAt         time.Time             `gorm:"column:expires_at;not null" json:"expires_at"`
	CommittedAt       *time.Time            `gorm:"column:committed_at;default:null" json:"committed_at"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

func (CheckoutSession) TableName() string {
	return "checkout_session"
}
