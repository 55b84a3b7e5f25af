package models

import (
	"time"

	"github.com/fatflowers/gympass/pkg/types"
)

// Member is the per-identity entitlement record, keyed by the auth subject.
// Status is a cache of the value derived by Evaluate and must not be trusted
// on read.
type Member struct {
	ID       string  `gorm:"column:id;type:varchar(128);primaryKey" json:"id"`
	Name     string  `gorm:"column:name;type:varchar(128)" json:"name"`
	Phone    string  `gorm:"column:phone;type:varchar(32);index" json:"phone"`
	PhotoURL *string `gorm:"column:photo_url;type:text;default:null" json:"photo_url"`
	QRCode   string  `gorm:"column:qr_code;type:varchar(128)" json:"qr_code"`
	// SubscriptionType is the title of the active plan.
	SubscriptionType *string `gorm:"column:subscription_type;type:varchar(128);default:null" json:"subscription_type"`
	// ExpirationDate is a civil date stored as UTC midnight.
	ExpirationDate *time.Time         `gorm:"column:expiration_date;type:date;default:null" json:"expiration_date"`
	Status         types.MemberStatus `gorm:"column:status;type:varchar(32);not null;default:'expired'" json:"status"`
	// LastAppliedRef is the correlation token of the last committed purchase.
	LastAppliedRef *string   `gorm:"column:last_applied_ref;type:varchar(64);default:null" json:"last_applied_ref,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Member) TableName() string {
	return "member"
}

// Active reports whether the entitlement covers today. today must be a civil
// date (UTC midnight), see tool.DateOf.
func (m *Member) Active(today time.Time) bool {
	return m != nil && m.ExpirationDate != nil && !m.ExpirationDate.Before(today)
}

// Evaluate derives status and days remaining against today.
func (m *Member) Evaluate(today time.Time) types.MemberEntitlementInfo {
	info := types.MemberEntitlementInfo{Status: types.MemberStatusExpired}
	if m == nil {
		return info
	}
	info.SubscriptionType = m.SubscriptionType
	info.ExpirationDate = m.ExpirationDate
	if m.Active(today) {
		info.Status = types.MemberStatusActive
		info.DaysRemaining = int(m.ExpirationDate.Sub(today).Hours() / 24)
	}
	return info
}

// Refresh overwrites the cached Status with the derived one.
func (m *Member) Refresh(today time.Time) {
	if m == nil {
		return
	}
	m.Status = m.Evaluate(today).Status
}

// Clone returns a shallow copy with its own pointer fields.
func (m *Member) Clone() *Member {
	if m == nil {
		return nil
	}
	cp := *m
	if m.PhotoURL != nil {
		v := *m.PhotoURL
		cp.PhotoURL = &v
	}
	if m.SubscriptionType != nil {
		v := *m.SubscriptionType
		cp.SubscriptionType = &v
	}
	if m.ExpirationDate != nil {
		v := *m.ExpirationDate
		cp.ExpirationDate = &v
	}
	if m.LastAppliedRef != nil {
		v := *m.LastAppliedRef
		cp.LastAppliedRef = &v
	}
	return &cp
}
