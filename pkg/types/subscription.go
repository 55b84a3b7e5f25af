package types

import "time"

type MemberStatus string

const (
	MemberStatusActive  MemberStatus = "active"
	MemberStatusExpired MemberStatus = "expired"
)

type SubscriptionChangeReason string

const (
	SubscriptionChangeReasonPurchase  SubscriptionChangeReason = "purchase"
	SubscriptionChangeReasonGift      SubscriptionChangeReason = "gift"
	SubscriptionChangeReasonMigration SubscriptionChangeReason = "migration"
	SubscriptionChangeReasonOnboard   SubscriptionChangeReason = "onboard"
	SubscriptionChangeReasonProfile   SubscriptionChangeReason = "profile"
)

// PurchaseSource tells which path committed a purchase.
type PurchaseSource string

const (
	PurchaseSourceRedirect PurchaseSource = "redirect"
	PurchaseSourceWebhook  PurchaseSource = "webhook"
	PurchaseSourceAdmin    PurchaseSource = "admin"
)

type PaymentProvider string

const (
	PaymentProviderStripe PaymentProvider = "stripe"
	PaymentProviderInner  PaymentProvider = "inner"
)

// MemberEntitlementInfo is the evaluated view of a member's entitlement.
type MemberEntitlementInfo struct {
	Status           MemberStatus `json:"status"`
	SubscriptionType *string      `json:"subscription_type"`
	ExpirationDate   *time.Time   `json:"expiration_date"`
	DaysRemaining    int          `json:"days_remaining"`
}
