package types

// DefaultPlanDurationDays is applied to plans configured without a duration.
const DefaultPlanDurationDays = 30

type PlanPrice struct {
	// Amount is the display price, e.g. "150 RON".
	Amount   string `json:"amount" mapstructure:"amount"`
	Currency string `json:"currency" mapstructure:"currency"`
	Period   string `json:"period" mapstructure:"period"`
}

// Plan is a purchasable catalog entry. Plans are immutable at runtime.
type Plan struct {
	ID               string    `json:"id" mapstructure:"id"`
	Title            string    `json:"title" mapstructure:"title"`
	Price            PlanPrice `json:"price" mapstructure:"price"`
	DurationDays     int       `json:"duration_days" mapstructure:"duration_days"`
	Benefits         []string  `json:"benefits" mapstructure:"benefits"`
	Popular          bool      `json:"popular" mapstructure:"popular"`
	ExternalPriceRef string    `json:"external_price_ref,omitempty" mapstructure:"external_price_ref"`
}
