package catalog

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fatflowers/gympass/pkg/apperr"
	cfgpkg "github.com/fatflowers/gympass/pkg/config"
	"github.com/fatflowers/gympass/pkg/types"
	"go.uber.org/fx"
)

var (
	ErrPlanNotFound       = apperr.New(apperr.ErrNotFound, "plan not found")
	ErrInvalidPriceFormat = apperr.New(apperr.ErrValidation, "invalid price format")
	ErrInvalidCatalog     = apperr.New(apperr.ErrConfigurationMissing, "invalid plan catalog")
)

// Catalog is the fixed, ordered set of purchasable plans.
type Catalog struct {
	plans []*types.Plan
	byID  map[string]*types.Plan
}

// New validates plans and defaults missing durations. Plan ids must be
// non-empty and unique.
func New(plans []*types.Plan) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]*types.Plan, len(plans))}
	for i, p := range plans {
		if p == nil {
			return nil, fmt.Errorf("%w: plan #%d is empty", ErrInvalidCatalog, i)
		}
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return nil, fmt.Errorf("%w: plan #%d has no id", ErrInvalidCatalog, i)
		}
		if _, dup := c.byID[id]; dup {
			return nil, fmt.Errorf("%w: duplicate plan id %q", ErrInvalidCatalog, id)
		}
		cp := *p
		cp.ID = id
		cp.Benefits = append([]string(nil), p.Benefits...)
		if cp.DurationDays <= 0 {
			cp.DurationDays = types.DefaultPlanDurationDays
		}
		c.plans = append(c.plans, &cp)
		c.byID[id] = &cp
	}
	return c, nil
}

func NewFromConfig(cfg *cfgpkg.Config) (*Catalog, error) {
	return New(cfg.Plans)
}

func (c *Catalog) GetPlan(id string) (*types.Plan, error) {
	p, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	return p, nil
}

// ListPlans returns plans in configured order.
func (c *Catalog) ListPlans() []*types.Plan {
	return append([]*types.Plan(nil), c.plans...)
}

// ParsePrice parses a display price such as "150 RON" into minor units and
// the currency code. The amount must be a positive whole number whose minor
// units fit in an int64.
func ParsePrice(s string) (int64, string, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidPriceFormat, s)
	}
	amount, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || amount <= 0 || amount > math.MaxInt64/100 {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidPriceFormat, s)
	}
	currency := strings.ToUpper(fields[1])
	if len(currency) != 3 || strings.IndexFunc(currency, func(r rune) bool { return r < 'A' || r > 'Z' }) >= 0 {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidPriceFormat, s)
	}
	return amount * 100, currency, nil
}

var Module = fx.Options(
	fx.Provide(NewFromConfig),
)
