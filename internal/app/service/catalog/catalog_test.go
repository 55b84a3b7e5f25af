package catalog

import (
	"testing"

	"github.com/fatflowers/gympass/pkg/apperr"
	"github.com/fatflowers/gympass/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsAndOrder(t *testing.T) {
	c, err := New([]*types.Plan{
		{ID: "premium", Title: "Premium", Price: types.PlanPrice{Amount: "250 RON"}, Popular: true},
		{ID: "standard", Title: "Standard", Price: types.PlanPrice{Amount: "150 RON"}, DurationDays: 60},
	})
	require.NoError(t, err)

	plans := c.ListPlans()
	require.Len(t, plans, 2)
	require.Equal(t, "premium", plans[0].ID)
	require.Equal(t, types.DefaultPlanDurationDays, plans[0].DurationDays)
	require.Equal(t, 60, plans[1].DurationDays)

	p, err := c.GetPlan("standard")
	require.NoError(t, err)
	require.Equal(t, "Standard", p.Title)
}

func TestNew_RejectsDuplicateAndEmptyIDs(t *testing.T) {
	_, err := New([]*types.Plan{{ID: "a"}, {ID: "a"}})
	require.ErrorIs(t, err, ErrInvalidCatalog)

	_, err = New([]*types.Plan{{ID: " "}})
	require.ErrorIs(t, err, ErrInvalidCatalog)
	require.ErrorIs(t, err, apperr.ErrConfigurationMissing)
}

func TestGetPlan_NotFound(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)
	_, err = c.GetPlan("gold")
	require.ErrorIs(t, err, ErrPlanNotFound)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestParsePrice(t *testing.T) {
	amount, currency, err := ParsePrice("150 RON")
	require.NoError(t, err)
	require.Equal(t, int64(15000), amount)
	require.Equal(t, "RON", currency)

	amount, currency, err = ParsePrice("  99   eur ")
	require.NoError(t, err)
	require.Equal(t, int64(9900), amount)
	require.Equal(t, "EUR", currency)

	amount, _, err = ParsePrice("92233720368547758 RON")
	require.NoError(t, err)
	require.Equal(t, int64(9223372036854775800), amount)

	for _, bad := range []string{"abc RON", "150", "", "0 RON", "-5 RON", "150 RON extra", "12.5 RON", "150 R1N", "92233720368547759 RON", "9223372036854775807 RON"} {
		_, _, err := ParsePrice(bad)
		require.ErrorIs(t, err, ErrInvalidPriceFormat, "input %q", bad)
		require.ErrorIs(t, err, apperr.ErrValidation, "input %q", bad)
	}
}
