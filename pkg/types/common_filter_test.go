package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommonFilter_Validate(t *testing.T) {
	cols := map[string]bool{"plan_id": true, "created_at": true}

	require.NoError(t, (&CommonFilter{Field: "plan_id", Operator: CommonFilterOperatorIn, Values: []any{"premium", "student"}}).Validate(cols))
	require.NoError(t, (&CommonFilter{Field: "created_at", Operator: CommonFilterOperatorDateRange, Values: []any{"2025-06-01", "2025-07-01"}}).Validate(cols))

	require.ErrorContains(t, (&CommonFilter{Field: "password", Operator: CommonFilterOperatorEq, Values: []any{"x"}}).Validate(cols), "not supported")
	require.ErrorContains(t, (&CommonFilter{Field: "plan_id", Operator: "like", Values: []any{"x"}}).Validate(cols), "operator")
	require.ErrorContains(t, (&CommonFilter{Field: "created_at", Operator: CommonFilterOperatorRange, Values: []any{"2025-06-01"}}).Validate(cols), "needs 2")
	require.Error(t, (*CommonFilter)(nil).Validate(cols))
}
