package tool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDateOf_UsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Bucharest")
	require.NoError(t, err)

	// 22:30 UTC on Jan 31 is already Feb 1 in Bucharest.
	ts := time.Date(2025, 1, 31, 22, 30, 0, 0, time.UTC)
	require.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), DateOf(ts, loc))
	require.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), DateOf(ts, nil))
}

func TestAddDays_CrossesMonths(t *testing.T) {
	d := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	require.Equal(t, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), AddDays(d, 30))
	require.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), AddDays(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), 30))
}
