package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPhoneVariants(t *testing.T) {
	want := []string{"+40712345678", "40712345678", "0712345678", "712345678", "0040712345678"}
	for _, in := range []string{"+40712345678", "40712345678", "0712345678", "712345678", "+40 712 345 678", "0040-712-345-678"} {
		require.Equal(t, want, PhoneVariants(in, "40"), "input %q", in)
	}
	require.Nil(t, PhoneVariants("", "40"))
	require.Nil(t, PhoneVariants("n/a", "40"))
}

func TestCanonicalPhone(t *testing.T) {
	require.Equal(t, "+40712345678", CanonicalPhone("0712 345 678", ""))
	require.Equal(t, "+33612345678", CanonicalPhone("+33 6 12 34 56 78", "33"))
	require.Empty(t, CanonicalPhone("", "40"))
}
