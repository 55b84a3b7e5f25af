package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIsPlaceholder(t *testing.T) {
	cases := map[string]bool{
		"":                       true,
		"   ":                    true,
		"your_stripe_secret_key": true,
		"YOUR-RESEND-KEY":        true,
		"<api-key>":              true,
		"changeme":               true,
		"sk_test_placeholder":    true,
		"sk_test_51Habc":         false,
		"re_123456":              false,
		"gym@example.com":        false,
	}
	for in, want := range cases {
		require.Equal(t, want, IsPlaceholder(in), "input %q", in)
		require.Equal(t, !want, Configured(in), "input %q", in)
	}
}

func TestLocation_FallsBackToUTC(t *testing.T) {
	require.Equal(t, time.UTC, (&Config{}).Location())
	require.Equal(t, time.UTC, (&Config{Timezone: "Mars/Olympus"}).Location())

	var nilCfg *Config
	require.Equal(t, time.UTC, nilCfg.Location())
}

func TestNew_UsesDefaultCatalog(t *testing.T) {
	t.Setenv("APP_CONFIG_FILE", t.TempDir()+"/missing.yaml")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_from_env")

	c, err := New()
	require.NoError(t, err)
	require.Len(t, c.Plans, 3)
	require.Equal(t, "sk_test_from_env", c.Stripe.SecretKey)
	require.True(t, c.Stripe.VerifyReturn)
	require.Equal(t, "40", c.App.CountryCode)
}
