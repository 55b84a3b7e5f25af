package firebase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fatflowers/gympass/internal/app/service/member"
	"github.com/fatflowers/gympass/internal/models"
	cfgpkg "github.com/fatflowers/gympass/pkg/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeDocs struct {
	id   string
	data map[string]any
	err  error
}

func (f *fakeDocs) Merge(_ context.Context, id string, data map[string]any) error {
	f.id, f.data = id, data
	return f.err
}

func newMirror(w docWriter) *Mirror {
	return &Mirror{
		cfg: &cfgpkg.Config{Timezone: "UTC"},
		w:   w,
		log: zap.NewNop().Sugar(),
		now: func() time.Time { return time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC) },
	}
}

func TestMirror_WritesEvaluatedEntitlement(t *testing.T) {
	docs := &fakeDocs{}
	m := newMirror(docs)
	exp := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	title := "Standard"

	require.NoError(t, m.Write(context.Background(), &models.Member{ID: "u1", Name: "Ana", ExpirationDate: &exp, SubscriptionType: &title}))
	require.Equal(t, "u1", docs.id)
	require.Equal(t, "active", docs.data["status"])
	require.Equal(t, 5, docs.data["days_remaining"])
	require.Equal(t, "2025-06-15", docs.data["expiration_date"])
	require.Equal(t, "Standard", docs.data["subscription_type"])
}

func TestMirror_ClassifiesPermissionDenied(t *testing.T) {
	m := newMirror(&fakeDocs{err: status.Error(codes.PermissionDenied, "Missing or insufficient permissions.")})
	err := m.Write(context.Background(), &models.Member{ID: "u1"})
	require.ErrorIs(t, err, member.ErrPermissionDenied)

	m = newMirror(&fakeDocs{err: errors.New("boom")})
	err = m.Write(context.Background(), &models.Member{ID: "u1"})
	require.Error(t, err)
	require.NotErrorIs(t, err, member.ErrPermissionDenied)
}

func TestMirror_DisabledIsNoop(t *testing.T) {
	m := NewMirror(&cfgpkg.Config{}, &Clients{}, zap.NewNop().Sugar())
	m.OnMemberChanged(context.Background(), &member.Change{After: &models.Member{ID: "u1"}})
}

func TestVerifier_NotConfigured(t *testing.T) {
	v := NewVerifier(&Clients{})
	require.False(t, v.Configured())
	_, err := v.Verify(context.Background(), "token")
	require.ErrorIs(t, err, ErrNotConfigured)
}
