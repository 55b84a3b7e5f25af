package member_test

import (
	"context"
	"testing"
	"time"

	"github.com/fatflowers/gympass/internal/app/service/member"
	"github.com/fatflowers/gympass/internal/app/service/member/membertest"
	"github.com/fatflowers/gympass/internal/models"
	"github.com/fatflowers/gympass/pkg/apperr"
	cfgpkg "github.com/fatflowers/gympass/pkg/config"
	"github.com/fatflowers/gympass/pkg/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(store member.Store) (*member.Service, *member.Hub) {
	log := zap.NewNop().Sugar()
	hub := member.NewHub()
	n := member.NewNotifier(member.NotifierParams{Log: log, Observers: []member.Observer{hub}})
	return member.NewService(&cfgpkg.Config{Timezone: "UTC"}, store, member.NewLocker(), n, log), hub
}

func TestService_GetDerivesStatus(t *testing.T) {
	past := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	store := membertest.New(&models.Member{ID: "u1", ExpirationDate: &past, Status: types.MemberStatusActive})
	svc, _ := newService(store)

	m, info, err := svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, types.MemberStatusExpired, m.Status)
	require.Equal(t, types.MemberStatusExpired, info.Status)
	require.Zero(t, info.DaysRemaining)
}

func TestService_UpdateProfileTouchesProfileOnly(t *testing.T) {
	exp := time.Now().UTC().AddDate(0, 0, 10)
	title := "Premium"
	store := membertest.New(&models.Member{ID: "u1", Name: "Ana", ExpirationDate: &exp, SubscriptionType: &title})
	svc, hub := newService(store)
	ch, cancel := hub.Subscribe("u1")
	defer cancel()

	name := "  Ana Maria "
	m, err := svc.UpdateProfile(context.Background(), "u1", &member.ProfileUpdate{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Ana Maria", m.Name)
	require.Equal(t, "Premium", *m.SubscriptionType)
	require.Equal(t, types.MemberStatusActive, m.Status)

	select {
	case got := <-ch:
		require.Equal(t, "Ana Maria", got.Name)
	case <-time.After(time.Second):
		t.Fatal("no live update")
	}
}

func TestService_UpdateProfileValidation(t *testing.T) {
	svc, _ := newService(membertest.New(&models.Member{ID: "u1"}))

	_, err := svc.UpdateProfile(context.Background(), "u1", &member.ProfileUpdate{})
	require.ErrorIs(t, err, apperr.ErrValidation)

	blank := " "
	_, err = svc.UpdateProfile(context.Background(), "u1", &member.ProfileUpdate{Name: &blank})
	require.ErrorIs(t, err, apperr.ErrValidation)

	name := "Ana"
	_, err = svc.UpdateProfile(context.Background(), "missing", &member.ProfileUpdate{Name: &name})
	require.ErrorIs(t, err, member.ErrNotFound)
}

func TestService_ListRejectsUnknownColumns(t *testing.T) {
	svc, _ := newService(membertest.New(&models.Member{ID: "u1"}, &models.Member{ID: "u2"}))

	_, _, err := svc.List(context.Background(), &member.ListQuery{Filters: []*types.CommonFilter{
		{Field: "1=1; drop table member", Operator: types.CommonFilterOperatorEq, Values: []any{"x"}},
	}})
	require.ErrorIs(t, err, apperr.ErrValidation)

	items, total, err := svc.List(context.Background(), nil)
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, items, 2)
}
