package auditlog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fatflowers/gympass/internal/models"
	"github.com/fatflowers/gympass/pkg/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRecordingService() (*Service, chan any) {
	rows := make(chan any, 8)
	s := New(nil, zap.NewNop().Sugar())
	s.save = func(_ context.Context, row any) error {
		rows <- row
		return nil
	}
	return s, rows
}

func next(t *testing.T, rows chan any) any {
	t.Helper()
	select {
	case r := <-rows:
		return r
	case <-time.After(time.Second):
		t.Fatal("no row saved")
		return nil
	}
}

func TestReceivedThenFinish(t *testing.T) {
	s, rows := newRecordingService()
	uid := "u1"

	row := s.Received(context.Background(), models.PaymentNotificationKindReturn, "stripe", &uid, "ref-1", map[string]string{"plan_id": "standard"})
	saved := next(t, rows).(*models.PaymentNotificationLog)
	require.Equal(t, models.PaymentNotificationLogStatusReceived, saved.Status)
	require.Equal(t, "ref-1", saved.Ref)
	require.JSONEq(t, `{"plan_id":"standard"}`, string(saved.Data))

	s.Finish(context.Background(), row, nil, errors.New("denied"))
	done := next(t, rows).(*models.PaymentNotificationLog)
	require.Equal(t, row.ID, done.ID)
	require.Equal(t, models.PaymentNotificationLogStatusHandleFailed, done.Status)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(*done.Result, &payload))
	require.Equal(t, "denied", payload["error"])
}

func TestClose_DrainsQueue(t *testing.T) {
	s, rows := newRecordingService()
	for i := 0; i < 3; i++ {
		s.SaveSubscriptionLog(context.Background(), &models.SubscriptionLog{MemberID: "u1"})
	}
	require.NoError(t, s.Close(context.Background()))
	require.Len(t, rows, 3)
}

func TestSaveSubscriptionLog_FillsDefaults(t *testing.T) {
	s, rows := newRecordingService()
	s.SaveSubscriptionLog(context.Background(), &models.SubscriptionLog{MemberID: "u1", Reason: types.SubscriptionChangeReasonPurchase})

	saved := next(t, rows).(*models.SubscriptionLog)
	require.NotEmpty(t, saved.ID)
	require.NotNil(t, saved.Extra)

	s.SaveSubscriptionLog(context.Background(), nil)
	select {
	case r := <-rows:
		t.Fatalf("unexpected row %v", r)
	case <-time.After(50 * time.Millisecond):
	}
}
