package member

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fatflowers/gympass/internal/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHub_DeliversLatestSnapshot(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("u1")
	defer cancel()

	h.Publish(&models.Member{ID: "u1", Name: "first"})
	h.Publish(&models.Member{ID: "u1", Name: "second"})
	h.Publish(&models.Member{ID: "u2", Name: "other"})

	got := <-ch
	require.Equal(t, "second", got.Name)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected snapshot %v", extra)
	default:
	}
}

func TestHub_CancelClosesChannel(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("u1")
	cancel()
	cancel()

	_, ok := <-ch
	require.False(t, ok)
	// no panic on publish after cancel
	h.Publish(&models.Member{ID: "u1"})
}

type recordingObserver struct {
	got chan *Change
}

func (r *recordingObserver) Name() string { return "recording" }

func (r *recordingObserver) OnMemberChanged(_ context.Context, c *Change) { r.got <- c }

type panickingObserver struct{}

func (panickingObserver) Name() string { return "panicking" }

func (panickingObserver) OnMemberChanged(context.Context, *Change) { panic("boom") }

func TestNotifier_FansOutAndSurvivesPanics(t *testing.T) {
	rec := &recordingObserver{got: make(chan *Change, 1)}
	n := NewNotifier(NotifierParams{Log: zap.NewNop().Sugar(), Observers: []Observer{panickingObserver{}, rec}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n.Notify(ctx, &Change{After: &models.Member{ID: "u1"}})

	select {
	case c := <-rec.got:
		require.Equal(t, "u1", c.After.ID)
		require.False(t, c.At.IsZero())
	case <-time.After(time.Second):
		t.Fatal("observer not notified")
	}
}

// slowFirstObserver stalls on the first change so a goroutine-per-change
// fan-out would let later changes overtake it.
type slowFirstObserver struct {
	mu  sync.Mutex
	got []string
}

func (o *slowFirstObserver) Name() string { return "slow-first" }

func (o *slowFirstObserver) OnMemberChanged(_ context.Context, c *Change) {
	if c.Ref == "ref-0" {
		time.Sleep(50 * time.Millisecond)
	}
	o.mu.Lock()
	o.got = append(o.got, c.Ref)
	o.mu.Unlock()
}

func TestNotifier_PreservesOrderPerObserver(t *testing.T) {
	obs := &slowFirstObserver{}
	n := NewNotifier(NotifierParams{Log: zap.NewNop().Sugar(), Observers: []Observer{obs}})

	var want []string
	for i := 0; i < 20; i++ {
		ref := fmt.Sprintf("ref-%d", i)
		want = append(want, ref)
		n.Notify(context.Background(), &Change{After: &models.Member{ID: "u1"}, Ref: ref})
	}
	require.NoError(t, n.Close(context.Background()))

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Equal(t, want, obs.got)
}

func TestNotifier_DropsChangesAfterClose(t *testing.T) {
	rec := &recordingObserver{got: make(chan *Change, 1)}
	n := NewNotifier(NotifierParams{Log: zap.NewNop().Sugar(), Observers: []Observer{rec}})
	require.NoError(t, n.Close(context.Background()))
	require.NoError(t, n.Close(context.Background()))

	n.Notify(context.Background(), &Change{After: &models.Member{ID: "u1"}})
	require.Empty(t, rec.got)
}
