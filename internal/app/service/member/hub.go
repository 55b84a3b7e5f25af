package member

import (
	"context"
	"sync"
	"time"

	"github.com/fatflowers/gympass/internal/models"
	"github.com/fatflowers/gympass/pkg/logctx"
	"github.com/fatflowers/gympass/pkg/types"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Change describes one committed mutation of a member record.
type Change struct {
	Before *models.Member
	After  *models.Member
	Reason types.SubscriptionChangeReason
	// Ref is the purchase correlation token, empty for profile edits.
	Ref    string
	Source types.PurchaseSource
	At     time.Time
}

// Observer receives committed changes. Implementations must not block for
// long and must not fail the caller.
type Observer interface {
	Name() string
	OnMemberChanged(ctx context.Context, change *Change)
}

const observerQueueSize = 256

type NotifierParams struct {
	fx.In

	Lc        fx.Lifecycle `optional:"true"`
	Log       *zap.SugaredLogger
	Observers []Observer `group:"member_observers"`
}

type notification struct {
	ctx    context.Context
	change *Change
}

// observerQueue feeds one observer from a single goroutine so it sees
// changes in the order they were committed.
type observerQueue struct {
	o    Observer
	jobs chan notification
}

// Notifier fans committed changes out to every registered observer.
type Notifier struct {
	log    *zap.SugaredLogger
	queues []*observerQueue
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewNotifier(p NotifierParams) *Notifier {
	n := &Notifier{log: p.Log}
	for _, o := range p.Observers {
		q := &observerQueue{o: o, jobs: make(chan notification, observerQueueSize)}
		n.queues = append(n.queues, q)
		n.wg.Add(1)
		go n.run(q)
	}
	if p.Lc != nil {
		p.Lc.Append(fx.Hook{OnStop: n.Close})
	}
	return n
}

func (n *Notifier) run(q *observerQueue) {
	defer n.wg.Done()
	for j := range q.jobs {
		n.deliver(q.o, j)
	}
}

func (n *Notifier) deliver(o Observer, j notification) {
	defer func() {
		if r := recover(); r != nil {
			logctx.FromCtx(j.ctx, n.log).Errorw("member observer panicked", "observer", o.Name(), "panic", r)
		}
	}()
	o.OnMemberChanged(j.ctx, j.change)
}

// Notify queues change for each observer, detached from the caller's
// cancellation. Changes reach an observer in Notify order. A full queue
// drops the change for that observer only.
func (n *Notifier) Notify(ctx context.Context, change *Change) {
	if n == nil || change == nil || change.After == nil {
		return
	}
	if change.At.IsZero() {
		change.At = time.Now()
	}
	j := notification{ctx: logctx.Detach(ctx), change: change}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		logctx.FromCtx(ctx, n.log).Warnw("member change after notifier close", "member_id", change.After.ID)
		return
	}
	for _, q := range n.queues {
		select {
		case q.jobs <- j:
		default:
			logctx.FromCtx(ctx, n.log).Warnw("member observer queue full, change dropped",
				"observer", q.o.Name(), "member_id", change.After.ID, "ref", change.Ref)
		}
	}
}

// Close stops accepting changes and drains the queues or gives up when ctx
// ends.
func (n *Notifier) Close(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		for _, q := range n.queues {
			close(q.jobs)
		}
	}
	n.mu.Unlock()

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Hub delivers live member snapshots to in-process subscribers, e.g. SSE
// streams. Slow subscribers miss intermediate snapshots, never the latest.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

type subscriber struct {
	ch chan *models.Member
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*subscriber]struct{})}
}

func (h *Hub) Name() string { return "hub" }

// Subscribe registers for changes of memberID. The returned cancel func
// must be called to release the subscription; it closes the channel.
func (h *Hub) Subscribe(memberID string) (<-chan *models.Member, func()) {
	s := &subscriber{ch: make(chan *models.Member, 1)}
	h.mu.Lock()
	if h.subs[memberID] == nil {
		h.subs[memberID] = make(map[*subscriber]struct{})
	}
	h.subs[memberID][s] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[memberID], s)
			if len(h.subs[memberID]) == 0 {
				delete(h.subs, memberID)
			}
			h.mu.Unlock()
			close(s.ch)
		})
	}
}

// Publish delivers m to subscribers of m.ID.
func (h *Hub) Publish(m *models.Member) {
	if m == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[m.ID] {
		snapshot := m.Clone()
		select {
		case s.ch <- snapshot:
		default:
			// replace the stale snapshot
			select {
			case <-s.ch:
			default:
			}
			s.ch <- snapshot
		}
	}
}

func (h *Hub) OnMemberChanged(_ context.Context, change *Change) {
	h.Publish(change.After)
}
