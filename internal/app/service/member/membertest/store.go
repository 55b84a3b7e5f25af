// Package membertest provides an in-memory member.Store for tests.
package membertest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/fatflowers/gympass/internal/app/service/member"
	"github.com/fatflowers/gympass/internal/models"
)

// Store keeps members and purchases in memory. Transactions are serialized
// and staged writes are applied only when fn returns nil.
type Store struct {
	mu        sync.Mutex
	txMu      sync.Mutex
	members   map[string]*models.Member
	purchases map[string]*models.Purchase

	// DenyWrites makes every write fail with member.ErrPermissionDenied.
	DenyWrites atomic.Bool
	// Writes counts committed member and purchase writes.
	Writes atomic.Int64
	// RecordHook runs before a purchase is staged. A non-nil error fails
	// the write.
	RecordHook func(p *models.Purchase) error
}

func New(members ...*models.Member) *Store {
	s := &Store{
		members:   make(map[string]*models.Member),
		purchases: make(map[string]*models.Purchase),
	}
	for _, m := range members {
		s.members[m.ID] = m.Clone()
	}
	return s
}

var _ member.Store = (*Store)(nil)

func (s *Store) Get(_ context.Context, id string) (*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return nil, member.ErrNotFound
	}
	return m.Clone(), nil
}

func (s *Store) Set(_ context.Context, m *models.Member) error {
	if s.DenyWrites.Load() {
		return member.ErrPermissionDenied
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = m.Clone()
	s.Writes.Add(1)
	return nil
}

func (s *Store) Update(_ context.Context, id string, fields map[string]any) error {
	if s.DenyWrites.Load() {
		return member.ErrPermissionDenied
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return member.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "name":
			m.Name = v.(string)
		case "phone":
			m.Phone = v.(string)
		case "photo_url":
			if v == nil {
				m.PhotoURL = nil
			} else {
				p := v.(string)
				m.PhotoURL = &p
			}
		default:
			return fmt.Errorf("membertest: unsupported field %q", k)
		}
	}
	s.Writes.Add(1)
	return nil
}

func (s *Store) FindByPhones(_ context.Context, phones []string) ([]*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Member
	for _, m := range s.members {
		for _, p := range phones {
			if m.Phone == p {
				out = append(out, m.Clone())
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) List(_ context.Context, q *member.ListQuery) ([]*models.Member, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (s *Store) RunInTx(ctx context.Context, fn func(tx member.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memTx{s: s, members: map[string]*models.Member{}}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, m := range tx.members {
		s.members[id] = m
		s.Writes.Add(1)
	}
	for _, p := range tx.purchases {
		s.purchases[p.Ref] = p
		s.Writes.Add(1)
	}
	return nil
}

// Seed stores m and p directly, as another writer sharing the database
// would.
func (s *Store) Seed(m *models.Member, p *models.Purchase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m != nil {
		s.members[m.ID] = m.Clone()
	}
	if p != nil {
		cp := *p
		s.purchases[p.Ref] = &cp
	}
}

// Purchases returns a copy of the purchase ledger.
func (s *Store) Purchases() []*models.Purchase {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Purchase, 0, len(s.purchases))
	for _, p := range s.purchases {
		cp := *p
		out = append(out, &cp)
	}
	return out
}

// Member returns the stored record or nil.
func (s *Store) Member(id string) *models.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members[id].Clone()
}

type memTx struct {
	s         *Store
	members   map[string]*models.Member
	purchases []*models.Purchase
}

func (t *memTx) GetForUpdate(ctx context.Context, id string) (*models.Member, error) {
	if m, ok := t.members[id]; ok {
		return m.Clone(), nil
	}
	return t.s.Get(ctx, id)
}

func (t *memTx) PurchaseApplied(_ context.Context, ref string) (bool, error) {
	for _, p := range t.purchases {
		if p.Ref == ref {
			return true, nil
		}
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	_, ok := t.s.purchases[ref]
	return ok, nil
}

func (t *memTx) CountPurchases(_ context.Context, memberID string) (int64, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var n int64
	for _, p := range t.s.purchases {
		if p.MemberID == memberID {
			n++
		}
	}
	return n, nil
}

func (t *memTx) SaveMember(_ context.Context, m *models.Member) error {
	if t.s.DenyWrites.Load() {
		return member.ErrPermissionDenied
	}
	t.members[m.ID] = m.Clone()
	return nil
}

func (t *memTx) RecordPurchase(_ context.Context, p *models.Purchase) error {
	if t.s.DenyWrites.Load() {
		return member.ErrPermissionDenied
	}
	if t.s.RecordHook != nil {
		if err := t.s.RecordHook(p); err != nil {
			return err
		}
	}
	cp := *p
	t.purchases = append(t.purchases, &cp)
	return nil
}
