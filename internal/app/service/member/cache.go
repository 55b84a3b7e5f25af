package member

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fatflowers/gympass/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	memberKeyPrefix = "member:"
	defaultCacheTTL = 5 * time.Minute
)

// CachedStore is a read-through redis cache in front of a Store. Cache
// errors degrade to the backing store. Locked reads inside RunInTx always
// hit the backing store.
type CachedStore struct {
	Store
	client *redis.Client
	ttl    time.Duration
	log    *zap.SugaredLogger
}

func NewCachedStore(inner Store, client *redis.Client, ttl time.Duration, log *zap.SugaredLogger) *CachedStore {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedStore{Store: inner, client: client, ttl: ttl, log: log}
}

func (c *CachedStore) key(id string) string { return memberKeyPrefix + id }

func (c *CachedStore) Get(ctx context.Context, id string) (*models.Member, error) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err == nil {
		var m models.Member
		if err := json.Unmarshal(data, &m); err == nil {
			return &m, nil
		}
		c.log.Warnw("drop undecodable cached member", "member_id", id)
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warnw("member cache get failed", "member_id", id, "err", err)
	}

	m, err := c.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.put(ctx, m)
	return m, nil
}

func (c *CachedStore) Set(ctx context.Context, m *models.Member) error {
	if err := c.Store.Set(ctx, m); err != nil {
		return err
	}
	c.Invalidate(ctx, m.ID)
	return nil
}

func (c *CachedStore) Update(ctx context.Context, id string, fields map[string]any) error {
	if err := c.Store.Update(ctx, id, fields); err != nil {
		return err
	}
	c.Invalidate(ctx, id)
	return nil
}

func (c *CachedStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	var touched []string
	err := c.Store.RunInTx(ctx, func(tx Tx) error {
		return fn(&trackingTx{Tx: tx, touched: &touched})
	})
	if err != nil {
		return err
	}
	c.Invalidate(ctx, touched...)
	return nil
}

// Invalidate drops cached records. Failures are logged only.
func (c *CachedStore) Invalidate(ctx context.Context, ids ...string) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, c.key(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.Warnw("member cache invalidate failed", "member_ids", ids, "err", err)
	}
}

func (c *CachedStore) put(ctx context.Context, m *models.Member) {
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(m.ID), data, c.ttl).Err(); err != nil {
		c.log.Warnw("member cache set failed", "member_id", m.ID, "err", err)
	}
}

type trackingTx struct {
	Tx
	touched *[]string
}

func (t *trackingTx) SaveMember(ctx context.Context, m *models.Member) error {
	if err := t.Tx.SaveMember(ctx, m); err != nil {
		return err
	}
	*t.touched = append(*t.touched, m.ID)
	return nil
}
