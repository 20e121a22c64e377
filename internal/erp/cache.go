package erp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cached decorates a Client with a Redis read-through cache for the
// menu, item and stock reads. Menu fetches walk every paged OData
// collection and terminals poll them constantly, so a short TTL takes
// most of that load off the back office. Invoice posting is never
// cached. Any Redis failure falls through to the inner client; the
// cache is an optimization, not a dependency.
type Cached struct {
	inner Client
	rdb   *redis.Client
	ttl   time.Duration
}

// NewCached wraps inner. When rdb is nil the inner client is returned
// unchanged so callers can wire the decorator unconditionally.
func NewCached(inner Client, rdb *redis.Client, ttl time.Duration) Client {
	if rdb == nil {
		return inner
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cached{inner: inner, rdb: rdb, ttl: ttl}
}

func (c *Cached) Items(ctx context.Context) ([]Item, error) {
	var items []Item
	if c.lookup(ctx, "erp:items", &items) {
		return items, nil
	}
	items, err := c.inner.Items(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, "erp:items", items)
	return items, nil
}

func (c *Cached) Menu(ctx context.Context) (*Menu, error) {
	var menu Menu
	if c.lookup(ctx, "erp:menu", &menu) {
		return &menu, nil
	}
	fresh, err := c.inner.Menu(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, "erp:menu", fresh)
	return fresh, nil
}

func (c *Cached) Stock(ctx context.Context) (map[string]float64, error) {
	var stock map[string]float64
	if c.lookup(ctx, "erp:stock", &stock) {
		return stock, nil
	}
	stock, err := c.inner.Stock(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, "erp:stock", stock)
	return stock, nil
}

// CreateInvoice always reaches the back office and invalidates the
// stock cache, since posting a sale changes inventory.
func (c *Cached) CreateInvoice(ctx context.Context, req InvoiceRequest) (*InvoiceResult, error) {
	res, err := c.inner.CreateInvoice(ctx, req)
	if err == nil {
		c.rdb.Del(ctx, "erp:stock")
	}
	return res, err
}

func (c *Cached) lookup(ctx context.Context, key string, out any) bool {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (c *Cached) store(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, key, raw, c.ttl)
}
