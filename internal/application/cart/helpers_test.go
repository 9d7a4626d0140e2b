package cart_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/storefront-cart/internal/application/cart"
	"github.com/jhoicas/storefront-cart/internal/application/inventory"
	"github.com/jhoicas/storefront-cart/internal/domain/entity"
	"github.com/jhoicas/storefront-cart/internal/infrastructure/memory"
)

type fixture struct {
	store   *memory.CartStore
	stock   *memory.InventoryStore
	catalog *memory.Catalog
	cache   *fakeCache
	metrics *fakeMetrics
	uc      *cart.UseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.NewCartStore(),
		stock: memory.NewInventoryStore(),
		catalog: memory.NewCatalog(
			entity.Variant{ID: "v1", ProductID: "p1", SKU: "CAM-M", Name: "Camiseta M", Price: decimal.RequireFromString("10.50")},
			entity.Variant{ID: "v2", ProductID: "p1", SKU: "CAM-L", Name: "Camiseta L", Price: decimal.RequireFromString("12.00")},
			entity.Variant{ID: "v3", ProductID: "p2", SKU: "GOR-U", Name: "Gorra", Price: decimal.RequireFromString("5.25")},
		),
		cache:   newFakeCache(),
		metrics: &fakeMetrics{ops: map[string]int{}},
	}
	f.stock.Put("v1", "bodega", 10, 0)
	f.stock.Put("v2", "bodega", 5, 8)
	f.stock.Put("v2", "tienda", 3, 1)
	f.stock.Put("v3", "bodega", 2, 2)
	f.uc = cart.NewUseCase(f.store, f.catalog, inventory.NewStockAggregator(f.stock), cart.Options{
		MaxLineQuantity: 20,
		Cache:           f.cache,
		Metrics:         f.metrics,
	})
	return f
}

func guest(session string) cart.Caller { return cart.Caller{SessionID: session} }

func member(user, session string) cart.Caller { return cart.Caller{UserID: user, SessionID: session} }

// fakeCache LineCache en memoria con la misma semántica de generación que la de Redis.
type fakeCache struct {
	mu            sync.Mutex
	data          map[entity.OwnerKey][]*entity.CartLine
	gen           map[entity.OwnerKey]int64
	hits          int
	invalidations int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[entity.OwnerKey][]*entity.CartLine{}, gen: map[entity.OwnerKey]int64{}}
}

func (c *fakeCache) Get(_ context.Context, owner entity.OwnerKey) ([]*entity.CartLine, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines, ok := c.data[owner]
	if !ok {
		return nil, c.gen[owner], cart.ErrCacheMiss
	}
	c.hits++
	return lines, c.gen[owner], nil
}

func (c *fakeCache) Set(_ context.Context, owner entity.OwnerKey, generation int64, lines []*entity.CartLine) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen[owner] != generation {
		return nil
	}
	c.data[owner] = lines
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, owners ...entity.OwnerKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range owners {
		c.gen[o]++
		delete(c.data, o)
	}
	c.invalidations++
	return nil
}

func (c *fakeCache) cached(owner entity.OwnerKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[owner]
	return ok
}

type fakeMetrics struct {
	mu         sync.Mutex
	ops        map[string]int
	failures   int
	migrated   int
	recovered  int
	unresolved int
}

func (m *fakeMetrics) ObserveOperation(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops[op]++
	if err != nil {
		m.failures++
	}
}

func (m *fakeMetrics) ObserveMigration(lines int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.migrated += lines
}

func (m *fakeMetrics) ObserveRecovery(recovered bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if recovered {
		m.recovered++
	} else {
		m.unresolved++
	}
}

var errStockDown = errors.New("inventario caído")

// brokenStock StockReader que siempre falla.
type brokenStock struct{}

func (brokenStock) AvailableFor(context.Context, string) (entity.StockSnapshot, error) {
	return entity.StockSnapshot{}, errStockDown
}

func (brokenStock) AvailableForMany(context.Context, []string) (map[string]entity.StockSnapshot, error) {
	return nil, errStockDown
}
