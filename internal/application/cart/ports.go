package cart

import (
	"context"
	"errors"

	"github.com/jhoicas/storefront-cart/internal/domain/entity"
)

// ErrCacheMiss la caché no tiene la vista del dueño.
var ErrCacheMiss = errors.New("cache miss")

// LineCache caché de las líneas por dueño con invalidación explícita.
// Get devuelve, también en un miss, la generación vigente; Set solo escribe si la
// generación no cambió, así una lectura lenta no pisa una invalidación posterior.
type LineCache interface {
	Get(ctx context.Context, owner entity.OwnerKey) ([]*entity.CartLine, int64, error)
	Set(ctx context.Context, owner entity.OwnerKey, generation int64, lines []*entity.CartLine) error
	Invalidate(ctx context.Context, owners ...entity.OwnerKey) error
}

// StockReader lectura de disponibilidad (lo implementa *inventory.StockAggregator).
type StockReader interface {
	AvailableFor(ctx context.Context, variantID string) (entity.StockSnapshot, error)
	AvailableForMany(ctx context.Context, variantIDs []string) (map[string]entity.StockSnapshot, error)
}

// Metrics contadores de operaciones del carrito (lo implementa metrics.Registry).
type Metrics interface {
	ObserveOperation(op string, err error)
	ObserveMigration(lines int)
	ObserveRecovery(recovered bool)
}

type nopMetrics struct{}

func (nopMetrics) ObserveOperation(string, error) {}

func (nopMetrics) ObserveMigration(int) {}

func (nopMetrics) ObserveRecovery(bool) {}
