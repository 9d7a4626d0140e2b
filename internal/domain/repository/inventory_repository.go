package repository

import (
	"context"

	"github.com/jhoicas/storefront-cart/internal/domain/entity"
)

// InventoryRepository puerto de lectura del stock multi-ubicación.
// El carrito nunca escribe inventario.
type InventoryRepository interface {
	ListByVariant(ctx context.Context, variantID string) ([]entity.InventoryRecord, error)
	ListByVariants(ctx context.Context, variantIDs []string) ([]entity.InventoryRecord, error)
}
