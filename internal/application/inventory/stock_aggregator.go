package inventory

import (
	"context"
	"fmt"

	"github.com/jhoicas/storefront-cart/internal/domain/entity"
	"github.com/jhoicas/storefront-cart/internal/domain/repository"
)

// StockAggregator calcula la cantidad disponible para la venta de una variante
// sumando todas las ubicaciones. Es una proyección de solo lectura.
type StockAggregator struct {
	repo repository.InventoryRepository
}

// NewStockAggregator construye el agregador sobre el puerto de inventario.
func NewStockAggregator(repo repository.InventoryRepository) *StockAggregator {
	return &StockAggregator{repo: repo}
}

// AvailableFor devuelve Σ max(0, stock_on_hand - reserved) por ubicación.
// Una ubicación sobrerreservada aporta 0; no resta a las demás.
// Sin registros de inventario la disponibilidad es 0 (no es error).
func (a *StockAggregator) AvailableFor(ctx context.Context, variantID string) (entity.StockSnapshot, error) {
	records, err := a.repo.ListByVariant(ctx, variantID)
	if err != nil {
		return entity.StockSnapshot{}, fmt.Errorf("available for %s: %w", variantID, err)
	}
	return entity.StockSnapshot{VariantID: variantID, AvailableQuantity: sumSellable(records)}, nil
}

// AvailableForMany resuelve varias variantes con una sola lectura al inventario.
// Toda variante pedida tiene entrada en el resultado, aunque no tenga registros.
func (a *StockAggregator) AvailableForMany(ctx context.Context, variantIDs []string) (map[string]entity.StockSnapshot, error) {
	out := make(map[string]entity.StockSnapshot, len(variantIDs))
	if len(variantIDs) == 0 {
		return out, nil
	}
	records, err := a.repo.ListByVariants(ctx, variantIDs)
	if err != nil {
		return nil, fmt.Errorf("available for many: %w", err)
	}
	byVariant := make(map[string][]entity.InventoryRecord, len(variantIDs))
	for _, r := range records {
		byVariant[r.VariantID] = append(byVariant[r.VariantID], r)
	}
	for _, id := range variantIDs {
		out[id] = entity.StockSnapshot{VariantID: id, AvailableQuantity: sumSellable(byVariant[id])}
	}
	return out, nil
}

func sumSellable(records []entity.InventoryRecord) int {
	total := 0
	for _, r := range records {
		total += r.Sellable()
	}
	return total
}
