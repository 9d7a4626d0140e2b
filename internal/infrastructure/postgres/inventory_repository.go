package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/storefront-cart/internal/domain/entity"
	"github.com/jhoicas/storefront-cart/internal/domain/repository"
)

var _ repository.InventoryRepository = (*InventoryRepo)(nil)

// InventoryRepo lectura de inventory_records (usable con pool o tx).
type InventoryRepo struct {
	q Querier
}

func NewInventoryRepository(q Querier) *InventoryRepo {
	return &InventoryRepo{q: q}
}

func (r *InventoryRepo) ListByVariant(ctx context.Context, variantID string) ([]entity.InventoryRecord, error) {
	return r.ListByVariants(ctx, []string{variantID})
}

// ListByVariants trae todas las ubicaciones de las variantes pedidas en una sola consulta.
func (r *InventoryRepo) ListByVariants(ctx context.Context, variantIDs []string) ([]entity.InventoryRecord, error) {
	if len(variantIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT variant_id, location_id, stock_on_hand, reserved, updated_at
		FROM inventory_records
		WHERE variant_id = ANY($1)`
	rows, err := r.q.Query(ctx, query, variantIDs)
	if err != nil {
		return nil, storeErr("list inventory", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.InventoryRecord, error) {
		var rec entity.InventoryRecord
		err := row.Scan(&rec.VariantID, &rec.LocationID, &rec.StockOnHand, &rec.Reserved, &rec.UpdatedAt)
		return rec, err
	})
	if err != nil {
		return nil, storeErr("scan inventory", err)
	}
	return records, nil
}
