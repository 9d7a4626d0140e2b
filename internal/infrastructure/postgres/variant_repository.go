package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/storefront-cart/internal/domain/entity"
	"github.com/jhoicas/storefront-cart/internal/domain/repository"
)

var _ repository.VariantRepository = (*VariantRepo)(nil)

// VariantRepo lectura del catálogo: product_variants unido a products para el nombre.
type VariantRepo struct {
	q Querier
}

func NewVariantRepository(q Querier) *VariantRepo {
	return &VariantRepo{q: q}
}

func (r *VariantRepo) GetByIDs(ctx context.Context, ids []string) (map[string]*entity.Variant, error) {
	out := make(map[string]*entity.Variant, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query := `
		SELECT v.id, v.product_id, v.sku,
		       CASE WHEN v.name = '' THEN p.name ELSE p.name || ' ' || v.name END,
		       v.price
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = ANY($1)`
	rows, err := r.q.Query(ctx, query, ids)
	if err != nil {
		return nil, storeErr("get variants", err)
	}
	variants, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*entity.Variant, error) {
		var v entity.Variant
		err := row.Scan(&v.ID, &v.ProductID, &v.SKU, &v.Name, &v.Price)
		return &v, err
	})
	if err != nil {
		return nil, storeErr("scan variants", err)
	}
	for _, v := range variants {
		out[v.ID] = v
	}
	return out, nil
}
