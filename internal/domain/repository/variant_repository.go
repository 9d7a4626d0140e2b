package repository

import (
	"context"

	"github.com/jhoicas/storefront-cart/internal/domain/entity"
)

// VariantRepository puerto de lectura del catálogo de variantes.
type VariantRepository interface {
	// GetByIDs devuelve las variantes encontradas indexadas por ID; las ausentes se omiten.
	GetByIDs(ctx context.Context, ids []string) (map[string]*entity.Variant, error)
}
