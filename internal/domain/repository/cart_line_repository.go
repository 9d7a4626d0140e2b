package repository

import (
	"context"

	"github.com/jhoicas/storefront-cart/internal/domain/entity"
)

// CartLineRepository define el puerto de persistencia de líneas de carrito (DIP).
// Las implementaciones garantizan como máximo una línea por (dueño, variante) y
// que UpsertLine sea atómico frente a llamadas concurrentes sobre el mismo par.
type CartLineRepository interface {
	// FindByOwner devuelve todas las líneas del dueño (slice vacío si no hay).
	FindByOwner(ctx context.Context, owner entity.OwnerKey) ([]*entity.CartLine, error)
	// FindLine devuelve nil, nil si el dueño no tiene la variante.
	FindLine(ctx context.Context, owner entity.OwnerKey, variantID string) (*entity.CartLine, error)
	// GetByID busca por id sin verificar dueño; nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.CartLine, error)

	// UpsertLine suma delta a la cantidad de la línea (la crea si delta > 0 y no existe).
	// Si la cantidad resultante queda por debajo de 1 la línea se elimina y se devuelve nil.
	UpsertLine(ctx context.Context, owner entity.OwnerKey, variantID string, delta int) (*entity.CartLine, error)
	// SetQuantity fija la cantidad absoluta. domain.ErrNotFound si el id no pertenece al dueño.
	// quantity < 1 elimina la línea y devuelve nil.
	SetQuantity(ctx context.Context, owner entity.OwnerKey, id string, quantity int) (*entity.CartLine, error)

	DeleteLine(ctx context.Context, owner entity.OwnerKey, id string) (bool, error)
	DeleteAllForOwner(ctx context.Context, owner entity.OwnerKey) (int, error)

	// ReassignOwner mueve todas las líneas de from a to. Si to ya tiene la variante,
	// suma las cantidades y descarta la línea origen. Devuelve cuántas líneas origen se procesaron.
	ReassignOwner(ctx context.Context, from, to entity.OwnerKey) (int, error)
}
