package cart_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/storefront-cart/internal/application/cart"
	"github.com/jhoicas/storefront-cart/internal/domain"
	"github.com/jhoicas/storefront-cart/internal/domain/entity"
)

func TestAddItem_CreaYLuegoSuma(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.uc.AddItem(ctx, guest("s1"), "v1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Quantity)
	assert.Equal(t, "CAM-M", first.SKU)
	assert.True(t, first.Subtotal.Equal(decimal.RequireFromString("21")))

	second, err := f.uc.AddItem(ctx, guest("s1"), "v1", 3)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 5, second.Quantity)

	view, err := f.uc.ListCart(ctx, guest("s1"))
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 5, view.ItemCount)
}

func TestAddItem_CantidadInvalida(t *testing.T) {
	f := newFixture(t)
	for _, q := range []int{0, -1, 21} {
		_, err := f.uc.AddItem(context.Background(), guest("s1"), "v1", q)
		assert.ErrorIs(t, err, domain.ErrInvalidQuantity, "cantidad %d", q)
	}

	_, err := f.uc.AddItem(context.Background(), guest("s1"), "  ", 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	lines, err := f.store.FindByOwner(context.Background(), entity.SessionOwner("s1"))
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestOperaciones_SinIdentidad(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	anon := cart.Caller{SessionID: "   "}

	_, err := f.uc.ListCart(ctx, anon)
	assert.ErrorIs(t, err, domain.ErrOwnerKeyMissing)
	_, err = f.uc.AddItem(ctx, anon, "v1", 1)
	assert.ErrorIs(t, err, domain.ErrOwnerKeyMissing)
	_, err = f.uc.UpdateQuantity(ctx, anon, "x", 1, "")
	assert.ErrorIs(t, err, domain.ErrOwnerKeyMissing)
	err = f.uc.RemoveItem(ctx, anon, "x", "")
	assert.ErrorIs(t, err, domain.ErrOwnerKeyMissing)
	_, err = f.uc.ClearCart(ctx, anon)
	assert.ErrorIs(t, err, domain.ErrOwnerKeyMissing)

	assert.Equal(t, 5, f.metrics.failures)
}

func TestAddItem_AdvertenciaDeStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok, err := f.uc.AddItem(ctx, guest("s1"), "v1", 2)
	require.NoError(t, err)
	assert.Empty(t, ok.StockWarning)
	require.NotNil(t, ok.Stock)
	assert.Equal(t, 10, ok.Stock.AvailableQuantity)

	short, err := f.uc.AddItem(ctx, guest("s1"), "v2", 3)
	require.NoError(t, err)
	assert.Equal(t, cart.StockWarningInsufficient, short.StockWarning)
	assert.Equal(t, 2, short.Stock.AvailableQuantity)

	none, err := f.uc.AddItem(ctx, guest("s1"), "v3", 1)
	require.NoError(t, err, "sin stock la línea se crea igual")
	assert.Equal(t, cart.StockWarningOutOfStock, none.StockWarning)
}

func TestAddItem_ConcurrenteNoDuplica(t *testing.T) {
	f := newFixture(t)
	const workers = 15

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.uc.AddItem(context.Background(), guest("s1"), "v1", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	view, err := f.uc.ListCart(context.Background(), guest("s1"))
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, workers, view.Lines[0].Quantity)
}

func TestAddItem_FalloDeStockNoEscribe(t *testing.T) {
	f := newFixture(t)
	uc := cart.NewUseCase(f.store, f.catalog, brokenStock{}, cart.Options{})

	_, err := uc.AddItem(context.Background(), guest("s1"), "v1", 1)
	assert.ErrorIs(t, err, errStockDown)

	lines, err := f.store.FindByOwner(context.Background(), entity.SessionOwner("s1"))
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestListCart_Totales(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.uc.AddItem(ctx, guest("s1"), "v1", 2)
	require.NoError(t, err)
	_, err = f.uc.AddItem(ctx, guest("s1"), "v2", 1)
	require.NoError(t, err)

	view, err := f.uc.ListCart(ctx, guest("s1"))
	require.NoError(t, err)
	assert.Equal(t, "session:s1", view.Owner)
	assert.Len(t, view.Lines, 2)
	assert.Equal(t, 3, view.ItemCount)
	assert.True(t, view.Subtotal.Equal(decimal.RequireFromString("33.00")), "subtotal %s", view.Subtotal)
}

func TestListCart_Vacio(t *testing.T) {
	f := newFixture(t)
	view, err := f.uc.ListCart(context.Background(), guest("nuevo"))
	require.NoError(t, err)
	assert.NotNil(t, view.Lines)
	assert.Empty(t, view.Lines)
	assert.True(t, view.Subtotal.IsZero())
}

func TestListCart_VarianteFueraDeCatalogo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.UpsertLine(ctx, entity.SessionOwner("s1"), "retirada", 2)
	require.NoError(t, err)

	view, err := f.uc.ListCart(ctx, guest("s1"))
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Empty(t, view.Lines[0].Name)
	assert.True(t, view.Lines[0].UnitPrice.IsZero())
	assert.Equal(t, cart.StockWarningOutOfStock, view.Lines[0].StockWarning)
}

func TestListCart_UsaCacheEInvalidaAlEscribir(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := entity.SessionOwner("s1")

	_, err := f.uc.AddItem(ctx, guest("s1"), "v1", 1)
	require.NoError(t, err)

	_, err = f.uc.ListCart(ctx, guest("s1"))
	require.NoError(t, err)
	assert.True(t, f.cache.cached(owner))

	_, err = f.uc.ListCart(ctx, guest("s1"))
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.hits)

	_, err = f.uc.AddItem(ctx, guest("s1"), "v2", 1)
	require.NoError(t, err)
	assert.False(t, f.cache.cached(owner), "la escritura invalida la vista")

	view, err := f.uc.ListCart(ctx, guest("s1"))
	require.NoError(t, err)
	assert.Len(t, view.Lines, 2)
}

func TestUpdateQuantity_FijaCantidad(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	line, err := f.uc.AddItem(ctx, guest("s1"), "v1", 1)
	require.NoError(t, err)

	updated, err := f.uc.UpdateQuantity(ctx, guest("s1"), line.ID, 4, "")
	require.NoError(t, err)
	assert.Equal(t, line.ID, updated.ID)
	assert.Equal(t, 4, updated.Quantity)
	assert.True(t, updated.Subtotal.Equal(decimal.RequireFromString("42")))

	_, err = f.uc.UpdateQuantity(ctx, guest("s1"), line.ID, 21, "")
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestUpdateQuantity_CeroElimina(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	line, err := f.uc.AddItem(ctx, guest("s1"), "v1", 3)
	require.NoError(t, err)

	out, err := f.uc.UpdateQuantity(ctx, guest("s1"), line.ID, 0, "")
	require.NoError(t, err)
	assert.Nil(t, out)

	view, err := f.uc.ListCart(ctx, guest("s1"))
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
}

func TestUpdateQuantity_IdDesconocido(t *testing.T) {
	f := newFixture(t)
	_, err := f.uc.UpdateQuantity(context.Background(), guest("s1"), uuid.New().String(), 2, "")
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
	assert.Equal(t, 1, f.metrics.unresolved)
}

func TestUpdateQuantity_RecuperaIdDeOtroDueño(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stale, err := f.uc.AddItem(ctx, guest("s1"), "v1", 1)
	require.NoError(t, err)
	mine, err := f.uc.AddItem(ctx, guest("s2"), "v1", 2)
	require.NoError(t, err)

	updated, err := f.uc.UpdateQuantity(ctx, guest("s2"), stale.ID, 6, "")
	require.NoError(t, err)
	assert.Equal(t, mine.ID, updated.ID)
	assert.Equal(t, 6, updated.Quantity)

	other, err := f.store.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, other.Quantity, "la línea ajena no se toca")
	assert.Equal(t, 1, f.metrics.recovered)
}

func TestUpdateQuantity_RecuperaTrasMigracion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kept, err := f.uc.AddItem(ctx, member("u1", ""), "v1", 1)
	require.NoError(t, err)
	merged, err := f.uc.AddItem(ctx, guest("s1"), "v1", 2)
	require.NoError(t, err)

	// El id de invitado desaparece al fusionarse con la línea del usuario.
	_, err = f.uc.UpdateQuantity(ctx, member("u1", "s1"), merged.ID, 7, "")
	assert.ErrorIs(t, err, domain.ErrItemNotFound)

	updated, err := f.uc.UpdateQuantity(ctx, member("u1", "s1"), merged.ID, 7, "v1")
	require.NoError(t, err)
	assert.Equal(t, kept.ID, updated.ID)
	assert.Equal(t, 7, updated.Quantity)

	view, err := f.uc.ListCart(ctx, member("u1", ""))
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 7, view.Lines[0].Quantity)
}

func TestUpdateQuantity_EnriquecimientoTolerante(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	line, err := f.store.UpsertLine(ctx, entity.SessionOwner("s1"), "v1", 1)
	require.NoError(t, err)
	uc := cart.NewUseCase(f.store, f.catalog, brokenStock{}, cart.Options{})

	updated, err := uc.UpdateQuantity(ctx, guest("s1"), line.ID, 3, "")
	require.NoError(t, err, "la escritura ya ocurrió; el stock faltante no la revierte")
	assert.Equal(t, 3, updated.Quantity)
	assert.Nil(t, updated.Stock)
	assert.Equal(t, "Camiseta M", updated.Name)
}

func TestRemoveItem_Idempotente(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	line, err := f.uc.AddItem(ctx, guest("s1"), "v1", 1)
	require.NoError(t, err)

	require.NoError(t, f.uc.RemoveItem(ctx, guest("s1"), line.ID, ""))
	require.NoError(t, f.uc.RemoveItem(ctx, guest("s1"), line.ID, ""))
	require.NoError(t, f.uc.RemoveItem(ctx, guest("s1"), uuid.New().String(), "v2"))

	view, err := f.uc.ListCart(ctx, guest("s1"))
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
}

func TestRemoveItem_NoBorraLineaAjena(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	theirs, err := f.uc.AddItem(ctx, guest("s1"), "v1", 1)
	require.NoError(t, err)
	mine, err := f.uc.AddItem(ctx, guest("s2"), "v1", 1)
	require.NoError(t, err)

	require.NoError(t, f.uc.RemoveItem(ctx, guest("s2"), theirs.ID, ""))

	still, err := f.store.GetByID(ctx, theirs.ID)
	require.NoError(t, err)
	assert.NotNil(t, still)
	gone, err := f.store.GetByID(ctx, mine.ID)
	require.NoError(t, err)
	assert.Nil(t, gone, "se elimina la línea propia de la misma variante")
}

func TestClearCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.uc.AddItem(ctx, guest("s1"), "v1", 1)
	require.NoError(t, err)
	_, err = f.uc.AddItem(ctx, guest("s1"), "v2", 1)
	require.NoError(t, err)

	n, err := f.uc.ClearCart(ctx, guest("s1"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = f.uc.ClearCart(ctx, guest("s1"))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 2, f.metrics.ops[cart.OpClear])
}

func TestStockFor(t *testing.T) {
	f := newFixture(t)
	snap, err := f.uc.StockFor(context.Background(), "v2")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.AvailableQuantity)

	_, err = f.uc.StockFor(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
