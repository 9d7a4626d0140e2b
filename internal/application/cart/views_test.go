package cart_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/storefront-cart/internal/application/cart"
	"github.com/jhoicas/storefront-cart/internal/application/dto"
	"github.com/jhoicas/storefront-cart/internal/application/inventory"
	"github.com/jhoicas/storefront-cart/internal/domain/entity"
	"github.com/jhoicas/storefront-cart/internal/infrastructure/memory"
)

// slowStore retiene la primera lectura de FindByOwner, ya hecha, hasta que se llame open.
type slowStore struct {
	*memory.CartStore
	armed    atomic.Bool
	entered  chan struct{}
	release  chan struct{}
	openOnce sync.Once
}

func newSlowStore(inner *memory.CartStore) *slowStore {
	return &slowStore{CartStore: inner, entered: make(chan struct{}), release: make(chan struct{})}
}

func (s *slowStore) FindByOwner(ctx context.Context, owner entity.OwnerKey) ([]*entity.CartLine, error) {
	lines, err := s.CartStore.FindByOwner(ctx, owner)
	if s.armed.CompareAndSwap(false, true) {
		close(s.entered)
		<-s.release
	}
	return lines, err
}

func (s *slowStore) open() {
	s.openOnce.Do(func() { close(s.release) })
}

func newSlowUseCase(t *testing.T) (*slowStore, *cart.UseCase) {
	t.Helper()
	f := newFixture(t)
	slow := newSlowStore(f.store)
	t.Cleanup(slow.open)
	uc := cart.NewUseCase(slow, f.catalog, inventory.NewStockAggregator(f.stock), cart.Options{MaxLineQuantity: 20})
	return slow, uc
}

func TestListCart_VeLaEscrituraPropiaAunqueHayaLecturaEnCurso(t *testing.T) {
	ctx := context.Background()
	slow, uc := newSlowUseCase(t)

	other := make(chan *dto.CartResponse, 1)
	go func() {
		out, _ := uc.ListCart(ctx, guest("s1"))
		other <- out
	}()
	<-slow.entered

	_, err := uc.AddItem(ctx, guest("s1"), "v1", 1)
	require.NoError(t, err)

	mine := make(chan *dto.CartResponse, 1)
	go func() {
		out, err := uc.ListCart(ctx, guest("s1"))
		assert.NoError(t, err)
		mine <- out
	}()
	select {
	case out := <-mine:
		require.NotNil(t, out)
		assert.Len(t, out.Lines, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("la lectura posterior a la escritura quedó unida a la consulta anterior")
	}

	slow.open()
	stale := <-other
	require.NotNil(t, stale)
	assert.Empty(t, stale.Lines)
}

func TestListCart_CancelarUnLectorNoAfectaALosDemas(t *testing.T) {
	ctx := context.Background()
	slow, uc := newSlowUseCase(t)
	_, err := uc.AddItem(ctx, guest("s1"), "v1", 2)
	require.NoError(t, err)

	firstCtx, cancel := context.WithCancel(ctx)
	first := make(chan error, 1)
	go func() {
		_, err := uc.ListCart(firstCtx, guest("s1"))
		first <- err
	}()
	<-slow.entered

	second := make(chan *dto.CartResponse, 1)
	go func() {
		out, err := uc.ListCart(ctx, guest("s1"))
		assert.NoError(t, err)
		second <- out
	}()

	cancel()
	select {
	case err := <-first:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("el lector cancelado siguió esperando la consulta compartida")
	}

	slow.open()
	out := <-second
	require.NotNil(t, out)
	require.Len(t, out.Lines, 1)
	assert.Equal(t, 2, out.Lines[0].Quantity)
}
