// Package repotest contiene pruebas de contrato reutilizables por cada implementación
// de los puertos de repositorio.
package repotest

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/storefront-cart/internal/domain"
	"github.com/jhoicas/storefront-cart/internal/domain/entity"
	"github.com/jhoicas/storefront-cart/internal/domain/repository"
)

// Factory crea un repositorio vacío y aislado para cada subtest.
type Factory func(t *testing.T) repository.CartLineRepository

// RunCartLineContract ejecuta las invariantes de CartLineRepository contra newRepo.
func RunCartLineContract(t *testing.T, newRepo Factory) {
	t.Run("FindByOwner vacío", func(t *testing.T) {
		repo := newRepo(t)
		lines, err := repo.FindByOwner(context.Background(), entity.SessionOwner(uniq("s")))
		require.NoError(t, err)
		assert.Empty(t, lines)
	})

	t.Run("Upsert crea y luego incrementa sin duplicar", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := entity.SessionOwner(uniq("s"))

		first, err := repo.UpsertLine(ctx, owner, "v1", 2)
		require.NoError(t, err)
		require.NotNil(t, first)
		assert.Equal(t, 2, first.Quantity)
		assert.Equal(t, owner, first.Owner)

		second, err := repo.UpsertLine(ctx, owner, "v1", 3)
		require.NoError(t, err)
		require.NotNil(t, second)
		assert.Equal(t, first.ID, second.ID, "misma línea, no una nueva")
		assert.Equal(t, 5, second.Quantity)

		lines, err := repo.FindByOwner(ctx, owner)
		require.NoError(t, err)
		assert.Len(t, lines, 1)
	})

	t.Run("Upsert con delta negativo bajo 1 elimina", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := entity.SessionOwner(uniq("s"))

		_, err := repo.UpsertLine(ctx, owner, "v1", 3)
		require.NoError(t, err)

		line, err := repo.UpsertLine(ctx, owner, "v1", -1)
		require.NoError(t, err)
		require.NotNil(t, line)
		assert.Equal(t, 2, line.Quantity)

		line, err = repo.UpsertLine(ctx, owner, "v1", -5)
		require.NoError(t, err)
		assert.Nil(t, line)

		found, err := repo.FindLine(ctx, owner, "v1")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("Upsert negativo sin línea no crea", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := entity.SessionOwner(uniq("s"))

		line, err := repo.UpsertLine(ctx, owner, "v1", -2)
		require.NoError(t, err)
		assert.Nil(t, line)

		lines, err := repo.FindByOwner(ctx, owner)
		require.NoError(t, err)
		assert.Empty(t, lines)
	})

	t.Run("Upserts concurrentes no pierden incrementos", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := entity.SessionOwner(uniq("s"))
		const workers = 16

		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := repo.UpsertLine(ctx, owner, "v1", 1); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		lines, err := repo.FindByOwner(ctx, owner)
		require.NoError(t, err)
		require.Len(t, lines, 1, "nunca más de una línea por (dueño, variante)")
		assert.Equal(t, workers, lines[0].Quantity)
	})

	t.Run("SetQuantity respeta al dueño", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := entity.SessionOwner(uniq("s"))
		other := entity.UserOwner(uniq("u"))

		line, err := repo.UpsertLine(ctx, owner, "v1", 1)
		require.NoError(t, err)

		updated, err := repo.SetQuantity(ctx, owner, line.ID, 7)
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, 7, updated.Quantity)

		_, err = repo.SetQuantity(ctx, other, line.ID, 3)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = repo.SetQuantity(ctx, owner, uuid.New().String(), 3)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		removed, err := repo.SetQuantity(ctx, owner, line.ID, 0)
		require.NoError(t, err)
		assert.Nil(t, removed)

		gone, err := repo.GetByID(ctx, line.ID)
		require.NoError(t, err)
		assert.Nil(t, gone)
	})

	t.Run("DeleteLine es idempotente y no toca otros dueños", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := entity.SessionOwner(uniq("s"))
		other := entity.SessionOwner(uniq("s"))

		line, err := repo.UpsertLine(ctx, owner, "v1", 1)
		require.NoError(t, err)

		deleted, err := repo.DeleteLine(ctx, other, line.ID)
		require.NoError(t, err)
		assert.False(t, deleted)

		deleted, err = repo.DeleteLine(ctx, owner, line.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = repo.DeleteLine(ctx, owner, line.ID)
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("DeleteAllForOwner cuenta y aísla", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		owner := entity.SessionOwner(uniq("s"))
		other := entity.UserOwner(uniq("u"))

		for _, v := range []string{"v1", "v2", "v3"} {
			_, err := repo.UpsertLine(ctx, owner, v, 1)
			require.NoError(t, err)
		}
		_, err := repo.UpsertLine(ctx, other, "v1", 1)
		require.NoError(t, err)

		n, err := repo.DeleteAllForOwner(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		n, err = repo.DeleteAllForOwner(ctx, owner)
		require.NoError(t, err)
		assert.Zero(t, n)

		rest, err := repo.FindByOwner(ctx, other)
		require.NoError(t, err)
		assert.Len(t, rest, 1)
	})

	t.Run("ReassignOwner fusiona cantidades y vacía el origen", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		session := entity.SessionOwner(uniq("s"))
		user := entity.UserOwner(uniq("u"))

		_, err := repo.UpsertLine(ctx, session, "v1", 2)
		require.NoError(t, err)
		moving, err := repo.UpsertLine(ctx, session, "v9", 4)
		require.NoError(t, err)
		_, err = repo.UpsertLine(ctx, user, "v1", 1)
		require.NoError(t, err)
		_, err = repo.UpsertLine(ctx, user, "v2", 3)
		require.NoError(t, err)

		n, err := repo.ReassignOwner(ctx, session, user)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		assert.Equal(t, map[string]int{"v1": 3, "v2": 3, "v9": 4}, quantities(t, repo, user))
		assert.Empty(t, quantities(t, repo, session))

		moved, err := repo.GetByID(ctx, moving.ID)
		require.NoError(t, err)
		require.NotNil(t, moved, "la línea sin conflicto conserva su id")
		assert.Equal(t, user, moved.Owner)

		n, err = repo.ReassignOwner(ctx, session, user)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, map[string]int{"v1": 3, "v2": 3, "v9": 4}, quantities(t, repo, user))
	})
}

func quantities(t *testing.T, repo repository.CartLineRepository, owner entity.OwnerKey) map[string]int {
	t.Helper()
	lines, err := repo.FindByOwner(context.Background(), owner)
	require.NoError(t, err)
	out := make(map[string]int, len(lines))
	for _, l := range lines {
		_, dup := out[l.VariantID]
		require.False(t, dup, "línea duplicada para %s", l.VariantID)
		out[l.VariantID] = l.Quantity
	}
	return out
}

func uniq(prefix string) string {
	return prefix + "-" + uuid.New().String()
}
