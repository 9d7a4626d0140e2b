package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/storefront-cart/internal/domain"
	"github.com/jhoicas/storefront-cart/internal/domain/entity"
	"github.com/jhoicas/storefront-cart/internal/domain/repository"
)

var _ repository.CartLineRepository = (*CartLineRepo)(nil)

const cartLineColumns = `id, owner_kind, owner_value, variant_id, quantity, created_at, updated_at`

// CartLineRepo implementación de CartLineRepository sobre PostgreSQL.
// La unicidad (dueño, variante) la garantiza el índice único de cart_lines.
type CartLineRepo struct {
	q          Querier
	tx         *TxRunner
	maxRetries int
}

// NewCartLineRepository construye el repositorio. maxRetries acota los reintentos de
// ReassignOwner ante una inserción concurrente en el carrito destino.
func NewCartLineRepository(pool *pgxpool.Pool, maxRetries int) *CartLineRepo {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &CartLineRepo{q: pool, tx: NewTxRunner(pool), maxRetries: maxRetries}
}

func (r *CartLineRepo) FindByOwner(ctx context.Context, owner entity.OwnerKey) ([]*entity.CartLine, error) {
	query := `SELECT ` + cartLineColumns + ` FROM cart_lines
		WHERE owner_kind = $1 AND owner_value = $2
		ORDER BY created_at, id`
	rows, err := r.q.Query(ctx, query, string(owner.Kind()), owner.Value())
	if err != nil {
		return nil, storeErr("find by owner", err)
	}
	defer rows.Close()

	out := make([]*entity.CartLine, 0)
	for rows.Next() {
		l, err := scanCartLine(rows)
		if err != nil {
			return nil, storeErr("scan cart line", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("find by owner", err)
	}
	return out, nil
}

func (r *CartLineRepo) FindLine(ctx context.Context, owner entity.OwnerKey, variantID string) (*entity.CartLine, error) {
	query := `SELECT ` + cartLineColumns + ` FROM cart_lines
		WHERE owner_kind = $1 AND owner_value = $2 AND variant_id = $3`
	l, err := scanCartLine(r.q.QueryRow(ctx, query, string(owner.Kind()), owner.Value(), variantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("find line", err)
	}
	return l, nil
}

func (r *CartLineRepo) GetByID(ctx context.Context, id string) (*entity.CartLine, error) {
	if !isLineID(id) {
		return nil, nil
	}
	query := `SELECT ` + cartLineColumns + ` FROM cart_lines WHERE id = $1`
	l, err := scanCartLine(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get cart line", err)
	}
	return l, nil
}

// UpsertLine con delta positivo es un único INSERT ... ON CONFLICT: dos altas concurrentes
// de la misma variante terminan en una fila con la suma. Con delta negativo bloquea la fila.
func (r *CartLineRepo) UpsertLine(ctx context.Context, owner entity.OwnerKey, variantID string, delta int) (*entity.CartLine, error) {
	if owner.IsZero() || variantID == "" {
		return nil, domain.ErrInvalidInput
	}
	switch {
	case delta == 0:
		return r.FindLine(ctx, owner, variantID)
	case delta < 0:
		return r.decrement(ctx, owner, variantID, delta)
	}

	query := `
		INSERT INTO cart_lines (id, owner_kind, owner_value, variant_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (owner_kind, owner_value, variant_id)
		DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity, updated_at = now()
		RETURNING ` + cartLineColumns
	l, err := scanCartLine(r.q.QueryRow(ctx, query, uuid.New().String(), string(owner.Kind()), owner.Value(), variantID, delta))
	if err != nil {
		return nil, storeErr("upsert cart line", err)
	}
	return l, nil
}

func (r *CartLineRepo) decrement(ctx context.Context, owner entity.OwnerKey, variantID string, delta int) (*entity.CartLine, error) {
	var out *entity.CartLine
	err := r.tx.Run(ctx, func(tx pgx.Tx) error {
		query := `SELECT ` + cartLineColumns + ` FROM cart_lines
			WHERE owner_kind = $1 AND owner_value = $2 AND variant_id = $3
			FOR UPDATE`
		l, err := scanCartLine(tx.QueryRow(ctx, query, string(owner.Kind()), owner.Value(), variantID))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if l.Quantity+delta < 1 {
			_, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE id = $1`, l.ID)
			return err
		}
		out, err = scanCartLine(tx.QueryRow(ctx, `
			UPDATE cart_lines SET quantity = quantity + $2, updated_at = now()
			WHERE id = $1
			RETURNING `+cartLineColumns, l.ID, delta))
		return err
	})
	if err != nil {
		return nil, storeErr("decrement cart line", err)
	}
	return out, nil
}

func (r *CartLineRepo) SetQuantity(ctx context.Context, owner entity.OwnerKey, id string, quantity int) (*entity.CartLine, error) {
	if quantity < 1 {
		deleted, err := r.DeleteLine(ctx, owner, id)
		if err != nil {
			return nil, err
		}
		if !deleted {
			return nil, domain.ErrNotFound
		}
		return nil, nil
	}
	if !isLineID(id) {
		return nil, domain.ErrNotFound
	}

	query := `
		UPDATE cart_lines SET quantity = $4, updated_at = now()
		WHERE id = $1 AND owner_kind = $2 AND owner_value = $3
		RETURNING ` + cartLineColumns
	l, err := scanCartLine(r.q.QueryRow(ctx, query, id, string(owner.Kind()), owner.Value(), quantity))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("set quantity", err)
	}
	return l, nil
}

func (r *CartLineRepo) DeleteLine(ctx context.Context, owner entity.OwnerKey, id string) (bool, error) {
	if !isLineID(id) {
		return false, nil
	}
	tag, err := r.q.Exec(ctx,
		`DELETE FROM cart_lines WHERE id = $1 AND owner_kind = $2 AND owner_value = $3`,
		id, string(owner.Kind()), owner.Value())
	if err != nil {
		return false, storeErr("delete cart line", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *CartLineRepo) DeleteAllForOwner(ctx context.Context, owner entity.OwnerKey) (int, error) {
	tag, err := r.q.Exec(ctx,
		`DELETE FROM cart_lines WHERE owner_kind = $1 AND owner_value = $2`,
		string(owner.Kind()), owner.Value())
	if err != nil {
		return 0, storeErr("clear cart", err)
	}
	return int(tag.RowsAffected()), nil
}

// ReassignOwner mueve las líneas de from a to en una transacción: suma las variantes que
// ya existen en to, elimina esas filas de origen y cambia el dueño del resto. Si otra
// petición inserta en to entre medio, el índice único aborta la tx y se reintenta.
func (r *CartLineRepo) ReassignOwner(ctx context.Context, from, to entity.OwnerKey) (int, error) {
	if from == to {
		return 0, nil
	}
	var lastErr error
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		n, err := r.reassignOnce(ctx, from, to)
		if err == nil {
			return n, nil
		}
		if !isUniqueViolation(err) {
			return 0, storeErr("reassign owner", err)
		}
		lastErr = err
	}
	return 0, storeErr(fmt.Sprintf("reassign owner tras %d intentos", r.maxRetries), lastErr)
}

func (r *CartLineRepo) reassignOnce(ctx context.Context, from, to entity.OwnerKey) (int, error) {
	var moved int
	err := r.tx.Run(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id FROM cart_lines
			WHERE owner_kind = $1 AND owner_value = $2
			ORDER BY id
			FOR UPDATE`, string(from.Kind()), from.Value())
		if err != nil {
			return err
		}
		ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		moved = len(ids)

		args := []any{string(from.Kind()), from.Value(), string(to.Kind()), to.Value()}
		if _, err := tx.Exec(ctx, `
			UPDATE cart_lines d
			SET quantity = d.quantity + s.quantity, updated_at = now()
			FROM cart_lines s
			WHERE s.owner_kind = $1 AND s.owner_value = $2
			  AND d.owner_kind = $3 AND d.owner_value = $4
			  AND d.variant_id = s.variant_id`, args...); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM cart_lines s
			USING cart_lines d
			WHERE s.owner_kind = $1 AND s.owner_value = $2
			  AND d.owner_kind = $3 AND d.owner_value = $4
			  AND d.variant_id = s.variant_id`, args...); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE cart_lines SET owner_kind = $3, owner_value = $4, updated_at = now()
			WHERE owner_kind = $1 AND owner_value = $2`, args...)
		return err
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}

// isLineID evita enviar a la columna uuid ids que el cliente inventó o truncó.
func isLineID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func scanCartLine(row pgx.Row) (*entity.CartLine, error) {
	var (
		l           entity.CartLine
		kind, value string
	)
	if err := row.Scan(&l.ID, &kind, &value, &l.VariantID, &l.Quantity, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	owner, err := entity.ParseOwnerKey(kind, value)
	if err != nil {
		return nil, err
	}
	l.Owner = owner
	return &l, nil
}
