// Package redis implementa el repositorio de líneas y la caché de vistas del carrito sobre Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jhoicas/storefront-cart/internal/domain"
	"github.com/jhoicas/storefront-cart/internal/domain/entity"
	"github.com/jhoicas/storefront-cart/internal/domain/repository"
)

var _ repository.CartLineRepository = (*CartRepo)(nil)

const (
	lineKeyPrefix  = "cart:line:"
	ownerKeyPrefix = "cart:owner:"
)

// Campos del hash cart:line:<id>.
const (
	fieldID         = "id"
	fieldOwnerKind  = "owner_kind"
	fieldOwnerValue = "owner_value"
	fieldVariantID  = "variant_id"
	fieldQuantity   = "quantity"
	fieldCreatedAt  = "created_at"
	fieldUpdatedAt  = "updated_at"
)

// CartRepo guarda cada línea en un hash y un índice por dueño (variant_id -> id).
// Las escrituras usan WATCH/MULTI/EXEC; si otra escritura toca las mismas llaves la
// transacción se reintenta hasta maxRetries y luego falla con domain.ErrStoreUnavailable.
type CartRepo struct {
	client     *goredis.Client
	maxRetries int
	now        func() time.Time
}

func NewCartRepository(client *goredis.Client, maxRetries int) *CartRepo {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &CartRepo{client: client, maxRetries: maxRetries, now: func() time.Time { return time.Now().UTC() }}
}

func lineKey(id string) string { return lineKeyPrefix + id }

func ownerIndexKey(owner entity.OwnerKey) string {
	return ownerKeyPrefix + string(owner.Kind()) + ":" + owner.Value()
}

func (r *CartRepo) FindByOwner(ctx context.Context, owner entity.OwnerKey) ([]*entity.CartLine, error) {
	index, err := r.client.HGetAll(ctx, ownerIndexKey(owner)).Result()
	if err != nil {
		return nil, storeErr("find by owner", err)
	}
	out := make([]*entity.CartLine, 0, len(index))
	if len(index) == 0 {
		return out, nil
	}

	cmds := make([]*goredis.MapStringStringCmd, 0, len(index))
	_, err = r.client.Pipelined(ctx, func(p goredis.Pipeliner) error {
		for _, id := range index {
			cmds = append(cmds, p.HGetAll(ctx, lineKey(id)))
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("find by owner", err)
	}
	for _, cmd := range cmds {
		l, err := decodeLine(cmd.Val())
		if err != nil {
			return nil, storeErr("decode cart line", err)
		}
		// Un índice apuntando a un hash borrado se ignora.
		if l != nil && l.Owner == owner {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *CartRepo) FindLine(ctx context.Context, owner entity.OwnerKey, variantID string) (*entity.CartLine, error) {
	id, err := r.client.HGet(ctx, ownerIndexKey(owner), variantID).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("find line", err)
	}
	l, err := r.GetByID(ctx, id)
	if err != nil || l == nil || l.Owner != owner {
		return nil, err
	}
	return l, nil
}

func (r *CartRepo) GetByID(ctx context.Context, id string) (*entity.CartLine, error) {
	fields, err := r.client.HGetAll(ctx, lineKey(id)).Result()
	if err != nil {
		return nil, storeErr("get cart line", err)
	}
	l, err := decodeLine(fields)
	if err != nil {
		return nil, storeErr("decode cart line", err)
	}
	return l, nil
}

func (r *CartRepo) UpsertLine(ctx context.Context, owner entity.OwnerKey, variantID string, delta int) (*entity.CartLine, error) {
	if owner.IsZero() || variantID == "" {
		return nil, domain.ErrInvalidInput
	}
	idx := ownerIndexKey(owner)

	var out *entity.CartLine
	err := r.watch(ctx, "upsert cart line", func(tx *goredis.Tx) error {
		out = nil
		current, err := readIndexedLine(ctx, tx, idx, variantID)
		if err != nil {
			return err
		}
		now := r.now()

		if current == nil {
			if delta <= 0 {
				return nil
			}
			l := &entity.CartLine{
				ID:        uuid.New().String(),
				Owner:     owner,
				VariantID: variantID,
				Quantity:  delta,
				CreatedAt: now,
				UpdatedAt: now,
			}
			_, err := tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
				p.HSet(ctx, lineKey(l.ID), encodeLine(l))
				p.HSet(ctx, idx, variantID, l.ID)
				return nil
			})
			if err == nil {
				out = l
			}
			return err
		}

		if delta == 0 {
			out = current
			return nil
		}
		if current.Quantity+delta < 1 {
			_, err := tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
				p.Del(ctx, lineKey(current.ID))
				p.HDel(ctx, idx, variantID)
				return nil
			})
			return err
		}
		current.Quantity += delta
		current.UpdatedAt = now
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.HSet(ctx, lineKey(current.ID), fieldQuantity, current.Quantity, fieldUpdatedAt, formatTime(now))
			return nil
		})
		if err == nil {
			out = current
		}
		return err
	}, idx)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *CartRepo) SetQuantity(ctx context.Context, owner entity.OwnerKey, id string, quantity int) (*entity.CartLine, error) {
	var out *entity.CartLine
	key := lineKey(id)
	err := r.watch(ctx, "set quantity", func(tx *goredis.Tx) error {
		out = nil
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		l, err := decodeLine(fields)
		if err != nil {
			return err
		}
		if l == nil || l.Owner != owner {
			return domain.ErrNotFound
		}
		if quantity < 1 {
			_, err := tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
				p.Del(ctx, key)
				p.HDel(ctx, ownerIndexKey(owner), l.VariantID)
				return nil
			})
			return err
		}
		l.Quantity = quantity
		l.UpdatedAt = r.now()
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.HSet(ctx, key, fieldQuantity, l.Quantity, fieldUpdatedAt, formatTime(l.UpdatedAt))
			return nil
		})
		if err == nil {
			out = l
		}
		return err
	}, key)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *CartRepo) DeleteLine(ctx context.Context, owner entity.OwnerKey, id string) (bool, error) {
	var deleted bool
	key := lineKey(id)
	err := r.watch(ctx, "delete cart line", func(tx *goredis.Tx) error {
		deleted = false
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		l, err := decodeLine(fields)
		if err != nil {
			return err
		}
		if l == nil || l.Owner != owner {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.Del(ctx, key)
			p.HDel(ctx, ownerIndexKey(owner), l.VariantID)
			return nil
		})
		deleted = err == nil
		return err
	}, key)
	return deleted, err
}

func (r *CartRepo) DeleteAllForOwner(ctx context.Context, owner entity.OwnerKey) (int, error) {
	var removed int
	idx := ownerIndexKey(owner)
	err := r.watch(ctx, "clear cart", func(tx *goredis.Tx) error {
		removed = 0
		index, err := tx.HGetAll(ctx, idx).Result()
		if err != nil {
			return err
		}
		if len(index) == 0 {
			return nil
		}
		keys := make([]string, 0, len(index)+1)
		for _, id := range index {
			keys = append(keys, lineKey(id))
		}
		keys = append(keys, idx)
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.Del(ctx, keys...)
			return nil
		})
		if err == nil {
			removed = len(index)
		}
		return err
	}, idx)
	return removed, err
}

// ReassignOwner vigila ambos índices y todas las líneas involucradas; las variantes que
// to ya tiene se suman a su línea y el resto cambia de dueño conservando su id.
func (r *CartRepo) ReassignOwner(ctx context.Context, from, to entity.OwnerKey) (int, error) {
	if from == to {
		return 0, nil
	}
	fromIdx, toIdx := ownerIndexKey(from), ownerIndexKey(to)

	var moved int
	err := r.watch(ctx, "reassign owner", func(tx *goredis.Tx) error {
		moved = 0
		source, err := tx.HGetAll(ctx, fromIdx).Result()
		if err != nil {
			return err
		}
		if len(source) == 0 {
			return nil
		}
		dest, err := tx.HGetAll(ctx, toIdx).Result()
		if err != nil {
			return err
		}

		watched := make([]string, 0, len(source)*2)
		for variantID, id := range source {
			watched = append(watched, lineKey(id))
			if destID, ok := dest[variantID]; ok {
				watched = append(watched, lineKey(destID))
			}
		}
		if err := tx.Watch(ctx, watched...).Err(); err != nil {
			return err
		}

		now := formatTime(r.now())
		type merge struct{ srcID, destID string }
		var merges []merge
		var moves []*entity.CartLine
		srcQty := make(map[string]int, len(source))
		for variantID, id := range source {
			l, err := readLine(ctx, tx, id)
			if err != nil {
				return err
			}
			if l == nil {
				continue
			}
			srcQty[id] = l.Quantity
			if destID, ok := dest[variantID]; ok {
				merges = append(merges, merge{srcID: id, destID: destID})
				continue
			}
			moves = append(moves, l)
		}

		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			for _, m := range merges {
				p.HIncrBy(ctx, lineKey(m.destID), fieldQuantity, int64(srcQty[m.srcID]))
				p.HSet(ctx, lineKey(m.destID), fieldUpdatedAt, now)
				p.Del(ctx, lineKey(m.srcID))
			}
			for _, l := range moves {
				p.HSet(ctx, lineKey(l.ID),
					fieldOwnerKind, string(to.Kind()),
					fieldOwnerValue, to.Value(),
					fieldUpdatedAt, now)
				p.HSet(ctx, toIdx, l.VariantID, l.ID)
			}
			p.Del(ctx, fromIdx)
			return nil
		})
		if err == nil {
			moved = len(merges) + len(moves)
		}
		return err
	}, fromIdx, toIdx)
	return moved, err
}

// watch ejecuta fn dentro de WATCH sobre keys y reintenta ante goredis.TxFailedErr.
func (r *CartRepo) watch(ctx context.Context, op string, fn func(tx *goredis.Tx) error, keys ...string) error {
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		err := r.client.Watch(ctx, fn, keys...)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, goredis.TxFailedErr):
			continue
		case errors.Is(err, domain.ErrNotFound):
			return err
		}
		return storeErr(op, err)
	}
	return fmt.Errorf("%w: %s: conflicto optimista tras %d intentos", domain.ErrStoreUnavailable, op, r.maxRetries)
}

// readIndexedLine lee la línea de (índice, variante) y agrega su hash al WATCH.
func readIndexedLine(ctx context.Context, tx *goredis.Tx, idx, variantID string) (*entity.CartLine, error) {
	id, err := tx.HGet(ctx, idx, variantID).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Watch(ctx, lineKey(id)).Err(); err != nil {
		return nil, err
	}
	return readLine(ctx, tx, id)
}

func readLine(ctx context.Context, tx *goredis.Tx, id string) (*entity.CartLine, error) {
	fields, err := tx.HGetAll(ctx, lineKey(id)).Result()
	if err != nil {
		return nil, err
	}
	return decodeLine(fields)
}

func encodeLine(l *entity.CartLine) map[string]any {
	return map[string]any{
		fieldID:         l.ID,
		fieldOwnerKind:  string(l.Owner.Kind()),
		fieldOwnerValue: l.Owner.Value(),
		fieldVariantID:  l.VariantID,
		fieldQuantity:   l.Quantity,
		fieldCreatedAt:  formatTime(l.CreatedAt),
		fieldUpdatedAt:  formatTime(l.UpdatedAt),
	}
}

// decodeLine devuelve nil para un hash vacío (la línea no existe).
func decodeLine(fields map[string]string) (*entity.CartLine, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	owner, err := entity.ParseOwnerKey(fields[fieldOwnerKind], fields[fieldOwnerValue])
	if err != nil {
		return nil, err
	}
	qty, err := strconv.Atoi(fields[fieldQuantity])
	if err != nil {
		return nil, fmt.Errorf("quantity: %w", err)
	}
	created, err := time.Parse(time.RFC3339Nano, fields[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}
	updated, err := time.Parse(time.RFC3339Nano, fields[fieldUpdatedAt])
	if err != nil {
		return nil, fmt.Errorf("updated_at: %w", err)
	}
	return &entity.CartLine{
		ID:        fields[fieldID],
		Owner:     owner,
		VariantID: fields[fieldVariantID],
		Quantity:  qty,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func storeErr(op string, err error) error {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStoreUnavailable, op, err)
}
