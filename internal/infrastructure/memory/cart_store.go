package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/storefront-cart/internal/domain"
	"github.com/jhoicas/storefront-cart/internal/domain/entity"
	"github.com/jhoicas/storefront-cart/internal/domain/repository"
)

var _ repository.CartLineRepository = (*CartStore)(nil)

type lineKey struct {
	owner     entity.OwnerKey
	variantID string
}

// CartStore implementa CartLineRepository en memoria. Un único mutex serializa las
// escrituras, lo que hace atómicos el upsert por delta y la reasignación.
// Pensado para desarrollo local (CART_STORE_DRIVER=memory) y tests.
type CartStore struct {
	mu      sync.RWMutex
	lines   map[string]*entity.CartLine // id -> línea
	byOwner map[lineKey]string          // (dueño, variante) -> id
	now     func() time.Time
}

// NewCartStore crea un almacén vacío.
func NewCartStore() *CartStore {
	return &CartStore{
		lines:   make(map[string]*entity.CartLine),
		byOwner: make(map[lineKey]string),
		now:     time.Now,
	}
}

func (s *CartStore) FindByOwner(_ context.Context, owner entity.OwnerKey) ([]*entity.CartLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.CartLine, 0)
	for _, l := range s.lines {
		if l.Owner == owner {
			out = append(out, clone(l))
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

func (s *CartStore) FindLine(_ context.Context, owner entity.OwnerKey, variantID string) (*entity.CartLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byOwner[lineKey{owner, variantID}]
	if !ok {
		return nil, nil
	}
	return clone(s.lines[id]), nil
}

func (s *CartStore) GetByID(_ context.Context, id string) (*entity.CartLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lines[id]
	if !ok {
		return nil, nil
	}
	return clone(l), nil
}

func (s *CartStore) UpsertLine(_ context.Context, owner entity.OwnerKey, variantID string, delta int) (*entity.CartLine, error) {
	if owner.IsZero() || variantID == "" {
		return nil, domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	key := lineKey{owner, variantID}
	id, ok := s.byOwner[key]
	if !ok {
		if delta <= 0 {
			return nil, nil
		}
		l := &entity.CartLine{
			ID:        uuid.New().String(),
			Owner:     owner,
			VariantID: variantID,
			Quantity:  delta,
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.lines[l.ID] = l
		s.byOwner[key] = l.ID
		return clone(l), nil
	}

	l := s.lines[id]
	if delta == 0 {
		return clone(l), nil
	}
	if l.Quantity+delta < 1 {
		s.deleteLocked(l)
		return nil, nil
	}
	l.Quantity += delta
	l.UpdatedAt = now
	return clone(l), nil
}

func (s *CartStore) SetQuantity(_ context.Context, owner entity.OwnerKey, id string, quantity int) (*entity.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lines[id]
	if !ok || l.Owner != owner {
		return nil, domain.ErrNotFound
	}
	if quantity < 1 {
		s.deleteLocked(l)
		return nil, nil
	}
	l.Quantity = quantity
	l.UpdatedAt = s.now()
	return clone(l), nil
}

func (s *CartStore) DeleteLine(_ context.Context, owner entity.OwnerKey, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lines[id]
	if !ok || l.Owner != owner {
		return false, nil
	}
	s.deleteLocked(l)
	return true, nil
}

func (s *CartStore) DeleteAllForOwner(_ context.Context, owner entity.OwnerKey) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.lines {
		if l.Owner == owner {
			s.deleteLocked(l)
			n++
		}
	}
	return n, nil
}

func (s *CartStore) ReassignOwner(_ context.Context, from, to entity.OwnerKey) (int, error) {
	if from == to {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for _, src := range s.lines {
		if src.Owner != from {
			continue
		}
		n++
		if destID, ok := s.byOwner[lineKey{to, src.VariantID}]; ok {
			dest := s.lines[destID]
			dest.Quantity += src.Quantity
			dest.UpdatedAt = now
			s.deleteLocked(src)
			continue
		}
		delete(s.byOwner, lineKey{from, src.VariantID})
		src.Owner = to
		src.UpdatedAt = now
		s.byOwner[lineKey{to, src.VariantID}] = src.ID
	}
	return n, nil
}

func (s *CartStore) deleteLocked(l *entity.CartLine) {
	delete(s.lines, l.ID)
	delete(s.byOwner, lineKey{l.Owner, l.VariantID})
}

func clone(l *entity.CartLine) *entity.CartLine {
	c := *l
	return &c
}
