package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jhoicas/storefront-cart/internal/domain/entity"
	"github.com/jhoicas/storefront-cart/internal/domain/repository"
)

var (
	_ repository.InventoryRepository = (*InventoryStore)(nil)
	_ repository.VariantRepository   = (*Catalog)(nil)
)

// InventoryStore registros de inventario en memoria, indexados por variante y ubicación.
type InventoryStore struct {
	mu      sync.RWMutex
	records map[string]map[string]entity.InventoryRecord // variantID -> locationID -> registro
}

func NewInventoryStore() *InventoryStore {
	return &InventoryStore{records: make(map[string]map[string]entity.InventoryRecord)}
}

// Put inserta o reemplaza el registro de (variante, ubicación).
func (s *InventoryStore) Put(variantID, locationID string, stockOnHand, reserved int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	locs, ok := s.records[variantID]
	if !ok {
		locs = make(map[string]entity.InventoryRecord)
		s.records[variantID] = locs
	}
	locs[locationID] = entity.InventoryRecord{
		VariantID:   variantID,
		LocationID:  locationID,
		StockOnHand: stockOnHand,
		Reserved:    reserved,
		UpdatedAt:   time.Now(),
	}
}

func (s *InventoryStore) ListByVariant(ctx context.Context, variantID string) ([]entity.InventoryRecord, error) {
	return s.ListByVariants(ctx, []string{variantID})
}

func (s *InventoryStore) ListByVariants(_ context.Context, variantIDs []string) ([]entity.InventoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []entity.InventoryRecord
	for _, id := range variantIDs {
		for _, r := range s.records[id] {
			out = append(out, r)
		}
	}
	return out, nil
}

// Catalog catálogo de variantes en memoria.
type Catalog struct {
	mu       sync.RWMutex
	variants map[string]entity.Variant
}

func NewCatalog(variants ...entity.Variant) *Catalog {
	c := &Catalog{variants: make(map[string]entity.Variant, len(variants))}
	for _, v := range variants {
		c.variants[v.ID] = v
	}
	return c
}

// Put agrega o reemplaza una variante.
func (c *Catalog) Put(v entity.Variant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variants[v.ID] = v
}

func (c *Catalog) GetByIDs(_ context.Context, ids []string) (map[string]*entity.Variant, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]*entity.Variant, len(ids))
	for _, id := range ids {
		if v, ok := c.variants[id]; ok {
			v := v
			out[id] = &v
		}
	}
	return out, nil
}
