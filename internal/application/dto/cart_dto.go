package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// AddCartItemRequest body para POST /api/cart/items.
type AddCartItemRequest struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

// UpdateCartItemRequest body para PATCH /api/cart/items/:id.
// VariantID es opcional: permite recuperar la línea si el id quedó obsoleto tras una migración.
type UpdateCartItemRequest struct {
	Quantity  int    `json:"quantity"`
	VariantID string `json:"variant_id,omitempty"`
}

// StockSnapshotResponse disponibilidad para la venta de una variante.
type StockSnapshotResponse struct {
	VariantID         string `json:"variant_id"`
	AvailableQuantity int    `json:"available_quantity"`
}

// CartLineResponse línea del carrito enriquecida con catálogo y stock.
type CartLineResponse struct {
	ID           string                 `json:"id"`
	VariantID    string                 `json:"variant_id"`
	SKU          string                 `json:"sku,omitempty"`
	Name         string                 `json:"name,omitempty"`
	Quantity     int                    `json:"quantity"`
	UnitPrice    decimal.Decimal        `json:"unit_price"`
	Subtotal     decimal.Decimal        `json:"subtotal"`
	Stock        *StockSnapshotResponse `json:"stock,omitempty"`
	StockWarning string                 `json:"stock_warning,omitempty"` // out_of_stock | insufficient_stock
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// CartResponse carrito completo del dueño resuelto.
type CartResponse struct {
	Owner     string             `json:"owner"` // session:<id> | user:<id>
	Lines     []CartLineResponse `json:"lines"`
	ItemCount int                `json:"item_count"`
	Subtotal  decimal.Decimal    `json:"subtotal"`
}

// ClearCartResponse resultado de vaciar el carrito.
type ClearCartResponse struct {
	Removed int `json:"removed"`
}
