package entity

import "time"

// InventoryRecord stock de una variante en una ubicación (bodega/tienda).
// Es de solo lectura para el carrito; reserved <= stock_on_hand no está garantizado aguas arriba.
type InventoryRecord struct {
	VariantID   string
	LocationID  string
	StockOnHand int
	Reserved    int
	UpdatedAt   time.Time
}

// Sellable devuelve lo vendible en esta ubicación, nunca negativo.
func (r InventoryRecord) Sellable() int {
	if n := r.StockOnHand - r.Reserved; n > 0 {
		return n
	}
	return 0
}

// StockSnapshot proyección derivada (no persistida) de disponibilidad para una variante.
type StockSnapshot struct {
	VariantID         string
	AvailableQuantity int
}
