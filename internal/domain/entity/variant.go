package entity

import "github.com/shopspring/decimal"

// Variant representa una variante vendible del catálogo (talla, color...).
// El carrito solo la lee para enriquecer las líneas con nombre y precio.
type Variant struct {
	ID        string
	ProductID string
	SKU       string
	Name      string
	Price     decimal.Decimal
}
