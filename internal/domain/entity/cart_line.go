package entity

import "time"

// CartLine es una fila del carrito: una variante y su cantidad para un dueño.
// Invariante: por cada Owner existe como máximo una línea por VariantID.
type CartLine struct {
	ID        string
	Owner     OwnerKey
	VariantID string
	Quantity  int // siempre >= 1 una vez persistida
	CreatedAt time.Time
	UpdatedAt time.Time
}
