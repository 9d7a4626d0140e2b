package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound         = errors.New("recurso no encontrado")
	ErrInvalidInput     = errors.New("entrada inválida")
	ErrInvalidQuantity  = errors.New("cantidad inválida")
	ErrOwnerKeyMissing  = errors.New("se requiere sesión o usuario para operar el carrito")
	ErrItemNotFound     = errors.New("línea de carrito no encontrada")
	ErrStoreUnavailable = errors.New("almacenamiento no disponible")
)
