package cart

import "strings"

// Caller identidad de la petición según el proveedor de sesión: ambos campos son opcionales
// y pueden venir juntos (navegador autenticado con sesión de invitado previa).
type Caller struct {
	UserID    string
	SessionID string
}

func (c Caller) normalized() Caller {
	return Caller{UserID: strings.TrimSpace(c.UserID), SessionID: strings.TrimSpace(c.SessionID)}
}

// Nombres de operación para métricas y logs.
const (
	OpList   = "list"
	OpAdd    = "add"
	OpUpdate = "update"
	OpRemove = "remove"
	OpClear  = "clear"
)

// Advertencias de stock en una línea. El stock es informativo al agregar; el bloqueo
// real ocurre en el checkout, fuera de este servicio.
const (
	StockWarningOutOfStock   = "out_of_stock"
	StockWarningInsufficient = "insufficient_stock"
)

func stockWarning(quantity, available int) string {
	switch {
	case available <= 0:
		return StockWarningOutOfStock
	case quantity > available:
		return StockWarningInsufficient
	}
	return ""
}
