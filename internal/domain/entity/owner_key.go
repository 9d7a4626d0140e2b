package entity

import (
	"fmt"
	"strings"
)

// OwnerKind identifica el tipo de dueño de un carrito.
type OwnerKind string

const (
	OwnerKindSession OwnerKind = "session"
	OwnerKindUser    OwnerKind = "user"
)

// OwnerKey es la identidad dueña de una línea de carrito: Session(id) | User(id).
// Los campos no exportados hacen que solo exista una variante activa a la vez;
// se construye únicamente con SessionOwner, UserOwner o ParseOwnerKey.
// Es comparable, por lo que puede usarse como llave de mapa.
type OwnerKey struct {
	kind  OwnerKind
	value string
}

// SessionOwner dueño anónimo identificado por la sesión del navegador.
func SessionOwner(sessionID string) OwnerKey {
	return OwnerKey{kind: OwnerKindSession, value: sessionID}
}

// UserOwner dueño autenticado.
func UserOwner(userID string) OwnerKey {
	return OwnerKey{kind: OwnerKindUser, value: userID}
}

// ParseOwnerKey reconstruye la llave desde su forma persistida (owner_kind, owner_value).
func ParseOwnerKey(kind, value string) (OwnerKey, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return OwnerKey{}, fmt.Errorf("owner key: valor vacío")
	}
	switch OwnerKind(kind) {
	case OwnerKindSession:
		return SessionOwner(value), nil
	case OwnerKindUser:
		return UserOwner(value), nil
	}
	return OwnerKey{}, fmt.Errorf("owner key: tipo desconocido %q", kind)
}

func (k OwnerKey) Kind() OwnerKind { return k.kind }
func (k OwnerKey) Value() string  { return k.value }

// IsZero indica una llave sin construir (ni sesión ni usuario).
func (k OwnerKey) IsZero() bool { return k.kind == "" || k.value == "" }

func (k OwnerKey) IsUser() bool { return k.kind == OwnerKindUser }

// String devuelve "session:<id>" o "user:<id>".
func (k OwnerKey) String() string {
	if k.IsZero() {
		return ""
	}
	return string(k.kind) + ":" + k.value
}
