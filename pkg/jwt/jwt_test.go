package jwt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/storefront-cart/pkg/jwt"
)

func TestGenerateYParse(t *testing.T) {
	token, err := jwt.Generate("secreto", "u-42", "tienda", 5)
	require.NoError(t, err)

	userID, err := jwt.Parse("secreto", "tienda", token)
	require.NoError(t, err)
	assert.Equal(t, "u-42", userID)

	userID, err = jwt.Parse("secreto", "", token)
	require.NoError(t, err, "sin issuer configurado no se valida el emisor")
	assert.Equal(t, "u-42", userID)
}

func TestParse_Rechaza(t *testing.T) {
	token, err := jwt.Generate("secreto", "u-42", "tienda", 5)
	require.NoError(t, err)
	expired, err := jwt.Generate("secreto", "u-42", "tienda", -1)
	require.NoError(t, err)

	cases := map[string]struct{ secret, issuer, token string }{
		"firma incorrecta": {"otro", "tienda", token},
		"emisor distinto":  {"secreto", "otra-tienda", token},
		"expirado":         {"secreto", "tienda", expired},
		"basura":           {"secreto", "", "no.es.jwt"},
		"secret vacío":     {"", "", token},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := jwt.Parse(tc.secret, tc.issuer, tc.token)
			assert.Error(t, err)
		})
	}
}
