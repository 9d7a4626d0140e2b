package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apphttp "github.com/jhoicas/storefront-cart/internal/interfaces/http"
)

// buildIdentityApp ruta dummy que devuelve la identidad cargada por el middleware.
func buildIdentityApp() *fiber.App {
	app := fiber.New()
	app.Get("/whoami", apphttp.IdentityMiddleware(testIdentity), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"user":    apphttp.GetUserID(c),
			"session": apphttp.GetSessionID(c),
		})
	})
	return app
}

func whoami(t *testing.T, app *fiber.App, mutate func(r *http.Request)) (int, map[string]string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	mutate(req)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	out := map[string]string{}
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func TestIdentityMiddleware_SesionPorHeader(t *testing.T) {
	status, out := whoami(t, buildIdentityApp(), func(r *http.Request) {
		r.Header.Set("X-Session-ID", " s-header ")
		r.AddCookie(&http.Cookie{Name: "cart_session", Value: "s-cookie"})
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "s-header", out["session"], "el header tiene prioridad sobre la cookie")
	assert.Empty(t, out["user"])
}

func TestIdentityMiddleware_SesionPorCookie(t *testing.T) {
	status, out := whoami(t, buildIdentityApp(), func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "cart_session", Value: "s-cookie"})
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "s-cookie", out["session"])
}

func TestIdentityMiddleware_UsuarioYSesion(t *testing.T) {
	auth := bearer(t)
	status, out := whoami(t, buildIdentityApp(), func(r *http.Request) {
		r.Header.Set("Authorization", auth)
		r.Header.Set("X-Session-ID", "s1")
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, testUserID, out["user"])
	assert.Equal(t, "s1", out["session"])
}

func TestIdentityMiddleware_SinNadaPasaComoAnonimo(t *testing.T) {
	status, out := whoami(t, buildIdentityApp(), func(*http.Request) {})
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, out["user"])
	assert.Empty(t, out["session"])
}

func TestIdentityMiddleware_TokenMalFormado401(t *testing.T) {
	for _, header := range []string{"Bearer", "Bearer   ", "Basic abc", "Bearer abc.def.ghi"} {
		status, _ := whoami(t, buildIdentityApp(), func(r *http.Request) {
			r.Header.Set("Authorization", header)
		})
		assert.Equal(t, http.StatusUnauthorized, status, header)
	}
}
