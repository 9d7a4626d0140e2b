package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/jhoicas/storefront-cart/internal/application/cart"
	"github.com/jhoicas/storefront-cart/internal/application/dto"
	"github.com/jhoicas/storefront-cart/pkg/jwt"
)

// Locals keys para la identidad de la petición.
const (
	LocalUserID    = "user_id"
	LocalSessionID = "session_id"
)

// IdentityConfig de dónde sale la identidad: JWT opcional y sesión anónima por header o cookie.
type IdentityConfig struct {
	JWTSecret     string
	JWTIssuer     string
	SessionHeader string
	SessionCookie string
}

// IdentityMiddleware carga UserID (si viene un Bearer válido) y SessionID en c.Locals.
// El token es opcional, pero si viene y no es válido responde 401 en vez de tratar
// la petición como invitado.
func IdentityMiddleware(cfg IdentityConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "formato: Bearer <token>"})
			}
			userID, err := jwt.Parse(cfg.JWTSecret, cfg.JWTIssuer, strings.TrimSpace(parts[1]))
			if err != nil {
				return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "token inválido o expirado"})
			}
			c.Locals(LocalUserID, userID)
		}

		session := ""
		if cfg.SessionHeader != "" {
			session = strings.TrimSpace(c.Get(cfg.SessionHeader))
		}
		if session == "" && cfg.SessionCookie != "" {
			session = strings.TrimSpace(c.Cookies(cfg.SessionCookie))
		}
		if session != "" {
			// c.Get y c.Cookies apuntan al buffer de fasthttp, que se reutiliza entre peticiones.
			c.Locals(LocalSessionID, utils.CopyString(session))
		}
		return c.Next()
	}
}

// GetUserID devuelve el UserID del contexto (vacío para invitados).
func GetUserID(c *fiber.Ctx) string {
	s, _ := c.Locals(LocalUserID).(string)
	return s
}

// GetSessionID devuelve el id de sesión anónima del contexto.
func GetSessionID(c *fiber.Ctx) string {
	s, _ := c.Locals(LocalSessionID).(string)
	return s
}

func callerFrom(c *fiber.Ctx) cart.Caller {
	return cart.Caller{UserID: GetUserID(c), SessionID: GetSessionID(c)}
}
