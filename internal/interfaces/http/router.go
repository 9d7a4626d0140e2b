package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/storefront-cart/internal/application/cart"
	"github.com/jhoicas/storefront-cart/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	CartUC   *cart.UseCase
	Identity IdentityConfig
	Logger   *logger.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")
	cartHandler := NewCartHandler(deps.CartUC, deps.Logger)

	// Stock (público)
	api.Get("/stock/:variantId", cartHandler.Stock)

	// Carrito: invitado por sesión o usuario por Bearer Token
	carts := api.Group("/cart", IdentityMiddleware(deps.Identity))
	carts.Get("/", cartHandler.List)
	carts.Delete("/", cartHandler.Clear)
	carts.Post("/items", cartHandler.AddItem)
	carts.Patch("/items/:id", cartHandler.UpdateItem)
	carts.Delete("/items/:id", cartHandler.RemoveItem)
}
