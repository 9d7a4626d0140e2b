package http

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/storefront-cart/internal/application/cart"
	"github.com/jhoicas/storefront-cart/internal/application/dto"
	"github.com/jhoicas/storefront-cart/internal/domain"
	"github.com/jhoicas/storefront-cart/pkg/logger"
)

// CartHandler maneja las peticiones HTTP del carrito (invitado o usuario).
type CartHandler struct {
	uc  *cart.UseCase
	log *logger.Logger
}

// NewCartHandler construye el handler.
func NewCartHandler(uc *cart.UseCase, log *logger.Logger) *CartHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &CartHandler{uc: uc, log: log.Named("http")}
}

// List godoc
// @Summary      Ver carrito
// @Description  Líneas del dueño con nombre, precio, subtotal y stock disponible. Si llegan usuario y
//
//	sesión, el carrito de invitado se fusiona primero con el del usuario.
//
// @Tags         cart
// @Security     Bearer
// @Produce      json
// @Param        X-Session-ID  header  string  false  "Sesión anónima"
// @Success      200  {object}  dto.CartResponse
// @Failure      401  {object}  dto.ErrorResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/cart [get]
func (h *CartHandler) List(c *fiber.Ctx) error {
	out, err := h.uc.ListCart(c.Context(), callerFrom(c))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(out)
}

// AddItem godoc
// @Summary      Agregar al carrito
// @Description  Suma la cantidad a la línea existente de la variante o crea una nueva.
// @Tags         cart
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        X-Session-ID  header  string                  false  "Sesión anónima"
// @Param        body          body    dto.AddCartItemRequest  true   "variant_id, quantity"
// @Success      201  {object}  dto.CartLineResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      401  {object}  dto.ErrorResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/cart/items [post]
func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	var in dto.AddCartItemRequest
	if err := c.BodyParser(&in); err != nil {
		return h.bodyError(c, err)
	}
	out, err := h.uc.AddItem(c.Context(), callerFrom(c), in.VariantID, in.Quantity)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// UpdateItem godoc
// @Summary      Cambiar cantidad
// @Description  Fija la cantidad de la línea. quantity <= 0 la elimina y responde 204.
//
//	variant_id permite recuperar la línea si el id quedó obsoleto tras iniciar sesión.
//
// @Tags         cart
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                     true  "ID de la línea"
// @Param        body  body  dto.UpdateCartItemRequest  true  "quantity, variant_id opcional"
// @Success      200  {object}  dto.CartLineResponse
// @Success      204
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      401  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/cart/items/{id} [patch]
func (h *CartHandler) UpdateItem(c *fiber.Ctx) error {
	var in dto.UpdateCartItemRequest
	if err := c.BodyParser(&in); err != nil {
		return h.bodyError(c, err)
	}
	out, err := h.uc.UpdateQuantity(c.Context(), callerFrom(c), c.Params("id"), in.Quantity, in.VariantID)
	if err != nil {
		return h.writeError(c, err)
	}
	if out == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(out)
}

// RemoveItem godoc
// @Summary      Quitar del carrito
// @Description  Idempotente: una línea inexistente también responde 204.
// @Tags         cart
// @Security     Bearer
// @Param        id          path   string  true   "ID de la línea"
// @Param        variant_id  query  string  false  "Variante, para recuperar ids obsoletos"
// @Success      204
// @Failure      401  {object}  dto.ErrorResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/cart/items/{id} [delete]
func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	if err := h.uc.RemoveItem(c.Context(), callerFrom(c), c.Params("id"), c.Query("variant_id")); err != nil {
		return h.writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Clear godoc
// @Summary      Vaciar carrito
// @Tags         cart
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.ClearCartResponse
// @Failure      401  {object}  dto.ErrorResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/cart [delete]
func (h *CartHandler) Clear(c *fiber.Ctx) error {
	removed, err := h.uc.ClearCart(c.Context(), callerFrom(c))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(dto.ClearCartResponse{Removed: removed})
}

// Stock godoc
// @Summary      Disponibilidad de una variante
// @Description  Suma de (stock - reservado) por ubicación, sin negativos.
// @Tags         stock
// @Produce      json
// @Param        variantId  path  string  true  "ID de la variante"
// @Success      200  {object}  dto.StockSnapshotResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/stock/{variantId} [get]
func (h *CartHandler) Stock(c *fiber.Ctx) error {
	out, err := h.uc.StockFor(c.Context(), c.Params("variantId"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(out)
}

// bodyError responde a un cuerpo que no se pudo decodificar. Una cantidad no entera
// (1.5, "2") es INVALID_QUANTITY, no un cuerpo mal formado.
func (h *CartHandler) bodyError(c *fiber.Ctx, err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field == "quantity" {
		return h.writeError(c, domain.ErrInvalidQuantity)
	}
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}

func (h *CartHandler) writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_QUANTITY", Message: "la cantidad está fuera del rango permitido"})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "datos inválidos"})
	case errors.Is(err, domain.ErrOwnerKeyMissing):
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "OWNER_KEY_MISSING", Message: "se requiere sesión o usuario"})
	case errors.Is(err, domain.ErrItemNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "ITEM_NOT_FOUND", Message: "la línea ya no existe; refresque el carrito"})
	case errors.Is(err, domain.ErrStoreUnavailable):
		h.log.Error().Err(err).Str("path", c.Path()).Msg("almacenamiento no disponible")
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "STORE_UNAVAILABLE", Message: "intente de nuevo más tarde"})
	}
	h.log.Error().Err(err).Str("path", c.Path()).Msg("error no esperado")
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
}
