package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/storefront-cart/internal/application/dto"
	"github.com/jhoicas/storefront-cart/internal/domain"
	"github.com/jhoicas/storefront-cart/internal/domain/entity"
	"github.com/jhoicas/storefront-cart/internal/domain/repository"
	"github.com/jhoicas/storefront-cart/pkg/logger"
)

// DefaultMaxLineQuantity tope por línea si no se configura otro.
const DefaultMaxLineQuantity = 99

// Options dependencias opcionales del caso de uso.
type Options struct {
	MaxLineQuantity int
	Cache           LineCache // nil = sin caché, siempre lee del almacenamiento
	Metrics         Metrics
	Logger          *logger.Logger
}

// UseCase único punto de entrada del carrito para la capa HTTP: resuelve la identidad,
// consulta stock y escribe en el repositorio en una sola operación lógica.
// No reintenta internamente salvo la recuperación por variante del IdentityResolver.
type UseCase struct {
	repo     repository.CartLineRepository
	variants repository.VariantRepository
	stock    StockReader
	resolver *IdentityResolver
	metrics  Metrics
	log      *logger.Logger
	maxQty   int
}

// NewUseCase construye el servicio del carrito.
func NewUseCase(
	repo repository.CartLineRepository,
	variants repository.VariantRepository,
	stock StockReader,
	opts Options,
) *UseCase {
	if opts.MaxLineQuantity <= 0 {
		opts.MaxLineQuantity = DefaultMaxLineQuantity
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	log := opts.Logger.Named("cart")
	return &UseCase{
		repo:     repo,
		variants: variants,
		stock:    stock,
		resolver: NewIdentityResolver(repo, opts.Cache, opts.Metrics, log),
		metrics:  opts.Metrics,
		log:      log,
		maxQty:   opts.MaxLineQuantity,
	}
}

// Resolver expone el resolver de identidad (migración explícita al iniciar sesión).
func (uc *UseCase) Resolver() *IdentityResolver {
	return uc.resolver
}

// ListCart devuelve las líneas del dueño con nombre, precio, subtotal y stock.
// Las variantes que ya no están en el catálogo se devuelven sin nombre y con precio 0.
func (uc *UseCase) ListCart(ctx context.Context, caller Caller) (out *dto.CartResponse, err error) {
	defer func() { uc.metrics.ObserveOperation(OpList, err) }()

	owner, err := uc.resolver.Resolve(ctx, caller)
	if err != nil {
		return nil, err
	}
	lines, err := uc.loadLines(ctx, owner)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.VariantID)
	}
	variants, err := uc.lookupVariants(ctx, ids)
	if err != nil {
		return nil, err
	}
	snaps, err := uc.stock.AvailableForMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	out = &dto.CartResponse{
		Owner:    owner.String(),
		Lines:    make([]dto.CartLineResponse, 0, len(lines)),
		Subtotal: decimal.Zero,
	}
	for _, l := range lines {
		snap := snaps[l.VariantID]
		view := toLineResponse(l, variants[l.VariantID], &snap)
		out.Lines = append(out.Lines, *view)
		out.ItemCount += l.Quantity
		out.Subtotal = out.Subtotal.Add(view.Subtotal)
	}
	return out, nil
}

// AddItem agrega quantity unidades de la variante. Si la línea existe suma, no duplica.
// El stock es informativo: sin disponibilidad la línea se crea igual con advertencia.
// Las lecturas de catálogo y stock ocurren antes de escribir para no fallar después de persistir.
func (uc *UseCase) AddItem(ctx context.Context, caller Caller, variantID string, quantity int) (out *dto.CartLineResponse, err error) {
	defer func() { uc.metrics.ObserveOperation(OpAdd, err) }()

	owner, err := uc.resolver.Resolve(ctx, caller)
	if err != nil {
		return nil, err
	}
	variantID = strings.TrimSpace(variantID)
	if variantID == "" {
		return nil, domain.ErrInvalidInput
	}
	if quantity < 1 || quantity > uc.maxQty {
		return nil, domain.ErrInvalidQuantity
	}

	snap, err := uc.stock.AvailableFor(ctx, variantID)
	if err != nil {
		return nil, err
	}
	variants, err := uc.lookupVariants(ctx, []string{variantID})
	if err != nil {
		return nil, err
	}

	line, err := uc.repo.UpsertLine(ctx, owner, variantID, quantity)
	if err != nil {
		return nil, fmt.Errorf("add item: %w", err)
	}
	uc.invalidate(ctx, owner)
	if line == nil {
		return nil, domain.ErrItemNotFound
	}
	if line.Quantity > uc.maxQty {
		uc.log.Warn().Str("line_id", line.ID).Int("quantity", line.Quantity).Msg("línea supera el máximo configurado")
	}
	return toLineResponse(line, variants[variantID], &snap), nil
}

// UpdateQuantity fija la cantidad absoluta de una línea. quantity <= 0 equivale a RemoveItem
// y devuelve nil. Si el id no pertenece al dueño se intenta una única recuperación por variante;
// si tampoco aparece devuelve domain.ErrItemNotFound y el cliente debe refrescar el carrito.
func (uc *UseCase) UpdateQuantity(ctx context.Context, caller Caller, lineID string, quantity int, variantHint string) (out *dto.CartLineResponse, err error) {
	defer func() { uc.metrics.ObserveOperation(OpUpdate, err) }()

	owner, err := uc.resolver.Resolve(ctx, caller)
	if err != nil {
		return nil, err
	}
	lineID = strings.TrimSpace(lineID)
	if lineID == "" {
		return nil, domain.ErrInvalidInput
	}
	if quantity <= 0 {
		return nil, uc.removeLine(ctx, owner, lineID, variantHint)
	}
	if quantity > uc.maxQty {
		return nil, domain.ErrInvalidQuantity
	}

	line, err := uc.repo.SetQuantity(ctx, owner, lineID, quantity)
	if errors.Is(err, domain.ErrNotFound) {
		recovered, rerr := uc.resolver.Recover(ctx, owner, lineID, variantHint)
		if rerr != nil {
			return nil, rerr
		}
		line, err = uc.repo.SetQuantity(ctx, owner, recovered.ID, quantity)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrItemNotFound
		}
	}
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	uc.invalidate(ctx, owner)

	return uc.enrichAfterWrite(ctx, line), nil
}

// RemoveItem elimina una línea. Eliminar una línea inexistente no es error.
func (uc *UseCase) RemoveItem(ctx context.Context, caller Caller, lineID, variantHint string) (err error) {
	defer func() { uc.metrics.ObserveOperation(OpRemove, err) }()

	owner, err := uc.resolver.Resolve(ctx, caller)
	if err != nil {
		return err
	}
	lineID = strings.TrimSpace(lineID)
	if lineID == "" {
		return domain.ErrInvalidInput
	}
	return uc.removeLine(ctx, owner, lineID, variantHint)
}

// ClearCart vacía el carrito del dueño y devuelve cuántas líneas se eliminaron (0 si ya estaba vacío).
func (uc *UseCase) ClearCart(ctx context.Context, caller Caller) (removed int, err error) {
	defer func() { uc.metrics.ObserveOperation(OpClear, err) }()

	owner, err := uc.resolver.Resolve(ctx, caller)
	if err != nil {
		return 0, err
	}
	removed, err = uc.repo.DeleteAllForOwner(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("clear cart: %w", err)
	}
	uc.invalidate(ctx, owner)
	return removed, nil
}

// StockFor expone la disponibilidad de una variante para la vista de producto.
func (uc *UseCase) StockFor(ctx context.Context, variantID string) (*dto.StockSnapshotResponse, error) {
	variantID = strings.TrimSpace(variantID)
	if variantID == "" {
		return nil, domain.ErrInvalidInput
	}
	snap, err := uc.stock.AvailableFor(ctx, variantID)
	if err != nil {
		return nil, err
	}
	return &dto.StockSnapshotResponse{VariantID: snap.VariantID, AvailableQuantity: snap.AvailableQuantity}, nil
}

func (uc *UseCase) removeLine(ctx context.Context, owner entity.OwnerKey, lineID, variantHint string) error {
	deleted, err := uc.repo.DeleteLine(ctx, owner, lineID)
	if err != nil {
		return fmt.Errorf("remove item: %w", err)
	}
	if !deleted {
		recovered, rerr := uc.resolver.Recover(ctx, owner, lineID, variantHint)
		if errors.Is(rerr, domain.ErrItemNotFound) {
			return nil
		}
		if rerr != nil {
			return rerr
		}
		if _, err := uc.repo.DeleteLine(ctx, owner, recovered.ID); err != nil {
			return fmt.Errorf("remove item: %w", err)
		}
	}
	uc.invalidate(ctx, owner)
	return nil
}

// loadLines lee las líneas del dueño; lecturas concurrentes del mismo dueño comparten consulta.
func (uc *UseCase) loadLines(ctx context.Context, owner entity.OwnerKey) ([]*entity.CartLine, error) {
	return uc.resolver.views.load(ctx, owner)
}

func (uc *UseCase) lookupVariants(ctx context.Context, ids []string) (map[string]*entity.Variant, error) {
	if len(ids) == 0 {
		return map[string]*entity.Variant{}, nil
	}
	variants, err := uc.variants.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("catalog lookup: %w", err)
	}
	return variants, nil
}

// enrichAfterWrite completa la respuesta de una escritura ya confirmada. Un fallo de lectura
// aquí no revierte la operación: se registra y la respuesta sale sin catálogo o sin stock.
func (uc *UseCase) enrichAfterWrite(ctx context.Context, line *entity.CartLine) *dto.CartLineResponse {
	if line == nil {
		return nil
	}
	variants, err := uc.lookupVariants(ctx, []string{line.VariantID})
	if err != nil {
		uc.log.Warn().Err(err).Str("variant_id", line.VariantID).Msg("catálogo no disponible tras escribir")
	}
	var snap *entity.StockSnapshot
	if s, err := uc.stock.AvailableFor(ctx, line.VariantID); err != nil {
		uc.log.Warn().Err(err).Str("variant_id", line.VariantID).Msg("stock no disponible tras escribir")
	} else {
		snap = &s
	}
	return toLineResponse(line, variants[line.VariantID], snap)
}

func (uc *UseCase) invalidate(ctx context.Context, owners ...entity.OwnerKey) {
	uc.resolver.views.invalidate(ctx, owners...)
}

func toLineResponse(l *entity.CartLine, v *entity.Variant, snap *entity.StockSnapshot) *dto.CartLineResponse {
	out := &dto.CartLineResponse{
		ID:        l.ID,
		VariantID: l.VariantID,
		Quantity:  l.Quantity,
		UnitPrice: decimal.Zero,
		Subtotal:  decimal.Zero,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
	if v != nil {
		out.SKU = v.SKU
		out.Name = v.Name
		out.UnitPrice = v.Price
		out.Subtotal = v.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
	}
	if snap != nil {
		out.Stock = &dto.StockSnapshotResponse{VariantID: l.VariantID, AvailableQuantity: snap.AvailableQuantity}
		out.StockWarning = stockWarning(l.Quantity, snap.AvailableQuantity)
	}
	return out
}
