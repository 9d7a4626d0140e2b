package cart

import (
	"context"
	"fmt"
	"strings"

	"github.com/jhoicas/storefront-cart/internal/domain"
	"github.com/jhoicas/storefront-cart/internal/domain/entity"
	"github.com/jhoicas/storefront-cart/internal/domain/repository"
	"github.com/jhoicas/storefront-cart/pkg/logger"
)

// IdentityResolver decide el dueño de cada petición y migra el carrito de invitado
// al usuario cuando ambos vienen en la misma petición.
type IdentityResolver struct {
	repo    repository.CartLineRepository
	views   *lineViews
	metrics Metrics
	log     *logger.Logger
}

// NewIdentityResolver construye el resolver. cache puede ser nil.
func NewIdentityResolver(repo repository.CartLineRepository, cache LineCache, metrics Metrics, log *logger.Logger) *IdentityResolver {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &IdentityResolver{
		repo:    repo,
		views:   &lineViews{repo: repo, cache: cache, log: log},
		metrics: metrics,
		log:     log,
	}
}

// Resolve devuelve el OwnerKey de la petición:
//   - sin usuario ni sesión: domain.ErrOwnerKeyMissing.
//   - solo sesión: Session(sessionID).
//   - con usuario: User(userID); si además hay sesión con líneas, se migran al usuario.
func (r *IdentityResolver) Resolve(ctx context.Context, caller Caller) (entity.OwnerKey, error) {
	caller = caller.normalized()
	switch {
	case caller.UserID == "" && caller.SessionID == "":
		return entity.OwnerKey{}, domain.ErrOwnerKeyMissing
	case caller.UserID == "":
		return entity.SessionOwner(caller.SessionID), nil
	}

	owner := entity.UserOwner(caller.UserID)
	if caller.SessionID != "" {
		if _, err := r.Migrate(ctx, entity.SessionOwner(caller.SessionID), owner); err != nil {
			return entity.OwnerKey{}, err
		}
	}
	return owner, nil
}

// Migrate reasigna las líneas de from a to. Con from vacío no escribe nada y devuelve 0,
// por lo que repetirla es inocuo.
func (r *IdentityResolver) Migrate(ctx context.Context, from, to entity.OwnerKey) (int, error) {
	if from == to {
		return 0, nil
	}
	pending, err := r.repo.FindByOwner(ctx, from)
	if err != nil {
		return 0, fmt.Errorf("migrate %s: %w", from, err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	moved, err := r.repo.ReassignOwner(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("migrate %s -> %s: %w", from, to, err)
	}
	r.views.invalidate(ctx, from, to)
	r.metrics.ObserveMigration(moved)
	r.log.Info().
		Str("from", from.String()).
		Str("to", to.String()).
		Int("lines", moved).
		Msg("carrito de invitado migrado")
	return moved, nil
}

// Recover re-resuelve una línea direccionada por un id que ya no pertenece al dueño
// (cliente con un id viejo de otra sesión o una línea fusionada en la migración).
// La variante se toma de la línea encontrada por id o, si el id ya no existe, de variantHint.
// Devuelve domain.ErrItemNotFound cuando el dueño no tiene esa variante.
func (r *IdentityResolver) Recover(ctx context.Context, owner entity.OwnerKey, lineID, variantHint string) (*entity.CartLine, error) {
	variantID := strings.TrimSpace(variantHint)

	stale, err := r.repo.GetByID(ctx, lineID)
	if err != nil {
		return nil, fmt.Errorf("recover line %s: %w", lineID, err)
	}
	if stale != nil {
		if stale.Owner == owner {
			return stale, nil
		}
		variantID = stale.VariantID
	}
	if variantID == "" {
		r.metrics.ObserveRecovery(false)
		return nil, domain.ErrItemNotFound
	}

	line, err := r.repo.FindLine(ctx, owner, variantID)
	if err != nil {
		return nil, fmt.Errorf("recover line %s: %w", lineID, err)
	}
	if line == nil {
		r.metrics.ObserveRecovery(false)
		return nil, domain.ErrItemNotFound
	}
	r.metrics.ObserveRecovery(true)
	r.log.Info().
		Str("owner", owner.String()).
		Str("stale_line_id", lineID).
		Str("line_id", line.ID).
		Msg("línea de carrito recuperada por variante")
	return line, nil
}
