package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jhoicas/storefront-cart/internal/domain/entity"
	"github.com/jhoicas/storefront-cart/internal/domain/repository"
	"github.com/jhoicas/storefront-cart/pkg/logger"
)

const (
	loadTimeout       = 5 * time.Second
	invalidateTimeout = time.Second
)

// lineViews lectura de las líneas por dueño con caché-aside. Lecturas concurrentes del
// mismo dueño comparten una consulta; toda escritura confirmada pasa por invalidate.
type lineViews struct {
	repo  repository.CartLineRepository
	cache LineCache
	log   *logger.Logger
	loads singleflight.Group
}

func (v *lineViews) load(ctx context.Context, owner entity.OwnerKey) ([]*entity.CartLine, error) {
	// La consulta compartida no depende del contexto de quien la inició.
	ch := v.loads.DoChan(owner.String(), func() (interface{}, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return v.fetch(lctx, owner)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]*entity.CartLine), nil
	}
}

func (v *lineViews) fetch(ctx context.Context, owner entity.OwnerKey) ([]*entity.CartLine, error) {
	var generation int64
	if v.cache != nil {
		lines, gen, err := v.cache.Get(ctx, owner)
		if err == nil {
			return lines, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			v.log.Warn().Err(err).Str("owner", owner.String()).Msg("lectura de caché fallida")
		}
		generation = gen
	}

	lines, err := v.repo.FindByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	if v.cache != nil {
		if err := v.cache.Set(ctx, owner, generation, lines); err != nil {
			v.log.Warn().Err(err).Str("owner", owner.String()).Msg("escritura de caché fallida")
		}
	}
	return lines, nil
}

// invalidate se llama después de cada escritura confirmada sobre owners. Primero la caché,
// luego la consulta en vuelo: una lectura posterior no puede ver ninguna de las dos viejas.
func (v *lineViews) invalidate(ctx context.Context, owners ...entity.OwnerKey) {
	if v.cache != nil {
		// La escritura ya se confirmó: invalidar aunque el cliente haya cancelado.
		ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
		if err := v.cache.Invalidate(ictx, owners...); err != nil {
			v.log.Warn().Err(err).Msg("no se pudo invalidar la caché del carrito")
		}
		cancel()
	}
	for _, o := range owners {
		v.loads.Forget(o.String())
	}
}
