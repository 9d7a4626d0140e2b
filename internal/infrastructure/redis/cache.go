package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jhoicas/storefront-cart/internal/application/cart"
	"github.com/jhoicas/storefront-cart/internal/domain/entity"
)

var _ cart.LineCache = (*LineCache)(nil)

const (
	viewKeyPrefix = "cart:view:"
	genKeyPrefix  = "cart:view:gen:"
)

// setIfGeneration escribe la vista solo si la generación no cambió desde el Get.
var setIfGeneration = goredis.NewScript(`
local gen = redis.call('GET', KEYS[1]) or '0'
if gen ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// LineCache caché-aside de las líneas de cada dueño. Cada invalidación incrementa un
// contador de generación, de modo que una lectura iniciada antes no deja datos viejos.
type LineCache struct {
	client  *goredis.Client
	baseTTL time.Duration
}

func NewLineCache(client *goredis.Client, ttl time.Duration) *LineCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &LineCache{client: client, baseTTL: ttl}
}

type cachedLine struct {
	ID         string    `json:"id"`
	OwnerKind  string    `json:"owner_kind"`
	OwnerValue string    `json:"owner_value"`
	VariantID  string    `json:"variant_id"`
	Quantity   int       `json:"quantity"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func viewKey(owner entity.OwnerKey) string { return viewKeyPrefix + owner.String() }

func genKey(owner entity.OwnerKey) string { return genKeyPrefix + owner.String() }

func (c *LineCache) Get(ctx context.Context, owner entity.OwnerKey) ([]*entity.CartLine, int64, error) {
	var genCmd, dataCmd *goredis.StringCmd
	_, err := c.client.Pipelined(ctx, func(p goredis.Pipeliner) error {
		genCmd = p.Get(ctx, genKey(owner))
		dataCmd = p.Get(ctx, viewKey(owner))
		return nil
	})
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, 0, fmt.Errorf("redis get failed: %w", err)
	}

	var gen int64
	if raw, err := genCmd.Result(); err == nil {
		gen, _ = strconv.ParseInt(raw, 10, 64)
	}
	data, err := dataCmd.Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, gen, cart.ErrCacheMiss
	}
	if err != nil {
		return nil, gen, fmt.Errorf("redis get failed: %w", err)
	}

	var cached []cachedLine
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, gen, fmt.Errorf("unmarshal cart view failed: %w", err)
	}
	lines := make([]*entity.CartLine, 0, len(cached))
	for _, cl := range cached {
		owner, err := entity.ParseOwnerKey(cl.OwnerKind, cl.OwnerValue)
		if err != nil {
			return nil, gen, fmt.Errorf("cached owner: %w", err)
		}
		lines = append(lines, &entity.CartLine{
			ID:        cl.ID,
			Owner:     owner,
			VariantID: cl.VariantID,
			Quantity:  cl.Quantity,
			CreatedAt: cl.CreatedAt,
			UpdatedAt: cl.UpdatedAt,
		})
	}
	return lines, gen, nil
}

func (c *LineCache) Set(ctx context.Context, owner entity.OwnerKey, generation int64, lines []*entity.CartLine) error {
	cached := make([]cachedLine, 0, len(lines))
	for _, l := range lines {
		cached = append(cached, cachedLine{
			ID:         l.ID,
			OwnerKind:  string(l.Owner.Kind()),
			OwnerValue: l.Owner.Value(),
			VariantID:  l.VariantID,
			Quantity:   l.Quantity,
			CreatedAt:  l.CreatedAt,
			UpdatedAt:  l.UpdatedAt,
		})
	}
	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("marshal cart view failed: %w", err)
	}

	ttl := c.baseTTL + time.Duration(rand.Int63n(int64(c.baseTTL/5)+1))
	err = setIfGeneration.Run(ctx, c.client,
		[]string{genKey(owner), viewKey(owner)},
		strconv.FormatInt(generation, 10), data, ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Invalidate sube la generación y borra la vista de cada dueño en un solo pipeline.
func (c *LineCache) Invalidate(ctx context.Context, owners ...entity.OwnerKey) error {
	if len(owners) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		for _, o := range owners {
			p.Incr(ctx, genKey(o))
			p.Expire(ctx, genKey(o), 2*c.baseTTL)
			p.Del(ctx, viewKey(o))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate failed: %w", err)
	}
	return nil
}
