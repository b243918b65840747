package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	redisProductsKey = "catalog:products"
	redisOrderKey    = "catalog:order"
	redisSeqKey      = "catalog:seq"
)

type redisRepository struct {
	client *redis.Client
}

// NewRedisRepository returns a repository keeping products in a Redis hash,
// ordered by a sorted set of insertion sequence numbers.
func NewRedisRepository(client *redis.Client) Repository {
	return &redisRepository{client: client}
}

func (r *redisRepository) ListProducts(ctx context.Context) ([]Product, error) {
	ids, err := r.client.ZRange(ctx, redisOrderKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	raws, err := r.client.HMGet(ctx, redisProductsKey, ids...).Result()
	if err != nil {
		return nil, err
	}
	products := make([]Product, 0, len(raws))
	for i, raw := range raws {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		var p Product
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			return nil, fmt.Errorf("catalog: decode %s: %w", ids[i], err)
		}
		products = append(products, p)
	}
	return products, nil
}

func (r *redisRepository) GetProduct(ctx context.Context, id string) (Product, error) {
	raw, err := r.client.HGet(ctx, redisProductsKey, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Product{}, ErrProductNotFound
	}
	if err != nil {
		return Product{}, err
	}
	var p Product
	if err := json.Unmarshal(raw, &p); err != nil {
		return Product{}, fmt.Errorf("catalog: decode %s: %w", id, err)
	}
	return p, nil
}

// UpsertProduct keeps the original position of existing products; new ones go last.
func (r *redisRepository) UpsertProduct(ctx context.Context, p Product) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	seq, err := r.client.Incr(ctx, redisSeqKey).Result()
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, redisProductsKey, p.ID, raw)
		pipe.ZAddNX(ctx, redisOrderKey, redis.Z{Score: float64(seq), Member: p.ID})
		return nil
	})
	return err
}

func (r *redisRepository) DeleteProduct(ctx context.Context, id string) error {
	var removed *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.HDel(ctx, redisProductsKey, id)
		pipe.ZRem(ctx, redisOrderKey, id)
		return nil
	})
	if err != nil {
		return err
	}
	if removed.Val() == 0 {
		return ErrProductNotFound
	}
	return nil
}
