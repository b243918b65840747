package balances

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// single collapses concurrent full scans for the same cache key.
func single(ctx context.Context, group *singleflight.Group, key string, fn func(context.Context) (interface{}, error)) (interface{}, error, bool) {
	resultChan := group.DoChan(key, func() (interface{}, error) {
		return fn(ctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}
