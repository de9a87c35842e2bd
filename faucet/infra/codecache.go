package infra

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/ethereum/go-ethereum/common"
)

type codeChecker interface {
	HasCode(ctx context.Context, addr common.Address) (bool, error)
}

// CodeCache guarda só resultados positivos de HasCode.
//
// Um contrato continua contrato; um endereço sem código pode receber código a
// qualquer momento, então "sem código" sempre vai ao RPC.
type CodeCache struct {
	next  codeChecker
	cache *ristretto.Cache[string, bool]
	ttl   time.Duration
}

func NewCodeCache(next codeChecker, ttl time.Duration) (*CodeCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, bool]{
		NumCounters: 100_000,
		MaxCost:     10_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &CodeCache{next: next, cache: cache, ttl: ttl}, nil
}

func (c *CodeCache) HasCode(ctx context.Context, addr common.Address) (bool, error) {
	key := addr.Hex()
	if hit, ok := c.cache.Get(key); ok && hit {
		return true, nil
	}
	has, err := c.next.HasCode(ctx, addr)
	if err != nil {
		return false, err
	}
	if has {
		c.cache.SetWithTTL(key, true, 1, c.ttl)
	}
	return has, nil
}

// Wait bloqueia até as escritas pendentes ficarem visíveis (testes).
func (c *CodeCache) Wait() { c.cache.Wait() }

func (c *CodeCache) Close() { c.cache.Close() }
