package prices

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"shield-core/pkg/amount"
	"shield-core/pkg/cache"
	"shield-core/pkg/errno"
)

// CachedSource 给任意 Source 套一层多级缓存。
// 报价是时间敏感数据，TTL 必须保持在秒级；过期宁可重新取价也不用旧价。
type CachedSource struct {
	inner Source
	cache cache.Cache
	ttl   time.Duration
}

func NewCachedSource(inner Source, c cache.Cache, ttl time.Duration) *CachedSource {
	return &CachedSource{inner: inner, cache: c, ttl: ttl}
}

func (s *CachedSource) TokenPriceUSD(ctx context.Context, chainID uint64, token common.Address) (*amount.Amount, error) {
	key := fmt.Sprintf("price:%d:%s", chainID, token.Hex())

	var cached string
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		if v, err := amount.FromString(cached); err == nil {
			return v, nil
		}
	}

	v, err := s.inner.TokenPriceUSD(ctx, chainID, token)
	if err != nil {
		return nil, err
	}
	if v.Sign() <= 0 {
		return nil, errno.ErrPriceUnavailable
	}

	_ = s.cache.Set(ctx, key, v.String(), s.ttl) // 缓存写失败不阻塞取价

	return v, nil
}

func (s *CachedSource) NativePriceUSD(ctx context.Context, chainID uint64) (*amount.Amount, error) {
	return s.TokenPriceUSD(ctx, chainID, common.Address{})
}
