package polymarket

import (
	"sync"
	"time"

	"github.com/alejandrodnm/polywatch/internal/domain"
)

// marketCache guarda mercados resueltos con expiración TTL. El
// dashboard pregunta por la misma ronda en cada refresh; sin caché
// cada vista sería un round-trip a Gamma.
type marketCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cachedMarket
}

type cachedMarket struct {
	market    domain.Market
	fetchedAt time.Time
}

func newMarketCache(ttl time.Duration) *marketCache {
	return &marketCache{
		ttl:     ttl,
		entries: make(map[string]cachedMarket),
	}
}

func (mc *marketCache) get(slug string) (domain.Market, bool) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	e, ok := mc.entries[slug]
	if !ok || time.Since(e.fetchedAt) > mc.ttl {
		return domain.Market{}, false
	}
	return e.market, true
}

func (mc *marketCache) put(slug string, m domain.Market) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.entries[slug] = cachedMarket{market: m, fetchedAt: time.Now()}
}
