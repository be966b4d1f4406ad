package polymarket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polywatch/internal/domain"
)

const (
	gammaMarketsPath = "/markets"

	// resolveTTL limita cuánto vive un mercado resuelto en caché.
	// La metadata de una ronda horaria es casi inmutable, pero el
	// flag closed cambia al cierre de la hora.
	resolveTTL = 10 * time.Minute
)

// Resolve busca en Gamma el mercado de una ronda por su slug.
// Implementa ports.MarketResolver con caché TTL por delante.
func (c *Client) Resolve(ctx context.Context, slug string) (domain.Market, error) {
	if slug == "" {
		return domain.Market{}, errors.New("polymarket.Resolve: empty slug")
	}
	if m, ok := c.resolveCache.get(slug); ok {
		return m, nil
	}

	url := fmt.Sprintf("%s%s?slug=%s", c.gammaBase, gammaMarketsPath, slug)
	var resp gammaMarketsResponse
	if err := c.get(ctx, c.gammaLimiter, url, &resp); err != nil {
		return domain.Market{}, fmt.Errorf("polymarket.Resolve %q: %w", slug, err)
	}
	if len(resp) == 0 {
		return domain.Market{}, fmt.Errorf("polymarket.Resolve: market %q not found", slug)
	}

	m := mapGammaMarket(resp[0])
	c.resolveCache.put(slug, m)
	slog.Debug("market resolved",
		"slug", slug,
		"condition_id", m.ConditionID,
		"closed", m.Closed,
	)
	return m, nil
}
