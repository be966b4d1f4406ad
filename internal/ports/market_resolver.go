package ports

import (
	"context"

	"github.com/alejandrodnm/polywatch/internal/domain"
)

// MarketResolver mapea el slug de una ronda a los metadatos del
// mercado en Polymarket (condition id, tokens, cierre).
type MarketResolver interface {
	// Resolve consulta Gamma por slug. Las implementaciones cachean:
	// el slug de una ronda horaria no cambia de significado.
	Resolve(ctx context.Context, slug string) (domain.Market, error)
}
