package ports

import (
	"context"

	"github.com/alejandrodnm/polywatch/internal/domain"
)

// PriceProvider consulta precios mid puntuales del CLOB.
type PriceProvider interface {
	// Midpoints devuelve el mid actual por token id. Los tokens no
	// encontrados simplemente no aparecen en el mapa.
	Midpoints(ctx context.Context, tokenIDs []string) (map[string]float64, error)
}

// PriceStreamer mantiene una suscripción websocket al canal público
// de mercado del CLOB y emite actualizaciones de precio.
type PriceStreamer interface {
	// StreamPrices abre el stream para los tokens dados. El canal se
	// cierra al cancelar ctx o al agotar los reintentos de conexión.
	StreamPrices(ctx context.Context, tokenIDs []string) (<-chan domain.PriceUpdate, error)
}
