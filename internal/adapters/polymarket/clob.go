package polymarket

import (
	"context"
	"fmt"
	"strconv"
)

const clobMidpointsPath = "/midpoints"

// Midpoints consulta el precio mid actual de varios tokens en una
// sola llamada batch. Implementa ports.PriceProvider. Los tokens que
// el CLOB no conoce (o devuelve sin precio) no aparecen en el mapa.
func (c *Client) Midpoints(ctx context.Context, tokenIDs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(tokenIDs))
	if len(tokenIDs) == 0 {
		return out, nil
	}

	body := make([]midpointRequest, len(tokenIDs))
	for i, id := range tokenIDs {
		body[i] = midpointRequest{TokenID: id}
	}

	var resp midpointsResponse
	if err := c.post(ctx, c.clobLimiter, c.clobBase+clobMidpointsPath, body, &resp); err != nil {
		return nil, fmt.Errorf("polymarket.Midpoints: %w", err)
	}

	for id, raw := range resp {
		if mid, err := strconv.ParseFloat(raw, 64); err == nil && mid > 0 {
			out[id] = mid
		}
	}
	return out, nil
}
