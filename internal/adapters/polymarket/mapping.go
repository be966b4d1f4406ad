package polymarket

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/alejandrodnm/polywatch/internal/domain"
)

// mapGammaMarket convierte un gammaMarket DTO a domain.Market.
// Campos que no parsean se quedan en cero: el resolver es informativo
// y un mercado a medias sigue siendo útil para el dashboard.
func mapGammaMarket(gm gammaMarket) domain.Market {
	m := domain.Market{
		Slug:        gm.Slug,
		ConditionID: gm.ConditionID,
		Question:    gm.Question,
		Active:      gm.Active,
		Closed:      gm.Closed,
	}

	if v, err := gm.Volume24h.Float64(); err == nil {
		m.Volume24h = v
	}

	if gm.EndDateISO != "" {
		// Polymarket usa varios formatos; intentamos los más comunes
		for _, layout := range []string{
			time.RFC3339,
			"2006-01-02T15:04:05.000Z",
			"2006-01-02T15:04:05Z",
			"2006-01-02",
		} {
			if t, err := time.Parse(layout, gm.EndDateISO); err == nil {
				m.EndDate = t.UTC()
				break
			}
		}
	}

	// outcomes y clobTokenIds vienen como JSON dentro de un string y
	// en el mismo orden: outcome[i] ↔ token[i].
	var outcomes, tokenIDs []string
	json.Unmarshal([]byte(gm.Outcomes), &outcomes)
	json.Unmarshal([]byte(gm.ClobTokenIDs), &tokenIDs)
	for i := 0; i < len(tokenIDs) && i < 2; i++ {
		m.Tokens[i].TokenID = tokenIDs[i]
		if i < len(outcomes) {
			m.Tokens[i].Outcome = outcomes[i]
		}
	}

	return m
}

// midFromBook devuelve el mid entre mejor bid y mejor ask, o 0 si
// falta alguno de los dos lados.
func midFromBook(bids, asks []bookEntryRaw) float64 {
	bestBid := bestPrice(bids, false)
	bestAsk := bestPrice(asks, true)
	if bestBid <= 0 || bestAsk <= 0 {
		return 0
	}
	return (bestBid + bestAsk) / 2
}

// bestPrice busca el mejor precio de un lado del book.
// lowest=true → menor precio (asks), lowest=false → mayor (bids).
func bestPrice(entries []bookEntryRaw, lowest bool) float64 {
	var best float64
	for _, e := range entries {
		p, err := strconv.ParseFloat(e.Price, 64)
		if err != nil || p <= 0 {
			continue
		}
		if best == 0 || (lowest && p < best) || (!lowest && p > best) {
			best = p
		}
	}
	return best
}
