package polymarket

import "encoding/json"

// DTOs raw de la API de Polymarket. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// --- Gamma API ---

// gammaMarketsResponse es la respuesta de GET /markets de Gamma.
type gammaMarketsResponse []gammaMarket

// gammaMarket contiene la metadata de un mercado. Gamma devuelve los
// arrays de outcomes/tokens como strings JSON doble-codificados y
// algunos numéricos como strings; de ahí json.Number y el parseo
// manual en mapping.go.
type gammaMarket struct {
	ConditionID  string      `json:"conditionId"`
	Question     string      `json:"question"`
	Slug         string      `json:"slug"`
	EndDateISO   string      `json:"endDateIso"`
	Outcomes     string      `json:"outcomes"`     // '["Up","Down"]'
	ClobTokenIDs string      `json:"clobTokenIds"` // '["1234...","5678..."]'
	Volume24h    json.Number `json:"volume24hr"`
	Active       bool        `json:"active"`
	Closed       bool        `json:"closed"`
}

// --- CLOB API ---

// midpointRequest es un item del body de POST /midpoints.
type midpointRequest struct {
	TokenID string `json:"token_id"`
}

// midpointsResponse mapea token_id → mid como string decimal.
type midpointsResponse map[string]string

// --- CLOB websocket (canal market) ---

// wsSubscribe es el mensaje de suscripción al canal público de mercado.
type wsSubscribe struct {
	AssetIDs []string `json:"assets_ids"`
	Type     string   `json:"type"`
}

// wsMarketEvent es un evento del canal market. Solo nos interesan los
// snapshots de book (bids/asks) para derivar el mid; el resto de
// event types se ignora.
type wsMarketEvent struct {
	EventType string         `json:"event_type"`
	AssetID   string         `json:"asset_id"`
	Bids      []bookEntryRaw `json:"bids"`
	Asks      []bookEntryRaw `json:"asks"`
}

// bookEntryRaw es un nivel de precio raw de la API (strings para
// mayor precisión).
type bookEntryRaw struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}
