package domain

import "time"

// Market representa un mercado horario up-or-down de Polymarket,
// resuelto desde Gamma a partir del slug de la ronda.
type Market struct {
	Slug        string
	ConditionID string
	Question    string    // enriquecido desde Gamma
	EndDate     time.Time // cierre de la hora, enriquecido desde Gamma
	Volume24h   float64   // volumen últimas 24h en USDC
	Active      bool
	Closed      bool
	Tokens      [2]Token
}

// Token es uno de los dos lados del mercado (Up/Down).
type Token struct {
	TokenID string
	Outcome string // "Up" | "Down"
}

// UpToken devuelve el token del lado Up.
func (m Market) UpToken() Token {
	for _, t := range m.Tokens {
		if t.Outcome == "Up" || t.Outcome == "Yes" {
			return t
		}
	}
	return m.Tokens[0]
}

// DownToken devuelve el token del lado Down.
func (m Market) DownToken() Token {
	for _, t := range m.Tokens {
		if t.Outcome == "Down" || t.Outcome == "No" {
			return t
		}
	}
	return m.Tokens[1]
}

// HoursToResolution devuelve las horas hasta el cierre del mercado.
// Devuelve 0 si EndDate no está definido o ya pasó.
func (m Market) HoursToResolution() float64 {
	if m.EndDate.IsZero() {
		return 0
	}
	h := time.Until(m.EndDate).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// PriceUpdate es un mid actualizado para un token, emitido por el
// stream de precios del CLOB.
type PriceUpdate struct {
	TokenID string    `json:"token_id"`
	Market  string    `json:"market,omitempty"`
	Side    Side      `json:"side,omitempty"`
	Mid     float64   `json:"mid"`
	TS      time.Time `json:"ts"`
}
