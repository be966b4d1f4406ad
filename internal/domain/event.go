package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventKind discriminates the records the hedger appends to its log.
type EventKind string

const (
	KindRoundStart EventKind = "round_start"
	KindBuy        EventKind = "buy"
	KindMerge      EventKind = "merge"
	KindRoundEnd   EventKind = "round_end"
	KindError      EventKind = "error"
)

// Mode tags where a record came from: the real bot or the simulator.
type Mode string

const (
	ModeProduction Mode = "production"
	ModeSimulation Mode = "simulation"
	ModeAll        Mode = "all" // query filter only, never stored
)

// ParseMode validates a mode filter coming from the API or CLI.
// Empty input means "all".
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAll:
		return ModeAll, nil
	case ModeProduction:
		return ModeProduction, nil
	case ModeSimulation:
		return ModeSimulation, nil
	}
	return "", fmt.Errorf("domain.ParseMode: unknown mode %q", s)
}

// Side is the binary outcome a purchase backs. Canonical values are
// YES and NO; the hedger logs UP/DOWN for the hourly up-or-down
// markets, so parsing accepts both vocabularies.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// ParseSide normalizes wire spellings (YES/UP/yes/Up → YES, NO/DOWN/DN → NO).
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "YES", "UP", "Y":
		return SideYes, nil
	case "NO", "DOWN", "DN", "N":
		return SideNo, nil
	}
	return "", fmt.Errorf("domain.ParseSide: unknown side %q", s)
}

// UnmarshalJSON accepts the UP/DOWN aliases the bot writes.
func (s *Side) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	side, err := ParseSide(raw)
	if err != nil {
		return err
	}
	*s = side
	return nil
}

// RoundStartPayload opens a round. Strategy is a free-form note the
// bot writes about its plan for the hour (target qty, max price...).
type RoundStartPayload struct {
	Market   string `json:"market"`
	Strategy string `json:"strategy,omitempty"`
}

// BuyPayload records one limit-order fill. The up_/dn_ fields are the
// bot's running position after this fill, copied through untouched.
type BuyPayload struct {
	Market    string   `json:"market"`
	Side      Side     `json:"side"`
	Price     float64  `json:"price"`
	Size      float64  `json:"size"`
	Reason    string   `json:"reason,omitempty"`
	PairCost  *float64 `json:"pair_cost,omitempty"`
	CostAfter float64  `json:"cost_after"`
	UpQty     float64  `json:"up_qty"`
	UpAvg     float64  `json:"up_avg"`
	DnQty     float64  `json:"dn_qty"`
	DnAvg     float64  `json:"dn_avg"`
}

// MergePayload records one CTF mergePositions call: Pairs YES+NO
// share pairs redeemed for $1 each. TxHash is null for simulated
// merges, which never touch the chain.
type MergePayload struct {
	Market     string  `json:"market"`
	Pairs      float64 `json:"pairs"`
	PairCost   float64 `json:"pair_cost"`
	Profit     float64 `json:"profit"`
	TxHash     *string `json:"tx_hash,omitempty"`
	UpQtyAfter float64 `json:"up_qty_after"`
	DnQtyAfter float64 `json:"dn_qty_after"`
	CostAfter  float64 `json:"cost_after"`
}

// RoundEndPayload is the bot's own settlement accounting for the
// round. Figures are reported, not derived here.
type RoundEndPayload struct {
	Market    string  `json:"market"`
	HedgedQty float64 `json:"hedged_qty"`
	UpQty     float64 `json:"up_qty"`
	UpAvg     float64 `json:"up_avg"`
	DnQty     float64 `json:"dn_qty"`
	DnAvg     float64 `json:"dn_avg"`
	PairCost  float64 `json:"pair_cost"`
	TotalCost float64 `json:"total_cost"`
	PnL       float64 `json:"pnl"`
	Buys      int     `json:"buys"`
	Merges    int     `json:"merges"`
	// profit_locked | partial | unhedged | empty | merged_out, or
	// whatever future tag the bot invents, passed through verbatim.
	Outcome string `json:"outcome"`
}

// ErrorPayload is a problem the bot hit mid-round. Context is a
// free-form JSON object (order ids, balances, HTTP codes...).
type ErrorPayload struct {
	Market  string         `json:"market"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

// Event is one record of the hedger's append-only log. Exactly one
// payload pointer is non-nil for the five known kinds; unknown kinds
// and payloads that fail to decode keep only Raw, so they still flow
// through storage and streaming untouched.
type Event struct {
	ID   string
	TS   time.Time
	Mode Mode
	Kind EventKind

	RoundStart *RoundStartPayload
	Buy        *BuyPayload
	Merge      *MergePayload
	RoundEnd   *RoundEndPayload
	Error      *ErrorPayload

	// Raw holds the payload bytes as received, for verbatim re-emit.
	Raw json.RawMessage
}

type eventEnvelope struct {
	ID      string          `json:"id"`
	TS      time.Time       `json:"ts"`
	Mode    Mode            `json:"mode"`
	Kind    EventKind       `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// UnmarshalJSON decodes the envelope strictly and the payload
// leniently: a payload that does not match its kind's shape leaves
// the typed pointer nil instead of failing the whole record.
func (e *Event) UnmarshalJSON(data []byte) error {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("domain.Event: decode envelope: %w", err)
	}
	e.ID = env.ID
	e.TS = env.TS
	e.Mode = env.Mode
	e.Kind = env.Kind
	e.Raw = env.Payload
	e.decodePayload()
	return nil
}

// decodePayload fills the typed pointer for e.Kind from e.Raw.
// Decode failures are swallowed: the event stays raw-only.
func (e *Event) decodePayload() {
	if len(e.Raw) == 0 {
		return
	}
	switch e.Kind {
	case KindRoundStart:
		var p RoundStartPayload
		if json.Unmarshal(e.Raw, &p) == nil {
			e.RoundStart = &p
		}
	case KindBuy:
		var p BuyPayload
		if json.Unmarshal(e.Raw, &p) == nil {
			e.Buy = &p
		}
	case KindMerge:
		var p MergePayload
		if json.Unmarshal(e.Raw, &p) == nil {
			e.Merge = &p
		}
	case KindRoundEnd:
		var p RoundEndPayload
		if json.Unmarshal(e.Raw, &p) == nil {
			e.RoundEnd = &p
		}
	case KindError:
		var p ErrorPayload
		if json.Unmarshal(e.Raw, &p) == nil {
			e.Error = &p
		}
	}
}

// PayloadJSON returns the payload bytes to persist or re-emit. Raw
// wins over the typed payload so records round-trip byte-identical
// through the store.
func (e *Event) PayloadJSON() (json.RawMessage, error) {
	if len(e.Raw) > 0 {
		return e.Raw, nil
	}
	var v any
	switch {
	case e.RoundStart != nil:
		v = e.RoundStart
	case e.Buy != nil:
		v = e.Buy
	case e.Merge != nil:
		v = e.Merge
	case e.RoundEnd != nil:
		v = e.RoundEnd
	case e.Error != nil:
		v = e.Error
	default:
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("domain.Event: encode payload: %w", err)
	}
	return b, nil
}

// MarshalJSON re-emits the envelope with the verbatim payload.
func (e Event) MarshalJSON() ([]byte, error) {
	payload, err := e.PayloadJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(eventEnvelope{
		ID:      e.ID,
		TS:      e.TS,
		Mode:    e.Mode,
		Kind:    e.Kind,
		Payload: payload,
	})
}

// Market returns the round identifier the event references, probing
// the raw payload for unknown kinds so the store can index them too.
func (e *Event) Market() string {
	switch {
	case e.RoundStart != nil:
		return e.RoundStart.Market
	case e.Buy != nil:
		return e.Buy.Market
	case e.Merge != nil:
		return e.Merge.Market
	case e.RoundEnd != nil:
		return e.RoundEnd.Market
	case e.Error != nil:
		return e.Error.Market
	}
	if len(e.Raw) > 0 {
		var probe struct {
			Market string `json:"market"`
		}
		if json.Unmarshal(e.Raw, &probe) == nil {
			return probe.Market
		}
	}
	return ""
}

// NormalizePayload re-derives the typed payload after Raw was set by
// hand (storage scan path).
func (e *Event) NormalizePayload() {
	e.RoundStart, e.Buy, e.Merge, e.RoundEnd, e.Error = nil, nil, nil, nil, nil
	e.decodePayload()
}
