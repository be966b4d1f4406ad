package domain

import "time"

// AnnotatedBuy is a purchase with its consumption state attached.
// Price/size and the running-position fields are verbatim copies of
// the source payload; only ConsumedSize, Merged and MergeGroups are
// computed here. Invariant: 0 <= ConsumedSize <= Size, and Merged
// implies Size-ConsumedSize is within the queue epsilon of zero.
type AnnotatedBuy struct {
	ID        string    `json:"id"`
	TS        time.Time `json:"ts"`
	Mode      Mode      `json:"mode"`
	Side      Side      `json:"side"`
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
	Reason    string    `json:"reason,omitempty"`
	PairCost  *float64  `json:"pair_cost,omitempty"`
	CostAfter float64   `json:"cost_after"`
	UpQty     float64   `json:"up_qty"`
	UpAvg     float64   `json:"up_avg"`
	DnQty     float64   `json:"dn_qty"`
	DnAvg     float64   `json:"dn_avg"`

	ConsumedSize float64 `json:"consumed_size"`
	Merged       bool    `json:"merged"`
	// MergeGroups lists, in order and without repeats, the merge
	// groups that drew from this purchase.
	MergeGroups []int `json:"merge_groups,omitempty"`
}

// Remaining is the quantity no merge has consumed yet.
func (b *AnnotatedBuy) Remaining() float64 {
	return b.Size - b.ConsumedSize
}

// AnnotatedMerge is a merge operation with its attribution attached.
// Pairs/PairCost/Profit come verbatim from the bot; ConsumedBuyIDs
// is computed by draining the two side queues.
type AnnotatedMerge struct {
	ID         string    `json:"id"`
	TS         time.Time `json:"ts"`
	Mode       Mode      `json:"mode"`
	Group      int       `json:"group"`
	Pairs      float64   `json:"pairs"`
	PairCost   float64   `json:"pair_cost"`
	Profit     float64   `json:"profit"`
	TxHash     *string   `json:"tx_hash,omitempty"`
	UpQtyAfter float64   `json:"up_qty_after"`
	DnQtyAfter float64   `json:"dn_qty_after"`
	CostAfter  float64   `json:"cost_after"`

	ConsumedBuyIDs []string `json:"consumed_buy_ids"`
}

// Settlement is the round_end snapshot: the bot's own accounting of
// how the round closed, reported as-is.
type Settlement struct {
	EndedAt   time.Time `json:"ended_at"`
	HedgedQty float64   `json:"hedged_qty"`
	UpQty     float64   `json:"up_qty"`
	UpAvg     float64   `json:"up_avg"`
	DnQty     float64   `json:"dn_qty"`
	DnAvg     float64   `json:"dn_avg"`
	PairCost  float64   `json:"pair_cost"`
	TotalCost float64   `json:"total_cost"`
	PnL       float64   `json:"pnl"`
	Buys      int       `json:"buys"`
	Merges    int       `json:"merges"`
	Outcome   string    `json:"outcome"`
}

// RoundError surfaces an error-kind record for display.
type RoundError struct {
	TS      time.Time      `json:"ts"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

// RoundSummary is the fully annotated view of one round.
type RoundSummary struct {
	Market     string            `json:"market"`
	Mode       Mode              `json:"mode"`
	StartedAt  *time.Time        `json:"started_at,omitempty"`
	Strategy   string            `json:"strategy,omitempty"`
	Settlement *Settlement       `json:"settlement,omitempty"`
	Buys       []*AnnotatedBuy   `json:"buys"`
	Merges     []*AnnotatedMerge `json:"merges"`
	Errors     []RoundError      `json:"errors,omitempty"`

	BuyCount    int     `json:"buy_count"`
	MergeCount  int     `json:"merge_count"`
	TotalProfit float64 `json:"total_profit"`
	UnmergedYes float64 `json:"unmerged_yes"`
	UnmergedNo  float64 `json:"unmerged_no"`
}

// RoundInfo is one row of the round listing.
type RoundInfo struct {
	Market    string    `json:"market"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Records   int       `json:"records"`
	Modes     []Mode    `json:"modes"`
}

// RoundGroup collects the rounds of one recurring series (same market
// family, hourly date tokens stripped).
type RoundGroup struct {
	Series string      `json:"series"`
	Rounds []RoundInfo `json:"rounds"`
}
