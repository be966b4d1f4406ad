package domain

import (
	"math"
	"slices"
)

// DefaultQtyEpsilon is the quantity tolerance for the merge queues.
// Share sizes arrive as floats that already accumulated rounding
// upstream, so "entry exhausted" and "merge satisfied" are judged
// against this bound instead of exact zero: a queue slot whose
// remaining drops below it is popped as fully consumed, and a drain
// stops once its outstanding need drops below it. 1e-3 of a share is
// well under anything the bot ever buys or merges.
const DefaultQtyEpsilon = 1e-3

// queueRef is one FIFO slot: the id of a purchase in the authoritative
// table plus the still-unconsumed quantity. The purchase record itself
// is only ever mutated through the table lookup, so the published
// AnnotatedBuy and the queue never disagree.
type queueRef struct {
	id        string
	remaining float64
}

// Reconstruct replays one round's event slice into a RoundSummary
// using DefaultQtyEpsilon.
//
// The input must be time-ascending and belong to a single round; the
// function neither re-sorts nor partitions. It is pure, deterministic
// and total: malformed payloads and unknown kinds are skipped, never
// rejected, so a partial view always comes back.
func Reconstruct(events []Event) *RoundSummary {
	return ReconstructWithEpsilon(events, DefaultQtyEpsilon)
}

// ReconstructWithEpsilon is Reconstruct with an explicit tolerance,
// for callers that know their upstream's rounding behavior.
func ReconstructWithEpsilon(events []Event, eps float64) *RoundSummary {
	r := reconstructor{
		eps:   eps,
		table: make(map[string]*AnnotatedBuy),
		sum: &RoundSummary{
			Buys:   []*AnnotatedBuy{},
			Merges: []*AnnotatedMerge{},
		},
	}
	for i := range events {
		r.apply(&events[i])
	}
	r.finalize()
	return r.sum
}

// reconstructor is the single-pass state: the summary under
// construction, the authoritative purchase table keyed by event id,
// and the two side queues holding (id, remaining) slots.
type reconstructor struct {
	eps      float64
	sum      *RoundSummary
	table    map[string]*AnnotatedBuy
	yesQueue []queueRef
	noQueue  []queueRef
	groupSeq int
}

func (r *reconstructor) apply(ev *Event) {
	// Market and mode come from the first event that carries them.
	if r.sum.Market == "" {
		r.sum.Market = ev.Market()
	}
	if r.sum.Mode == "" {
		r.sum.Mode = ev.Mode
	}

	switch ev.Kind {
	case KindRoundStart:
		// First occurrence wins; later round_start records are noise.
		if r.sum.StartedAt == nil {
			ts := ev.TS
			r.sum.StartedAt = &ts
			if ev.RoundStart != nil {
				r.sum.Strategy = ev.RoundStart.Strategy
			}
		}
	case KindBuy:
		if ev.Buy != nil {
			r.applyBuy(ev)
		}
	case KindMerge:
		if ev.Merge != nil {
			r.applyMerge(ev)
		}
	case KindRoundEnd:
		// A repeated round_end overwrites: the bot re-emits after
		// reconciling, and the latest accounting is the one to show.
		if p := ev.RoundEnd; p != nil {
			r.sum.Settlement = &Settlement{
				EndedAt:   ev.TS,
				HedgedQty: p.HedgedQty,
				UpQty:     p.UpQty,
				UpAvg:     p.UpAvg,
				DnQty:     p.DnQty,
				DnAvg:     p.DnAvg,
				PairCost:  p.PairCost,
				TotalCost: p.TotalCost,
				PnL:       p.PnL,
				Buys:      p.Buys,
				Merges:    p.Merges,
				Outcome:   p.Outcome,
			}
		}
	case KindError:
		if p := ev.Error; p != nil {
			r.sum.Errors = append(r.sum.Errors, RoundError{
				TS:      ev.TS,
				Message: p.Message,
				Context: p.Context,
			})
		}
	}
	// Any other kind flows through the store but means nothing here.
}

// applyBuy publishes the annotated purchase and enqueues its full
// size on the matching side queue.
func (r *reconstructor) applyBuy(ev *Event) {
	p := ev.Buy
	buy := &AnnotatedBuy{
		ID:        ev.ID,
		TS:        ev.TS,
		Mode:      ev.Mode,
		Side:      p.Side,
		Price:     p.Price,
		Size:      p.Size,
		Reason:    p.Reason,
		PairCost:  p.PairCost,
		CostAfter: p.CostAfter,
		UpQty:     p.UpQty,
		UpAvg:     p.UpAvg,
		DnQty:     p.DnQty,
		DnAvg:     p.DnAvg,
	}
	r.sum.Buys = append(r.sum.Buys, buy)
	r.table[buy.ID] = buy

	ref := queueRef{id: buy.ID, remaining: p.Size}
	if p.Side == SideYes {
		r.yesQueue = append(r.yesQueue, ref)
	} else {
		r.noQueue = append(r.noQueue, ref)
	}
}

// applyMerge assigns the next group id and drains both queues against
// the same requested pair count: a merge cancels one YES share per NO
// share, so each side owes the full Pairs quantity independently.
func (r *reconstructor) applyMerge(ev *Event) {
	p := ev.Merge
	r.groupSeq++
	m := &AnnotatedMerge{
		ID:             ev.ID,
		TS:             ev.TS,
		Mode:           ev.Mode,
		Group:          r.groupSeq,
		Pairs:          p.Pairs,
		PairCost:       p.PairCost,
		Profit:         p.Profit,
		TxHash:         p.TxHash,
		UpQtyAfter:     p.UpQtyAfter,
		DnQtyAfter:     p.DnQtyAfter,
		CostAfter:      p.CostAfter,
		ConsumedBuyIDs: []string{},
	}
	r.drain(&r.yesQueue, p.Pairs, m)
	r.drain(&r.noQueue, p.Pairs, m)
	r.sum.Merges = append(r.sum.Merges, m)
}

// drain satisfies up to need units from one queue in strict FIFO
// order, attributing every take to m. Under-supply is not an error:
// the loop just runs out, and the merge keeps its reported figures.
func (r *reconstructor) drain(q *[]queueRef, need float64, m *AnnotatedMerge) {
	for need >= r.eps && len(*q) > 0 {
		front := &(*q)[0]
		take := math.Min(front.remaining, need)

		if buy, ok := r.table[front.id]; ok {
			buy.ConsumedSize += take
			if n := len(buy.MergeGroups); n == 0 || buy.MergeGroups[n-1] != m.Group {
				buy.MergeGroups = append(buy.MergeGroups, m.Group)
			}
		}
		if !slices.Contains(m.ConsumedBuyIDs, front.id) {
			m.ConsumedBuyIDs = append(m.ConsumedBuyIDs, front.id)
		}

		front.remaining -= take
		need -= take
		if front.remaining < r.eps {
			if buy, ok := r.table[front.id]; ok {
				buy.Merged = true
			}
			*q = (*q)[1:]
		}
	}
}

// finalize pins partially drained purchases to merged=false and sums
// the derived totals. The pin is a safety pass: no code path sets
// merged=true for a surviving slot, but the flag must hold even if
// the drain logic ever changes shape.
func (r *reconstructor) finalize() {
	r.sum.UnmergedYes = r.sweep(r.yesQueue)
	r.sum.UnmergedNo = r.sweep(r.noQueue)
	for _, m := range r.sum.Merges {
		r.sum.TotalProfit += m.Profit
	}
	r.sum.BuyCount = len(r.sum.Buys)
	r.sum.MergeCount = len(r.sum.Merges)
}

func (r *reconstructor) sweep(q []queueRef) float64 {
	var left float64
	for _, ref := range q {
		if ref.remaining > r.eps {
			if buy, ok := r.table[ref.id]; ok {
				buy.Merged = false
			}
		}
		left += ref.remaining
	}
	return left
}
