package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMarket = "bitcoin-up-or-down-august-22-3pm-et"

func at(sec int) time.Time {
	return time.Date(2026, 8, 22, 19, 0, sec, 0, time.UTC)
}

func startEvent(sec int) Event {
	return Event{
		ID:         "start-1",
		TS:         at(sec),
		Mode:       ModeProduction,
		Kind:       KindRoundStart,
		RoundStart: &RoundStartPayload{Market: testMarket, Strategy: "hedge 50q max 0.99"},
	}
}

func buyEvent(id string, sec int, side Side, price, size float64) Event {
	return Event{
		ID:   id,
		TS:   at(sec),
		Mode: ModeProduction,
		Kind: KindBuy,
		Buy: &BuyPayload{
			Market: testMarket,
			Side:   side,
			Price:  price,
			Size:   size,
		},
	}
}

func mergeEvent(id string, sec int, pairs, profit float64) Event {
	return Event{
		ID:   id,
		TS:   at(sec),
		Mode: ModeProduction,
		Kind: KindMerge,
		Merge: &MergePayload{
			Market: testMarket,
			Pairs:  pairs,
			Profit: profit,
		},
	}
}

func endEvent(sec int, pnl float64, outcome string) Event {
	return Event{
		ID:       "end-1",
		TS:       at(sec),
		Mode:     ModeProduction,
		Kind:     KindRoundEnd,
		RoundEnd: &RoundEndPayload{Market: testMarket, PnL: pnl, Outcome: outcome},
	}
}

// --- Scenario: full match ---

func TestReconstruct_FullMatch(t *testing.T) {
	events := []Event{
		startEvent(0),
		buyEvent("b-yes", 1, SideYes, 0.50, 10),
		buyEvent("b-no", 2, SideNo, 0.50, 10),
		mergeEvent("m-1", 3, 10, 1.25),
		endEvent(4, 1.25, "profit_locked"),
	}
	sum := Reconstruct(events)

	require.Len(t, sum.Merges, 1)
	assert.ElementsMatch(t, []string{"b-yes", "b-no"}, sum.Merges[0].ConsumedBuyIDs)
	assert.Equal(t, 1, sum.Merges[0].Group)

	require.Len(t, sum.Buys, 2)
	for _, b := range sum.Buys {
		assert.Equal(t, 10.0, b.ConsumedSize, b.ID)
		assert.True(t, b.Merged, b.ID)
		assert.Equal(t, []int{1}, b.MergeGroups, b.ID)
	}

	assert.Equal(t, 0.0, sum.UnmergedYes)
	assert.Equal(t, 0.0, sum.UnmergedNo)
	assert.InDelta(t, 1.25, sum.TotalProfit, 1e-9)
	assert.Equal(t, 2, sum.BuyCount)
	assert.Equal(t, 1, sum.MergeCount)

	require.NotNil(t, sum.StartedAt)
	assert.Equal(t, at(0), *sum.StartedAt)
	require.NotNil(t, sum.Settlement)
	assert.Equal(t, "profit_locked", sum.Settlement.Outcome)
	assert.Equal(t, testMarket, sum.Market)
	assert.Equal(t, ModeProduction, sum.Mode)
}

// --- Scenario: one merge split across two purchases ---

func TestReconstruct_SplitConsumption(t *testing.T) {
	events := []Event{
		buyEvent("y-1", 1, SideYes, 0.48, 5),
		buyEvent("y-2", 2, SideYes, 0.49, 5),
		mergeEvent("m-1", 3, 7, 0.35),
	}
	sum := Reconstruct(events)

	require.Len(t, sum.Buys, 2)
	first, second := sum.Buys[0], sum.Buys[1]

	// FIFO: the older purchase drains completely before the newer
	// one gives up anything.
	assert.Equal(t, 5.0, first.ConsumedSize)
	assert.True(t, first.Merged)
	assert.Equal(t, 2.0, second.ConsumedSize)
	assert.InDelta(t, 3.0, second.Remaining(), 1e-9)
	assert.False(t, second.Merged)
	assert.Equal(t, []int{1}, second.MergeGroups)

	require.Len(t, sum.Merges, 1)
	assert.Equal(t, []string{"y-1", "y-2"}, sum.Merges[0].ConsumedBuyIDs)
	assert.InDelta(t, 3.0, sum.UnmergedYes, 1e-9)
}

// --- Scenario: merge asks for more than the queues hold ---

func TestReconstruct_UnderSupply(t *testing.T) {
	events := []Event{
		buyEvent("y-1", 1, SideYes, 0.51, 2),
		mergeEvent("m-1", 2, 5, 0.10),
	}
	sum := Reconstruct(events)

	require.Len(t, sum.Buys, 1)
	assert.Equal(t, 2.0, sum.Buys[0].ConsumedSize)
	assert.True(t, sum.Buys[0].Merged)

	require.Len(t, sum.Merges, 1)
	m := sum.Merges[0]
	assert.Equal(t, []string{"y-1"}, m.ConsumedBuyIDs)
	// Reported economics stay verbatim even though supply fell short.
	assert.Equal(t, 5.0, m.Pairs)
	assert.InDelta(t, 0.10, m.Profit, 1e-9)

	assert.Empty(t, sum.Errors)
	assert.Equal(t, 0.0, sum.UnmergedYes)
	assert.Equal(t, 0.0, sum.UnmergedNo)
}

// --- Scenario: merge against empty queues ---

func TestReconstruct_ZeroSupply(t *testing.T) {
	events := []Event{
		mergeEvent("m-1", 1, 3, 0.15),
		mergeEvent("m-2", 2, 4, 0.20),
	}
	sum := Reconstruct(events)

	require.Len(t, sum.Merges, 2)
	assert.Equal(t, 1, sum.Merges[0].Group)
	assert.Equal(t, 2, sum.Merges[1].Group)
	assert.NotNil(t, sum.Merges[0].ConsumedBuyIDs)
	assert.Empty(t, sum.Merges[0].ConsumedBuyIDs)
	assert.Empty(t, sum.Merges[1].ConsumedBuyIDs)
	assert.InDelta(t, 0.35, sum.TotalProfit, 1e-9)
}

// --- Property: conservation per side ---

func TestReconstruct_Conservation(t *testing.T) {
	events := []Event{
		buyEvent("y-1", 1, SideYes, 0.50, 10),
		buyEvent("n-1", 2, SideNo, 0.47, 8),
		mergeEvent("m-1", 3, 7, 0.21),
		buyEvent("y-2", 4, SideYes, 0.52, 4.5),
		buyEvent("n-2", 5, SideNo, 0.46, 6),
		mergeEvent("m-2", 6, 5.5, 0.17),
		buyEvent("y-3", 7, SideYes, 0.55, 3.2),
		mergeEvent("m-3", 8, 2, 0.06),
	}
	sum := Reconstruct(events)

	var yesBought, yesConsumed, noBought, noConsumed float64
	for _, b := range sum.Buys {
		if b.Side == SideYes {
			yesBought += b.Size
			yesConsumed += b.ConsumedSize
		} else {
			noBought += b.Size
			noConsumed += b.ConsumedSize
		}
	}
	assert.InDelta(t, yesBought, yesConsumed+sum.UnmergedYes, 1e-9)
	assert.InDelta(t, noBought, noConsumed+sum.UnmergedNo, 1e-9)

	// NO ran dry on the last merge; YES still has y-3 minus 2 left.
	assert.InDelta(t, 3.2, sum.UnmergedYes, 1e-9)
	assert.InDelta(t, 0.0, sum.UnmergedNo, 1e-9)
}

// --- Property: group ids count 1, 2, 3... no matter what ---

func TestReconstruct_GroupIDMonotonic(t *testing.T) {
	events := []Event{
		mergeEvent("m-1", 1, 5, 0),
		buyEvent("y-1", 2, SideYes, 0.50, 1),
		mergeEvent("m-2", 3, 1, 0.01),
		mergeEvent("m-3", 4, 9, 0),
		mergeEvent("m-4", 5, 0, 0),
	}
	sum := Reconstruct(events)

	require.Len(t, sum.Merges, 4)
	for i, m := range sum.Merges {
		assert.Equal(t, i+1, m.Group)
	}
}

// --- Property: same input, bit-identical output ---

func TestReconstruct_Deterministic(t *testing.T) {
	events := []Event{
		startEvent(0),
		buyEvent("y-1", 1, SideYes, 0.50, 10),
		buyEvent("n-1", 2, SideNo, 0.49, 7.5),
		mergeEvent("m-1", 3, 6, 0.18),
		buyEvent("n-2", 4, SideNo, 0.48, 2.5),
		mergeEvent("m-2", 5, 4, 0.09),
		endEvent(6, 0.27, "partial"),
	}
	assert.Equal(t, Reconstruct(events), Reconstruct(events))
}

// --- Purchase split across several merges ---

func TestReconstruct_BuySpansMerges(t *testing.T) {
	events := []Event{
		buyEvent("y-big", 1, SideYes, 0.50, 20),
		buyEvent("n-1", 2, SideNo, 0.49, 6),
		mergeEvent("m-1", 3, 6, 0.12),
		buyEvent("n-2", 4, SideNo, 0.48, 6),
		mergeEvent("m-2", 5, 6, 0.14),
	}
	sum := Reconstruct(events)

	big := sum.Buys[0]
	assert.Equal(t, 12.0, big.ConsumedSize)
	assert.False(t, big.Merged)
	// One entry per group, in draw order, no repeats.
	assert.Equal(t, []int{1, 2}, big.MergeGroups)
	assert.InDelta(t, 8.0, sum.UnmergedYes, 1e-9)

	assert.Equal(t, []string{"y-big", "n-1"}, sum.Merges[0].ConsumedBuyIDs)
	assert.Equal(t, []string{"y-big", "n-2"}, sum.Merges[1].ConsumedBuyIDs)
}

// --- Dust below the epsilon is absorbed, not looped on ---

func TestReconstruct_EpsilonAbsorbsDust(t *testing.T) {
	events := []Event{
		buyEvent("y-1", 1, SideYes, 0.50, 10),
		buyEvent("n-1", 2, SideNo, 0.50, 10),
		mergeEvent("m-1", 3, 9.9995, 0.50),
	}
	sum := Reconstruct(events)

	// remaining 0.0005 < 1e-3: both purchases count as fully merged
	// and nothing is reported unmerged.
	for _, b := range sum.Buys {
		assert.True(t, b.Merged, b.ID)
		assert.InDelta(t, 9.9995, b.ConsumedSize, 1e-9)
	}
	assert.Equal(t, 0.0, sum.UnmergedYes)
	assert.Equal(t, 0.0, sum.UnmergedNo)
}

func TestReconstructWithEpsilon_CustomTolerance(t *testing.T) {
	events := []Event{
		buyEvent("y-1", 1, SideYes, 0.50, 10),
		mergeEvent("m-1", 2, 9.6, 0.30),
		mergeEvent("m-2", 3, 0.3, 0.01),
	}
	sum := ReconstructWithEpsilon(events, 0.5)

	// 0.4 left after m-1 is under the coarse tolerance: popped and
	// merged. m-2 asks for 0.3 < 0.5, so it never drains at all but
	// still takes group id 2.
	assert.True(t, sum.Buys[0].Merged)
	assert.Equal(t, []int{1}, sum.Buys[0].MergeGroups)
	assert.Empty(t, sum.Merges[1].ConsumedBuyIDs)
	assert.Equal(t, 2, sum.Merges[1].Group)
	assert.Equal(t, 0.0, sum.UnmergedYes)
}

// --- Round metadata ---

func TestReconstruct_RoundStartFirstWins(t *testing.T) {
	second := startEvent(5)
	second.ID = "start-2"
	events := []Event{startEvent(1), second}
	sum := Reconstruct(events)

	require.NotNil(t, sum.StartedAt)
	assert.Equal(t, at(1), *sum.StartedAt)
}

func TestReconstruct_RoundEndOverwrites(t *testing.T) {
	events := []Event{
		endEvent(1, 0.10, "partial"),
		endEvent(2, 0.45, "profit_locked"),
	}
	sum := Reconstruct(events)

	require.NotNil(t, sum.Settlement)
	assert.InDelta(t, 0.45, sum.Settlement.PnL, 1e-9)
	assert.Equal(t, "profit_locked", sum.Settlement.Outcome)
	assert.Equal(t, at(2), sum.Settlement.EndedAt)
}

func TestReconstruct_ErrorsSurfaced(t *testing.T) {
	events := []Event{
		buyEvent("y-1", 1, SideYes, 0.50, 5),
		{
			ID:   "err-1",
			TS:   at(2),
			Mode: ModeProduction,
			Kind: KindError,
			Error: &ErrorPayload{
				Market:  testMarket,
				Message: "order rejected: insufficient balance",
				Context: map[string]any{"order_size": 25.0},
			},
		},
		mergeEvent("m-1", 3, 2, 0.04),
	}
	sum := Reconstruct(events)

	require.Len(t, sum.Errors, 1)
	assert.Equal(t, "order rejected: insufficient balance", sum.Errors[0].Message)
	// Errors never touch the queues.
	assert.Equal(t, 2.0, sum.Buys[0].ConsumedSize)
}

func TestReconstruct_IgnoresUnknownAndMalformed(t *testing.T) {
	events := []Event{
		buyEvent("y-1", 1, SideYes, 0.50, 5),
		{ID: "tick-1", TS: at(2), Mode: ModeProduction, Kind: "price_tick",
			Raw: []byte(`{"market":"x","mid":0.51}`)},
		{ID: "bad-buy", TS: at(3), Mode: ModeProduction, Kind: KindBuy,
			Raw: []byte(`{"side":13}`)},
		mergeEvent("m-1", 4, 5, 0.10),
	}
	sum := Reconstruct(events)

	// Only the well-formed buy exists; the rest changed nothing.
	require.Len(t, sum.Buys, 1)
	require.Len(t, sum.Merges, 1)
	assert.Equal(t, []string{"y-1"}, sum.Merges[0].ConsumedBuyIDs)
}

func TestReconstruct_EmptyInput(t *testing.T) {
	sum := Reconstruct(nil)

	assert.NotNil(t, sum.Buys)
	assert.NotNil(t, sum.Merges)
	assert.Equal(t, 0, sum.BuyCount)
	assert.Equal(t, 0, sum.MergeCount)
	assert.Nil(t, sum.StartedAt)
	assert.Nil(t, sum.Settlement)
}
