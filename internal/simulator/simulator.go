package simulator

// Generates demo rounds in the exact shape the hedger logs, so the
// dashboard can be exercised without a bot attached. The generated
// economics are internally consistent: running positions accumulate
// buy by buy, merges drain matched inventory at the tracked average
// cost, and the closing snapshot accounts for what was left open.

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/alejandrodnm/polywatch/internal/domain"
	"github.com/alejandrodnm/polywatch/internal/ports"
)

const (
	defaultBuysPerSide = 6
	defaultOrderSize   = 10.0
	defaultMergeChunk  = 15.0

	// Entry band for the UP side. DOWN completes the pair under $1,
	// which is the whole point of the hedge.
	upPriceBase   = 0.52
	upPriceJitter = 0.06
	pairEdgeMin   = 0.01
	pairEdgeMax   = 0.04

	errorChance = 0.15
)

// Config tunes one generated round.
type Config struct {
	Market      string  // empty derives an hourly slug from Now
	BuysPerSide int     // buys on each side of the book
	OrderSize   float64 // size per buy, with jitter on top
	MergeChunk  float64 // merge fires when matched inventory reaches it
	Seed        int64   // 0 seeds from the clock
}

// Simulator writes demo rounds straight into the event store.
type Simulator struct {
	store ports.EventStore
	rng   *rand.Rand
	cfg   Config
}

// New applies defaults and builds the generator.
func New(store ports.EventStore, cfg Config) *Simulator {
	if cfg.BuysPerSide <= 0 {
		cfg.BuysPerSide = defaultBuysPerSide
	}
	if cfg.OrderSize <= 0 {
		cfg.OrderSize = defaultOrderSize
	}
	if cfg.MergeChunk <= 0 {
		cfg.MergeChunk = defaultMergeChunk
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return &Simulator{
		store: store,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
		cfg:   cfg,
	}
}

// position tracks the running inventory the same way the bot reports
// it inside every payload.
type position struct {
	upQty, upCost float64
	dnQty, dnCost float64
	merged        float64
	profit        float64
}

func (p *position) upAvg() float64 {
	if p.upQty == 0 {
		return 0
	}
	return p.upCost / p.upQty
}

func (p *position) dnAvg() float64 {
	if p.dnQty == 0 {
		return 0
	}
	return p.dnCost / p.dnQty
}

func (p *position) totalCost() float64 {
	return p.upCost + p.dnCost
}

// Run generates one complete round and appends it to the store.
// Returns the market id of the generated round.
func (s *Simulator) Run(ctx context.Context) (string, error) {
	market := s.cfg.Market
	if market == "" {
		market = hourlySlug(time.Now().UTC())
	}

	ts := time.Now().UTC().Add(-time.Hour)
	next := func() time.Time {
		ts = ts.Add(time.Duration(10+s.rng.Intn(200)) * time.Second)
		return ts
	}

	var events []domain.Event
	events = append(events, domain.Event{
		TS: next(), Mode: domain.ModeSimulation, Kind: domain.KindRoundStart,
		RoundStart: &domain.RoundStartPayload{
			Market:   market,
			Strategy: fmt.Sprintf("demo hedge, ~$%.0f per clip", s.cfg.OrderSize),
		},
	})

	var pos position
	var buys, merges int
	upPrice := upPriceBase + s.rng.Float64()*upPriceJitter

	for i := 0; i < s.cfg.BuysPerSide*2; i++ {
		// Drift the UP price a little each step, DOWN completes the
		// pair under $1.
		upPrice += (s.rng.Float64() - 0.5) * 0.02
		upPrice = clamp(upPrice, 0.15, 0.85)
		edge := pairEdgeMin + s.rng.Float64()*(pairEdgeMax-pairEdgeMin)
		dnPrice := 1 - upPrice - edge

		// Position accumulates the same rounded figures the payloads
		// carry, so the log stays arithmetically coherent.
		size := round2(s.cfg.OrderSize * (0.8 + s.rng.Float64()*0.4))

		side := domain.SideYes
		price := round4(upPrice)
		// Alternate sides, keeping the sim roughly balanced.
		if i%2 == 1 {
			side = domain.SideNo
			price = round4(dnPrice)
		}

		if side == domain.SideYes {
			pos.upQty += size
			pos.upCost += size * price
		} else {
			pos.dnQty += size
			pos.dnCost += size * price
		}

		buys++
		events = append(events, domain.Event{
			TS: next(), Mode: domain.ModeSimulation, Kind: domain.KindBuy,
			Buy: &domain.BuyPayload{
				Market:    market,
				Side:      side,
				Price:     price,
				Size:      size,
				Reason:    buyReason(side, edge),
				CostAfter: round4(pos.totalCost()),
				UpQty:     round2(pos.upQty),
				UpAvg:     round4(pos.upAvg()),
				DnQty:     round2(pos.dnQty),
				DnAvg:     round4(pos.dnAvg()),
			},
		})

		if s.rng.Float64() < errorChance {
			events = append(events, domain.Event{
				TS: next(), Mode: domain.ModeSimulation, Kind: domain.KindError,
				Error: &domain.ErrorPayload{
					Market:  market,
					Message: "order rejected: price moved before fill",
					Context: map[string]any{"side": string(side), "price": round4(price)},
				},
			})
		}

		if matched := min2(pos.upQty, pos.dnQty); matched >= s.cfg.MergeChunk {
			merges++
			events = append(events, s.mergeEvent(market, &pos, matched, next()))
		}
	}

	// Close out whatever still matches before settling.
	if matched := min2(pos.upQty, pos.dnQty); matched > 1 {
		merges++
		events = append(events, s.mergeEvent(market, &pos, matched, next()))
	}

	outcome := "UP"
	winnerQty := pos.upQty
	if s.rng.Float64() < 0.5 {
		outcome = "DOWN"
		winnerQty = pos.dnQty
	}
	// Leftovers: the winning side redeems at $1, the losing side at $0.
	pnl := pos.profit + winnerQty - pos.totalCost()

	events = append(events, domain.Event{
		TS: next(), Mode: domain.ModeSimulation, Kind: domain.KindRoundEnd,
		RoundEnd: &domain.RoundEndPayload{
			Market:    market,
			HedgedQty: round2(pos.merged),
			UpQty:     round2(pos.upQty),
			UpAvg:     round4(pos.upAvg()),
			DnQty:     round2(pos.dnQty),
			DnAvg:     round4(pos.dnAvg()),
			PairCost:  round4(pos.upAvg() + pos.dnAvg()),
			TotalCost: round4(pos.totalCost()),
			PnL:       round4(pnl),
			Buys:      buys,
			Merges:    merges,
			Outcome:   outcome,
		},
	})

	if _, err := s.store.AppendBatch(ctx, events); err != nil {
		return "", fmt.Errorf("simulator.Run: %w", err)
	}

	slog.Info("simulated round written",
		"market", market,
		"records", len(events),
		"merged", fmt.Sprintf("%.2f", pos.merged),
		"profit", fmt.Sprintf("$%.4f", pos.profit),
		"outcome", outcome,
	)
	return market, nil
}

// mergeEvent consumes matched inventory at the tracked average cost
// and reports the merge the way the bot does.
func (s *Simulator) mergeEvent(market string, pos *position, pairs float64, ts time.Time) domain.Event {
	pairCost := pos.upAvg() + pos.dnAvg()
	profit := pairs * (1 - pairCost)

	pos.upCost -= pairs * pos.upAvg()
	pos.dnCost -= pairs * pos.dnAvg()
	pos.upQty -= pairs
	pos.dnQty -= pairs
	pos.merged += pairs
	pos.profit += profit

	// Pairs goes out exact: rounding it above the remaining supply
	// would make the log claim merges it could not have done.
	return domain.Event{
		TS: ts, Mode: domain.ModeSimulation, Kind: domain.KindMerge,
		Merge: &domain.MergePayload{
			Market:     market,
			Pairs:      pairs,
			PairCost:   round4(pairCost),
			Profit:     round4(profit),
			UpQtyAfter: round2(pos.upQty),
			DnQtyAfter: round2(pos.dnQty),
			CostAfter:  round4(pos.totalCost()),
		},
	}
}

// hourlySlug builds the market id the way Polymarket names its hourly
// up-or-down rounds: "bitcoin-up-or-down-august-22-3pm-et".
func hourlySlug(t time.Time) string {
	month := strings.ToLower(t.Format("January"))
	hour := strings.ToLower(t.Format("3PM"))
	return fmt.Sprintf("bitcoin-up-or-down-%s-%d-%s-et", month, t.Day(), hour)
}

func buyReason(side domain.Side, edge float64) string {
	if side == domain.SideYes {
		return fmt.Sprintf("up leg, pair edge %.3f", edge)
	}
	return fmt.Sprintf("down leg, pair edge %.3f", edge)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func min2(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
