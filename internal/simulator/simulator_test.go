package simulator_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polywatch/internal/adapters/storage"
	"github.com/alejandrodnm/polywatch/internal/domain"
	"github.com/alejandrodnm/polywatch/internal/simulator"
)

func runSim(t *testing.T, cfg simulator.Config) *domain.RoundSummary {
	t.Helper()
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	market, err := simulator.New(store, cfg).Run(context.Background())
	require.NoError(t, err)

	events, err := store.RoundEvents(context.Background(), market, domain.ModeSimulation)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	return domain.Reconstruct(events)
}

func TestRun_ReconstructsCleanly(t *testing.T) {
	// La coherencia no depende de la semilla: todo log generado debe
	// reconstruir sin huecos.
	for _, seed := range []int64{1, 7, 42} {
		t.Run(fmt.Sprintf("seed_%d", seed), func(t *testing.T) {
			sum := runSim(t, simulator.Config{
				Market: "demo-up-or-down-august-22-3pm-et",
				Seed:   seed,
			})

			assert.Equal(t, "demo-up-or-down-august-22-3pm-et", sum.Market)
			assert.Equal(t, domain.ModeSimulation, sum.Mode)
			require.NotNil(t, sum.StartedAt)
			require.NotNil(t, sum.Settlement)
			assert.Contains(t, []string{"UP", "DOWN"}, sum.Settlement.Outcome)
			assert.Equal(t, 12, sum.BuyCount)
			require.NotEmpty(t, sum.Merges)

			// Conservación: cada merge consume pairs por lado.
			var pairs, consumed float64
			for _, m := range sum.Merges {
				pairs += m.Pairs
				assert.NotEmpty(t, m.ConsumedBuyIDs)
			}
			var yesSupply, noSupply float64
			for _, b := range sum.Buys {
				consumed += b.ConsumedSize
				assert.GreaterOrEqual(t, b.ConsumedSize, 0.0)
				assert.LessOrEqual(t, b.ConsumedSize, b.Size+1e-9)
				if b.Side == domain.SideYes {
					yesSupply += b.Size
				} else {
					noSupply += b.Size
				}
			}
			assert.InDelta(t, 2*pairs, consumed, 1e-6)

			// Lo no fusionado es exactamente la oferta menos lo drenado.
			assert.InDelta(t, yesSupply-pairs, sum.UnmergedYes, 1e-6)
			assert.InDelta(t, noSupply-pairs, sum.UnmergedNo, 1e-6)

			// El profit agregado es la suma de los merges.
			var profit float64
			for _, m := range sum.Merges {
				profit += m.Profit
			}
			assert.InDelta(t, profit, sum.TotalProfit, 1e-9)
		})
	}
}

func TestRun_SameSeedSameRound(t *testing.T) {
	cfg := simulator.Config{Market: "demo-up-or-down-august-22-4pm-et", Seed: 99}
	a := runSim(t, cfg)
	b := runSim(t, cfg)

	require.Equal(t, a.BuyCount, b.BuyCount)
	for i := range a.Buys {
		assert.Equal(t, a.Buys[i].Side, b.Buys[i].Side)
		assert.Equal(t, a.Buys[i].Price, b.Buys[i].Price)
		assert.Equal(t, a.Buys[i].Size, b.Buys[i].Size)
	}
	require.Equal(t, a.MergeCount, b.MergeCount)
	for i := range a.Merges {
		assert.Equal(t, a.Merges[i].Pairs, b.Merges[i].Pairs)
	}
}

func TestRun_SmallChunkMergesOften(t *testing.T) {
	sum := runSim(t, simulator.Config{
		Market:     "demo-up-or-down-august-22-5pm-et",
		MergeChunk: 5,
		Seed:       3,
	})
	assert.GreaterOrEqual(t, sum.MergeCount, 2)

	// Con chunk pequeño las compras tempranas acaban totalmente
	// consumidas.
	assert.True(t, sum.Buys[0].Merged, "la primera compra debería estar fusionada")
}
