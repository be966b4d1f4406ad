package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/alejandrodnm/polywatch/internal/adapters/notify"
	"github.com/alejandrodnm/polywatch/internal/adapters/storage"
	"github.com/alejandrodnm/polywatch/internal/domain"
	"github.com/alejandrodnm/polywatch/internal/simulator"
)

// runSimulate genera una ronda de demo (mode=simulation) y la imprime.
// Con -round se fija el market; si no, se deriva un slug horario.
func runSimulate(ctx context.Context, store *storage.SQLiteStore, console *notify.Console, market string, seed int64) {
	sim := simulator.New(store, simulator.Config{
		Market: market,
		Seed:   seed,
	})

	written, err := sim.Run(ctx)
	if err != nil {
		slog.Error("simulation failed", "err", err)
		os.Exit(1)
	}

	events, err := store.RoundEvents(ctx, written, domain.ModeSimulation)
	if err != nil {
		slog.Error("failed to read simulated round", "err", err, "market", written)
		os.Exit(1)
	}

	console.PrintRound(domain.Reconstruct(events))
}
