package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/alejandrodnm/polywatch/internal/adapters/notify"
	"github.com/alejandrodnm/polywatch/internal/adapters/storage"
	"github.com/alejandrodnm/polywatch/internal/domain"
)

// runRound imprime la reconstrucción de una ronda y termina.
func runRound(ctx context.Context, store *storage.SQLiteStore, console *notify.Console, market string, mode domain.Mode) {
	events, err := store.RoundEvents(ctx, market, mode)
	if err != nil {
		slog.Error("failed to read round", "err", err, "market", market)
		os.Exit(1)
	}
	if len(events) == 0 {
		slog.Error("round not found", "market", market, "mode", mode)
		os.Exit(1)
	}

	console.PrintRound(domain.Reconstruct(events))
}

// runRounds imprime el listado de rondas agrupado por serie y termina.
func runRounds(ctx context.Context, store *storage.SQLiteStore, console *notify.Console, mode domain.Mode) {
	rounds, err := store.ListRounds(ctx, mode)
	if err != nil {
		slog.Error("failed to list rounds", "err", err)
		os.Exit(1)
	}

	console.PrintRounds(domain.GroupRounds(rounds))
}
