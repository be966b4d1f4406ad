package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/alejandrodnm/polywatch/internal/adapters/notify"
	"github.com/alejandrodnm/polywatch/internal/adapters/storage"
	"github.com/alejandrodnm/polywatch/internal/domain"
)

// runFollow hace tail del log de eventos en la consola hasta Ctrl+C.
// Arranca desde la cola actual: lo ya almacenado no se reimprime.
func runFollow(ctx context.Context, store *storage.SQLiteStore, console *notify.Console, mode domain.Mode) {
	events, err := store.Follow(ctx, "")
	if err != nil {
		slog.Error("failed to follow event log", "err", err)
		os.Exit(1)
	}

	slog.Info("following event log — press Ctrl+C to exit", "mode", mode)

	for ev := range events {
		if mode != domain.ModeAll && ev.Mode != mode {
			continue
		}
		console.PrintEvent(ev)
	}

	slog.Info("follow stopped")
}
