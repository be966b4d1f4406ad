package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/polywatch/config"
	"github.com/alejandrodnm/polywatch/internal/adapters/notify"
	"github.com/alejandrodnm/polywatch/internal/adapters/polygon"
	"github.com/alejandrodnm/polywatch/internal/adapters/polymarket"
	"github.com/alejandrodnm/polywatch/internal/adapters/storage"
	"github.com/alejandrodnm/polywatch/internal/domain"
	"github.com/alejandrodnm/polywatch/internal/ports"
	"github.com/alejandrodnm/polywatch/internal/server"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	round := flag.String("round", "", "print one round's reconstruction and exit")
	rounds := flag.Bool("rounds", false, "print the round listing and exit")
	follow := flag.Bool("follow", false, "tail the event log to the console")
	simulate := flag.Bool("simulate", false, "write a demo round (mode=simulation) and exit")
	mode := flag.String("mode", "", "filter by mode: production|simulation (default: all)")
	seed := flag.Int64("seed", 0, "simulator seed (0 = from clock)")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full round tables (default: compact 1-line)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	queryMode, err := domain.ParseMode(*mode)
	if err != nil {
		slog.Error("invalid -mode", "err", err, "mode", *mode)
		os.Exit(1)
	}

	store, err := storage.NewSQLiteStore(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	console := notify.NewConsole(*table)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch {
	case *simulate:
		runSimulate(ctx, store, console, *round, *seed)
	case *round != "":
		runRound(ctx, store, console, *round, queryMode)
	case *rounds:
		runRounds(ctx, store, console, queryMode)
	case *follow:
		runFollow(ctx, store, console, queryMode)
	default:
		runServe(ctx, cfg, store)
	}
}

// runServe arranca el servidor HTTP del dashboard con todos los
// adapters de solo lectura conectados.
func runServe(ctx context.Context, cfg *config.Config, store *storage.SQLiteStore) {
	slog.Info("polywatch starting",
		"addr", cfg.Server.Addr,
		"dsn", cfg.Storage.DSN,
		"gamma", cfg.API.GammaBase,
		"clob", cfg.API.CLOBBase,
	)

	client := polymarket.NewClient(cfg.API.CLOBBase, cfg.API.GammaBase)
	streamer := polymarket.NewWSStreamer(cfg.API.WSBase)

	// El verificador de merges es opcional: sin RPC el endpoint de
	// transacciones responde 503 y el resto del monitor sigue igual.
	var txcheck ports.TxChecker
	if cfg.Polygon.RPCURL != "" {
		checker, err := polygon.NewChecker(cfg.Polygon.RPCURL)
		if err != nil {
			slog.Warn("merge tx verification disabled", "err", err, "rpc", cfg.Polygon.RPCURL)
		} else {
			defer checker.Close()
			txcheck = checker
		}
	}

	srv := server.New(server.Config{
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, store, client, client, streamer, txcheck)

	if err := srv.Run(ctx); err != nil {
		slog.Error("server exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("polywatch stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
