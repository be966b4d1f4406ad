package server

// server.go — HTTP API for the dashboard.
//
// Serves the reconstructed round state over REST and pushes live
// updates over SSE. Summaries are rebuilt from the event log on every
// request; there is no incremental state to invalidate, which keeps
// the handlers stateless and restart-safe.

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/alejandrodnm/polywatch/internal/ports"
)

const shutdownTimeout = 5 * time.Second

// Config controls the HTTP listener.
type Config struct {
	Addr           string
	AllowedOrigins []string
}

// Server wires the event store and the market adapters behind the API.
// Only store is mandatory; handlers that need a missing adapter answer
// 503 instead of panicking.
type Server struct {
	cfg      Config
	store    ports.EventStore
	resolver ports.MarketResolver
	prices   ports.PriceProvider
	streamer ports.PriceStreamer
	txcheck  ports.TxChecker

	engine *gin.Engine
	hub    *priceHub
}

// New builds the server and registers all routes.
func New(
	cfg Config,
	store ports.EventStore,
	resolver ports.MarketResolver,
	prices ports.PriceProvider,
	streamer ports.PriceStreamer,
	txcheck ports.TxChecker,
) *Server {
	s := &Server{
		cfg:      cfg,
		store:    store,
		resolver: resolver,
		prices:   prices,
		streamer: streamer,
		txcheck:  txcheck,
		hub:      newPriceHub(),
	}

	engine := gin.New()
	engine.Use(requestLog(), gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Last-Event-ID")
	engine.Use(cors.New(corsCfg))

	api := engine.Group("/api")
	{
		api.GET("/health", s.health)
		api.GET("/rounds", s.listRounds)
		api.GET("/rounds/:market", s.getRound)
		api.GET("/rounds/:market/market", s.getRoundMarket)
		api.GET("/rounds/:market/prices", s.getRoundPrices)
		api.GET("/rounds/:market/merges/txs", s.getMergeTxs)
		api.GET("/stream", s.stream)
		api.POST("/events", s.postEvents)
	}

	s.engine = engine
	return s
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down draining open
// requests. The price feed goroutine lives for the whole run.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.engine,
	}

	go s.watchPrices(ctx)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("api listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// requestLog is a minimal slog access log. The rest of the stack logs
// through slog, so gin's default writer-based logger stays out.
func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("http",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"dur", time.Since(start).Round(time.Millisecond).String(),
		)
	}
}
