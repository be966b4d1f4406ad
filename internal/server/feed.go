package server

// feed.go — background price feed for the round currently in play.

import (
	"context"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polywatch/internal/domain"
)

const (
	feedRetryWait    = 15 * time.Second
	feedRecheckEvery = 30 * time.Second
)

// watchPrices keeps one CLOB subscription alive for the most recent
// round in the log and republishes its mids through the hub. When a
// newer round shows up the subscription moves over to it.
func (s *Server) watchPrices(ctx context.Context) {
	if s.streamer == nil || s.resolver == nil {
		return
	}

	for ctx.Err() == nil {
		market := s.currentMarket(ctx)
		if market == "" {
			sleepCtx(ctx, feedRetryWait)
			continue
		}
		if err := s.feedRound(ctx, market); err != nil {
			slog.Warn("price feed interrupted", "market", market, "err", err)
			sleepCtx(ctx, feedRetryWait)
		}
	}
}

// feedRound streams mids for one round until the log moves on to a
// newer one or the stream dies.
func (s *Server) feedRound(ctx context.Context, market string) error {
	m, err := s.resolver.Resolve(ctx, market)
	if err != nil {
		return err
	}
	up, dn := m.UpToken(), m.DownToken()
	ids := make([]string, 0, 2)
	for _, t := range []domain.Token{up, dn} {
		if t.TokenID != "" {
			ids = append(ids, t.TokenID)
		}
	}
	if len(ids) == 0 {
		sleepCtx(ctx, feedRetryWait)
		return nil
	}

	feedCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates, err := s.streamer.StreamPrices(feedCtx, ids)
	if err != nil {
		return err
	}
	slog.Info("price feed started", "market", market, "tokens", len(ids))

	// Cancels the subscription once a newer round takes over.
	go func() {
		ticker := time.NewTicker(feedRecheckEvery)
		defer ticker.Stop()
		for {
			select {
			case <-feedCtx.Done():
				return
			case <-ticker.C:
				if current := s.currentMarket(feedCtx); current != "" && current != market {
					slog.Info("price feed moving to newer round", "from", market, "to", current)
					cancel()
					return
				}
			}
		}
	}()

	for pu := range updates {
		pu.Market = market
		switch pu.TokenID {
		case up.TokenID:
			pu.Side = domain.SideYes
		case dn.TokenID:
			pu.Side = domain.SideNo
		}
		s.hub.publish(pu)
	}
	return nil
}

// currentMarket picks the round with the most recent activity.
func (s *Server) currentMarket(ctx context.Context) string {
	rounds, err := s.store.ListRounds(ctx, domain.ModeAll)
	if err != nil || len(rounds) == 0 {
		return ""
	}
	return rounds[0].Market
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
