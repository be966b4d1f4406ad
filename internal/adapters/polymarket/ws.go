package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alejandrodnm/polywatch/internal/domain"
)

const (
	defaultWSBase = "wss://ws-subscriptions-clob.polymarket.com/ws"
	wsMarketPath  = "/market"

	wsHandshakeTimeout = 10 * time.Second
	wsReadLimit        = 1 << 20

	// El CLOB corta conexiones sin tráfico pasados ~10s. Espera el
	// literal "PING" como keepalive, no un ping frame de websocket.
	wsPingInterval = 5 * time.Second

	wsMaxBackoff = 30 * time.Second
	wsBuffer     = 64
)

// WSStreamer mantiene la suscripción al canal público `market` del
// CLOB y re-emite los mids derivados de cada snapshot de book.
//
// Estrategia:
//   - Una goroutine por stream que reconecta con backoff exponencial
//     hasta que se cancele el contexto.
//   - Los frames que no parsean como eventos (PONG, acks) se ignoran.
//   - Canal con buffer y drop si el consumidor va lento: un mid
//     perdido se repone con el siguiente snapshot.
type WSStreamer struct {
	base string
}

// NewWSStreamer crea un streamer contra el base URL dado.
// Si base está vacío usa el endpoint de producción.
func NewWSStreamer(base string) *WSStreamer {
	if base == "" {
		base = defaultWSBase
	}
	return &WSStreamer{base: base}
}

// StreamPrices abre el stream para los tokens dados. El canal se
// cierra al cancelar ctx.
func (s *WSStreamer) StreamPrices(ctx context.Context, tokenIDs []string) (<-chan domain.PriceUpdate, error) {
	if len(tokenIDs) == 0 {
		return nil, fmt.Errorf("polymarket.StreamPrices: sin token ids")
	}
	updates := make(chan domain.PriceUpdate, wsBuffer)
	go s.run(ctx, tokenIDs, updates)
	return updates, nil
}

// run reconecta en bucle. El backoff se resetea tras una sesión que
// llegó a entregar datos.
func (s *WSStreamer) run(ctx context.Context, tokenIDs []string, updates chan<- domain.PriceUpdate) {
	defer close(updates)

	backoff := time.Second
	for {
		delivered, err := s.session(ctx, tokenIDs, updates)
		if ctx.Err() != nil {
			return
		}
		if delivered > 0 {
			backoff = time.Second
		}
		slog.Warn("price stream disconnected, reconnecting",
			"error", err,
			"delivered", delivered,
			"backoff", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff *= 2
		if backoff > wsMaxBackoff {
			backoff = wsMaxBackoff
		}
	}
}

// session abre una conexión, se suscribe y lee hasta error o
// cancelación. Devuelve cuántos updates llegó a emitir.
func (s *WSStreamer) session(ctx context.Context, tokenIDs []string, updates chan<- domain.PriceUpdate) (int, error) {
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, s.base+wsMarketPath, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return 0, fmt.Errorf("dial %s: %w", s.base+wsMarketPath, err)
	}
	defer conn.Close()
	conn.SetReadLimit(wsReadLimit)

	// gorilla/websocket solo permite un writer concurrente.
	var writeMu sync.Mutex
	writeMessage := func(messageType int, data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(messageType, data)
	}

	sub, err := json.Marshal(wsSubscribe{AssetIDs: tokenIDs, Type: "market"})
	if err != nil {
		return 0, fmt.Errorf("marshal subscribe: %w", err)
	}
	if err := writeMessage(websocket.TextMessage, sub); err != nil {
		return 0, fmt.Errorf("subscribe: %w", err)
	}
	slog.Debug("price stream subscribed", "tokens", len(tokenIDs))

	// done desbloquea las goroutines auxiliares al salir de session;
	// el Close en ctx.Done desbloquea ReadMessage.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := writeMessage(websocket.TextMessage, []byte("PING")); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	delivered := 0
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return delivered, fmt.Errorf("read: %w", err)
		}
		for _, ev := range parseMarketEvents(data) {
			if ev.EventType != "book" {
				continue
			}
			mid := midFromBook(ev.Bids, ev.Asks)
			if mid <= 0 {
				continue
			}
			update := domain.PriceUpdate{
				TokenID: ev.AssetID,
				Mid:     mid,
				TS:      time.Now().UTC(),
			}
			select {
			case updates <- update:
				delivered++
			default:
				slog.Warn("price update dropped, consumer lagging", "token", ev.AssetID)
			}
		}
	}
}

// parseMarketEvents decodifica un frame del canal market. El CLOB
// manda arrays de eventos y ocasionalmente objetos sueltos; los
// frames que no son JSON (el "PONG" del keepalive) devuelven nil.
func parseMarketEvents(data []byte) []wsMarketEvent {
	var events []wsMarketEvent
	if err := json.Unmarshal(data, &events); err == nil {
		return events
	}
	var single wsMarketEvent
	if err := json.Unmarshal(data, &single); err == nil && single.EventType != "" {
		return []wsMarketEvent{single}
	}
	return nil
}
