package polymarket_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polywatch/internal/adapters/polymarket"
	"github.com/alejandrodnm/polywatch/internal/domain"
)

// mockWSServer levanta un servidor websocket de prueba que delega
// cada conexión en handler.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStreamPrices_EmitsMidFromBook(t *testing.T) {
	srv := mockWSServer(t, func(conn *websocket.Conn) {
		// Primero llega la suscripción
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub struct {
			AssetIDs []string `json:"assets_ids"`
			Type     string   `json:"type"`
		}
		require.NoError(t, json.Unmarshal(msg, &sub))
		assert.Equal(t, "market", sub.Type)
		assert.Equal(t, []string{"tok_up"}, sub.AssetIDs)

		// Un frame no-JSON (keepalive) debe ignorarse sin romper nada
		conn.WriteMessage(websocket.TextMessage, []byte("PONG"))

		book := `[{
			"event_type": "book",
			"asset_id": "tok_up",
			"bids": [{"price": "0.54", "size": "100"}, {"price": "0.55", "size": "50"}],
			"asks": [{"price": "0.60", "size": "40"}, {"price": "0.58", "size": "80"}]
		}]`
		conn.WriteMessage(websocket.TextMessage, []byte(book))

		// Absorbe PINGs hasta que el cliente cierre
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	streamer := polymarket.NewWSStreamer(wsURL(srv))
	updates, err := streamer.StreamPrices(ctx, []string{"tok_up"})
	require.NoError(t, err)

	var got domain.PriceUpdate
	select {
	case got = <-updates:
	case <-time.After(3 * time.Second):
		t.Fatal("timeout esperando price update")
	}

	assert.Equal(t, "tok_up", got.TokenID)
	// mejor bid 0.55, mejor ask 0.58 → mid 0.565
	assert.InDelta(t, 0.565, got.Mid, 0.0001)
	assert.False(t, got.TS.IsZero())

	// Cancelar el contexto debe cerrar el canal
	cancel()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, open := <-updates:
			if !open {
				return
			}
		case <-deadline:
			t.Fatal("el canal no se cerró tras cancelar el contexto")
		}
	}
}

func TestStreamPrices_IgnoresOtherEventTypes(t *testing.T) {
	srv := mockWSServer(t, func(conn *websocket.Conn) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		frames := []string{
			`[{"event_type": "price_change", "asset_id": "tok_up"}]`,
			`[{"event_type": "book", "asset_id": "tok_up", "bids": [], "asks": []}]`,
			`[{"event_type": "book", "asset_id": "tok_up",
			   "bids": [{"price": "0.40", "size": "10"}],
			   "asks": [{"price": "0.44", "size": "10"}]}]`,
		}
		for _, f := range frames {
			conn.WriteMessage(websocket.TextMessage, []byte(f))
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	streamer := polymarket.NewWSStreamer(wsURL(srv))
	updates, err := streamer.StreamPrices(ctx, []string{"tok_up"})
	require.NoError(t, err)

	// Solo el book completo produce update; price_change y el book
	// vacío (sin mid calculable) se descartan
	select {
	case got := <-updates:
		assert.InDelta(t, 0.42, got.Mid, 0.0001)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout esperando price update")
	}

	select {
	case got, open := <-updates:
		if open {
			t.Fatalf("update inesperado: %+v", got)
		}
	case <-time.After(200 * time.Millisecond):
	}
}

func TestStreamPrices_RequiresTokens(t *testing.T) {
	streamer := polymarket.NewWSStreamer("")
	_, err := streamer.StreamPrices(context.Background(), nil)
	assert.Error(t, err)
}
