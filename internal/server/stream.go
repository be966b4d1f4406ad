package server

// stream.go — SSE push channel for the dashboard.
//
// One GET /api/stream connection carries three frame types:
//   event — a stored log record, id set to the record uuid so the
//           browser's EventSource resumes with Last-Event-ID
//   price — a live mid from the CLOB stream for the current round
//   ping  — liveness marker so proxies keep the connection open

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alejandrodnm/polywatch/internal/domain"
)

const ssePingInterval = 15 * time.Second

// stream replays events after the client's cursor and then follows
// the log live. The cursor comes from ?after= or, on EventSource
// reconnects, the Last-Event-ID header.
func (s *Server) stream(c *gin.Context) {
	after := c.Query("after")
	if after == "" {
		after = c.GetHeader("Last-Event-ID")
	}

	ctx := c.Request.Context()
	events, err := s.store.Follow(ctx, after)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	prices, unsubscribe := s.hub.subscribe()
	defer unsubscribe()

	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Writer.Flush()

	ticker := time.NewTicker(ssePingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(c.Writer, "id: %s\nevent: event\ndata: %s\n\n", ev.ID, data)
			c.Writer.Flush()
		case pu := <-prices:
			data, err := json.Marshal(pu)
			if err != nil {
				continue
			}
			fmt.Fprintf(c.Writer, "event: price\ndata: %s\n\n", data)
			c.Writer.Flush()
		case <-ticker.C:
			fmt.Fprintf(c.Writer, "event: ping\ndata: {}\n\n")
			c.Writer.Flush()
		}
	}
}

// ─── Price hub ───────────────────────────────────────────────────────────────

// priceHub fans one mid stream out to every open SSE connection.
// Publishing never blocks: a subscriber that stopped draining loses
// ticks, not the connection.
type priceHub struct {
	mu   sync.Mutex
	subs map[int]chan domain.PriceUpdate
	next int
}

func newPriceHub() *priceHub {
	return &priceHub{subs: make(map[int]chan domain.PriceUpdate)}
}

func (h *priceHub) subscribe() (<-chan domain.PriceUpdate, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan domain.PriceUpdate, 16)
	h.subs[id] = ch
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs, id)
	}
}

func (h *priceHub) publish(pu domain.PriceUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- pu:
		default:
		}
	}
}
