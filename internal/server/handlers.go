package server

// handlers.go — REST handlers. Every round view is recomputed from
// the event log at request time.

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alejandrodnm/polywatch/internal/domain"
)

var (
	errMissingKind   = errors.New("event kind is required")
	errAmbiguousMode = errors.New(`event mode must be "production" or "simulation"`)
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "ts": time.Now().UTC()})
}

// listRounds answers the grouped round listing.
func (s *Server) listRounds(c *gin.Context) {
	mode, err := domain.ParseMode(c.Query("mode"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rounds, err := s.store.ListRounds(c.Request.Context(), mode)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":  len(rounds),
		"series": domain.GroupRounds(rounds),
	})
}

// getRound rebuilds one round's summary from its events.
func (s *Server) getRound(c *gin.Context) {
	market := c.Param("market")
	mode, err := domain.ParseMode(c.Query("mode"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events, err := s.store.RoundEvents(c.Request.Context(), market, mode)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(events) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "round not found: " + market})
		return
	}
	c.JSON(http.StatusOK, domain.Reconstruct(events))
}

// getRoundMarket resolves the round's market metadata from Gamma.
func (s *Server) getRoundMarket(c *gin.Context) {
	if s.resolver == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "market resolver not configured"})
		return
	}
	m, err := s.resolver.Resolve(c.Request.Context(), c.Param("market"))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"slug":           m.Slug,
		"condition_id":   m.ConditionID,
		"question":       m.Question,
		"end_date":       m.EndDate,
		"hours_to_close": m.HoursToResolution(),
		"volume_24h":     m.Volume24h,
		"active":         m.Active,
		"closed":         m.Closed,
		"up_token":       m.UpToken().TokenID,
		"down_token":     m.DownToken().TokenID,
	})
}

// getRoundPrices returns the current UP/DOWN mids for the round.
func (s *Server) getRoundPrices(c *gin.Context) {
	if s.resolver == nil || s.prices == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "price provider not configured"})
		return
	}
	market := c.Param("market")
	m, err := s.resolver.Resolve(c.Request.Context(), market)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	up, dn := m.UpToken(), m.DownToken()
	mids, err := s.prices.Midpoints(c.Request.Context(), []string{up.TokenID, dn.TokenID})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"market": market,
		"up":     gin.H{"token_id": up.TokenID, "mid": mids[up.TokenID]},
		"down":   gin.H{"token_id": dn.TokenID, "mid": mids[dn.TokenID]},
		"ts":     time.Now().UTC(),
	})
}

// getMergeTxs verifies the tx hashes the bot reported for the round's
// merges. Verification errors degrade to unknown so one flaky RPC
// call does not blank the whole table.
func (s *Server) getMergeTxs(c *gin.Context) {
	if s.txcheck == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "tx checker not configured"})
		return
	}
	market := c.Param("market")
	events, err := s.store.RoundEvents(c.Request.Context(), market, domain.ModeAll)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(events) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "round not found: " + market})
		return
	}

	summary := domain.Reconstruct(events)
	type mergeTx struct {
		Group  int             `json:"group"`
		Pairs  float64         `json:"pairs"`
		Profit float64         `json:"profit"`
		Tx     domain.TxStatus `json:"tx"`
	}
	out := make([]mergeTx, 0, len(summary.Merges))
	for _, m := range summary.Merges {
		if m.TxHash == nil || *m.TxHash == "" {
			continue
		}
		status, err := s.txcheck.MergeTxStatus(c.Request.Context(), *m.TxHash)
		if err != nil {
			status = domain.TxStatus{Hash: *m.TxHash, State: domain.TxUnknown}
		}
		out = append(out, mergeTx{Group: m.Group, Pairs: m.Pairs, Profit: m.Profit, Tx: status})
	}
	c.JSON(http.StatusOK, gin.H{"market": market, "merges": out})
}

// postEvents ingests one event or a batch from the bot. The body is
// either a single envelope object or an array of them.
func (s *Server) postEvents(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body: " + err.Error()})
		return
	}

	events, err := decodeIngest(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for i := range events {
		if err := validateIngest(&events[i]); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		events[i].NormalizePayload()
	}

	stored, err := s.store.AppendBatch(c.Request.Context(), events)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ids := make([]string, len(stored))
	for i, ev := range stored {
		ids[i] = ev.ID
	}
	c.JSON(http.StatusCreated, gin.H{"stored": len(stored), "ids": ids})
}

func decodeIngest(body []byte) ([]domain.Event, error) {
	var batch []domain.Event
	if err := json.Unmarshal(body, &batch); err == nil {
		return batch, nil
	}
	var single domain.Event
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, err
	}
	return []domain.Event{single}, nil
}

// validateIngest rejects what the store must never hold: events with
// no kind, or a mode that is not a concrete one.
func validateIngest(ev *domain.Event) error {
	if ev.Kind == "" {
		return errMissingKind
	}
	mode, err := domain.ParseMode(string(ev.Mode))
	if err != nil {
		return err
	}
	if mode == domain.ModeAll {
		return errAmbiguousMode
	}
	ev.Mode = mode
	return nil
}
