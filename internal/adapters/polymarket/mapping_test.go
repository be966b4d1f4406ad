package polymarket_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_HourlyMarket(t *testing.T) {
	data, err := os.ReadFile("../../../testdata/fixtures/gamma_hourly_market.json")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets", r.URL.Path)
		assert.Equal(t, "bitcoin-up-or-down-august-22-3pm-et", r.URL.Query().Get("slug"))
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}))
	defer srv.Close()

	client := newTestClient(nil, srv)
	m, err := client.Resolve(context.Background(), "bitcoin-up-or-down-august-22-3pm-et")
	require.NoError(t, err)

	assert.Equal(t, "bitcoin-up-or-down-august-22-3pm-et", m.Slug)
	assert.Equal(t, "Bitcoin Up or Down - August 22, 3PM ET", m.Question)
	assert.True(t, m.Active)
	assert.False(t, m.Closed)

	// volume24hr llega como string numérico; json.Number lo absorbe
	assert.InDelta(t, 15432.88, m.Volume24h, 0.001)

	// endDateIso en RFC3339
	assert.Equal(t, time.Date(2026, 8, 22, 19, 0, 0, 0, time.UTC), m.EndDate)

	// outcomes y clobTokenIds vienen doble-codificados y alineados
	up := m.UpToken()
	dn := m.DownToken()
	assert.Equal(t, "Up", up.Outcome)
	assert.Equal(t, "Down", dn.Outcome)
	assert.Contains(t, up.TokenID, "11111")
	assert.Contains(t, dn.TokenID, "22222")
}

func TestResolve_DateLayouts(t *testing.T) {
	// Gamma no es consistente con el formato de endDateIso
	cases := []struct {
		name string
		iso  string
		want time.Time
	}{
		{"rfc3339", "2026-08-22T19:00:00Z", time.Date(2026, 8, 22, 19, 0, 0, 0, time.UTC)},
		{"millis", "2026-08-22T19:00:00.000Z", time.Date(2026, 8, 22, 19, 0, 0, 0, time.UTC)},
		{"date_only", "2026-08-22", time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)},
		{"garbage", "not-a-date", time.Time{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fixture := `[{
				"conditionId": "0xc1",
				"question": "Ethereum Up or Down - August 22, 4PM ET",
				"slug": "ethereum-up-or-down-august-22-4pm-et",
				"endDateIso": "` + tc.iso + `",
				"outcomes": "[\"Up\", \"Down\"]",
				"clobTokenIds": "[\"1\", \"2\"]",
				"volume24hr": 10,
				"active": true,
				"closed": false
			}]`
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(fixture))
			}))
			defer srv.Close()

			client := newTestClient(nil, srv)
			m, err := client.Resolve(context.Background(), "ethereum-up-or-down-august-22-4pm-et")
			require.NoError(t, err)
			assert.Equal(t, tc.want, m.EndDate)
		})
	}
}

func TestResolve_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := newTestClient(nil, srv)
	_, err := client.Resolve(context.Background(), "no-such-round")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestResolve_EmptySlug(t *testing.T) {
	client := newTestClient(nil, nil)
	_, err := client.Resolve(context.Background(), "")
	assert.Error(t, err)
}

func TestResolve_CachesBySlug(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{
			"conditionId": "0xc2",
			"question": "Solana Up or Down - August 22, 5PM ET",
			"slug": "solana-up-or-down-august-22-5pm-et",
			"outcomes": "[\"Up\", \"Down\"]",
			"clobTokenIds": "[\"1\", \"2\"]",
			"volume24hr": 5,
			"active": true,
			"closed": false
		}]`))
	}))
	defer srv.Close()

	client := newTestClient(nil, srv)
	for i := 0; i < 3; i++ {
		m, err := client.Resolve(context.Background(), "solana-up-or-down-august-22-5pm-et")
		require.NoError(t, err)
		assert.Equal(t, "0xc2", m.ConditionID)
	}
	assert.Equal(t, int32(1), hits.Load())
}
