package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/scout-backend/internal/models"
)

// countingPortfolio records refreshes and can be made to fail them.
type countingPortfolio struct {
	syncs   atomic.Int32
	syncErr error
}

func (c *countingPortfolio) Snapshot() *models.Portfolio                 { return models.NewPortfolio() }
func (c *countingPortfolio) Holdings() map[string]models.PortfolioHolding { return nil }
func (c *countingPortfolio) TotalValue() float64                         { return 0 }
func (c *countingPortfolio) AvailableBalance() float64                   { return 0 }
func (c *countingPortfolio) StartingBalance() float64                    { return 0 }
func (c *countingPortfolio) RecentTrades(int) []models.TradeRecord       { return nil }

func (c *countingPortfolio) SyncWithWallet(context.Context) error {
	c.syncs.Add(1)
	return c.syncErr
}

func serve(s *Server, method, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func errorBody(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body["error"]
}

func TestAuth_EveryAPIRouteNeedsTheKey(t *testing.T) {
	pf := &countingPortfolio{}
	s := NewServer(pf, fixedStatus{}, nil, Options{APIKey: "secret123"})

	routes := []struct{ method, path string }{
		{http.MethodGet, "/v1/portfolio"},
		{http.MethodGet, "/v1/portfolio/holdings"},
		{http.MethodPost, "/v1/portfolio/refresh"},
		{http.MethodGet, "/v1/trades/recent"},
		{http.MethodGet, "/v1/status"},
	}
	headers := []struct {
		name, value, wantErr string
	}{
		{"missing", "", "missing Authorization header"},
		{"wrong key", "Bearer wrong_key", "invalid API key"},
		{"basic scheme", "Basic secret123", "invalid API key"},
		{"raw key", "secret123", "invalid API key"},
	}

	for _, rt := range routes {
		for _, h := range headers {
			t.Run(rt.path+"/"+h.name, func(t *testing.T) {
				rr := serve(s, rt.method, rt.path, h.value)
				require.Equal(t, http.StatusUnauthorized, rr.Code)
				assert.Equal(t, h.wantErr, errorBody(t, rr))
			})
		}
		rr := serve(s, rt.method, rt.path, "Bearer secret123")
		assert.Equal(t, http.StatusOK, rr.Code, rt.path)
	}
	assert.Equal(t, int32(1), pf.syncs.Load(), "only the authorized refresh syncs")
}

func TestAuth_OpenEndpoints(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	s := NewServer(&countingPortfolio{}, nil, nil, Options{APIKey: "secret123", Metrics: metrics})

	assert.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/metrics", "").Code)
}

func TestAuth_DisabledWithoutKey(t *testing.T) {
	pf := &countingPortfolio{}
	s := NewServer(pf, fixedStatus{}, nil, Options{})

	rr := serve(s, http.MethodPost, "/v1/portfolio/refresh", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int32(1), pf.syncs.Load())
}

func TestRefresh_SyncFailureIs500(t *testing.T) {
	pf := &countingPortfolio{syncErr: errors.New("save portfolio: connection refused")}
	s := NewServer(pf, fixedStatus{}, nil, Options{APIKey: "secret123"})

	rr := serve(s, http.MethodPost, "/v1/portfolio/refresh", "Bearer secret123")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "refresh failed", errorBody(t, rr), "internal errors are not echoed")
}

func TestCORS_HeadersOnEveryResponse(t *testing.T) {
	s := NewServer(&countingPortfolio{}, fixedStatus{}, nil,
		Options{APIKey: "secret123", CORSOrigin: "https://dash.example.com"})

	for _, rr := range []*httptest.ResponseRecorder{
		serve(s, http.MethodGet, "/v1/portfolio", "Bearer secret123"),
		serve(s, http.MethodGet, "/v1/portfolio", ""),
	} {
		assert.Equal(t, "https://dash.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, POST, OPTIONS", rr.Header().Get("Access-Control-Allow-Methods"))
		assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	}
}

func TestCORS_PreflightSkipsAuthAndHandlers(t *testing.T) {
	pf := &countingPortfolio{}
	s := NewServer(pf, fixedStatus{}, nil, Options{APIKey: "secret123"})

	rr := serve(s, http.MethodOptions, "/v1/portfolio/refresh", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Zero(t, pf.syncs.Load())
}

func TestParseLimit(t *testing.T) {
	cases := map[string]int{
		"":            defaultTradeLimit,
		"?limit=50":   50,
		"?limit=0":    defaultTradeLimit,
		"?limit=-5":   defaultTradeLimit,
		"?limit=abc":  defaultTradeLimit,
		"?limit=2000": maxQueryLimit,
		"?limit=1":    1,
	}
	for query, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/v1/trades/recent"+query, nil)
		assert.Equal(t, want, parseLimit(req, defaultTradeLimit), query)
	}
}
