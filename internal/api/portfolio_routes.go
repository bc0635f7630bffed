package api

import (
	"net/http"
	"sort"
	"time"

	"github.com/kjannette/scout-backend/internal/models"
)

type portfolioResponse struct {
	TotalValue       float64   `json:"totalValue"`
	AvailableBalance float64   `json:"availableBalance"`
	InvestedValue    float64   `json:"investedValue"`
	StartingBalance  float64   `json:"startingBalance"`
	OpenPositions    int       `json:"openPositions"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type holdingResponse struct {
	Address string `json:"address"`
	models.PortfolioHolding
	Value float64 `json:"value"`
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	snap := s.portfolio.Snapshot()
	writeJSON(w, http.StatusOK, portfolioResponse{
		TotalValue:       s.portfolio.TotalValue(),
		AvailableBalance: s.portfolio.AvailableBalance(),
		InvestedValue:    snap.InvestedValue(),
		StartingBalance:  s.portfolio.StartingBalance(),
		OpenPositions:    len(snap.Holdings),
		UpdatedAt:        snap.UpdatedAt,
	})
}

func (s *Server) handleHoldings(w http.ResponseWriter, r *http.Request) {
	holdings := s.portfolio.Holdings()
	out := make([]holdingResponse, 0, len(holdings))
	for addr, h := range holdings {
		out = append(out, holdingResponse{Address: addr, PortfolioHolding: h, Value: h.Value()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value > out[j].Value })

	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(out),
		"holdings": out,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.portfolio.SyncWithWallet(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("portfolio refresh failed")
		writeError(w, http.StatusInternalServerError, "refresh failed")
		return
	}
	s.log.Info().Float64("total", s.portfolio.TotalValue()).Msg("portfolio refreshed via API")
	s.handlePortfolio(w, r)
}

func (s *Server) handleRecentTrades(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, defaultTradeLimit)
	trades := s.portfolio.RecentTrades(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(trades),
		"trades": trades,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		writeError(w, http.StatusServiceUnavailable, "agent not running")
		return
	}
	writeJSON(w, http.StatusOK, s.status.Status(r.Context()))
}
