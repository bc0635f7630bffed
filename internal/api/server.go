package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kjannette/scout-backend/internal/logging"
	"github.com/kjannette/scout-backend/internal/models"
)

const (
	maxQueryLimit     = 100
	defaultTradeLimit = 20
)

// Portfolio is the read side of the portfolio manager plus the explicit
// refresh action.
type Portfolio interface {
	Snapshot() *models.Portfolio
	Holdings() map[string]models.PortfolioHolding
	TotalValue() float64
	AvailableBalance() float64
	StartingBalance() float64
	RecentTrades(n int) []models.TradeRecord
	SyncWithWallet(ctx context.Context) error
}

type StatusProvider interface {
	Status(ctx context.Context) models.AgentStatus
}

// Pinger reports storage liveness. A nil Pinger means in-memory storage.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Port       int
	APIKey     string
	CORSOrigin string
	Metrics    http.Handler
}

type Server struct {
	portfolio  Portfolio
	status     StatusProvider
	db         Pinger
	httpServer *http.Server
	apiKey     string
	log        zerolog.Logger
}

func NewServer(portfolio Portfolio, status StatusProvider, db Pinger, opts Options) *Server {
	s := &Server{
		portfolio: portfolio,
		status:    status,
		db:        db,
		apiKey:    opts.APIKey,
		log:       logging.Component("api"),
	}

	mux := http.NewServeMux()

	// Portfolio routes
	mux.HandleFunc("GET /v1/portfolio", s.handlePortfolio)
	mux.HandleFunc("GET /v1/portfolio/holdings", s.handleHoldings)
	mux.HandleFunc("POST /v1/portfolio/refresh", s.handleRefresh)

	// Trade routes
	mux.HandleFunc("GET /v1/trades/recent", s.handleRecentTrades)

	// Agent
	mux.HandleFunc("GET /v1/status", s.handleStatus)

	// Health check and metrics (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	// CORS runs first so rejected requests still carry the headers a browser
	// needs to read the 401.
	handler := corsMiddleware(s.authMiddleware(mux), opts.CORSOrigin)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Bool("auth", s.apiKey != "").Msg("REST API server started")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- middleware ---

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || r.URL.Path == "/health" || r.URL.Path == "/metrics" || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || token != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler, allowOrigin string) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- validation helpers ---

func parseLimit(r *http.Request, defaultLimit int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultLimit
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxQueryLimit {
		return maxQueryLimit
	}
	return n
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
