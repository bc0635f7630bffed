// Package memory holds in-process stores for dry runs and tests. Nothing
// survives a restart.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kjannette/scout-backend/internal/models"
)

type PortfolioStore struct {
	mu        sync.RWMutex
	portfolio *models.Portfolio
	trades    []models.TradeRecord
	saves     int
}

func NewPortfolioStore() *PortfolioStore {
	return &PortfolioStore{}
}

func (s *PortfolioStore) Load(_ context.Context) (*models.Portfolio, []models.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.portfolio == nil {
		return models.NewPortfolio(), nil, nil
	}
	return s.portfolio.Clone(), append([]models.TradeRecord(nil), s.trades...), nil
}

func (s *PortfolioStore) Save(_ context.Context, p *models.Portfolio, trades []models.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.portfolio = p.Clone()
	s.trades = append([]models.TradeRecord(nil), trades...)
	s.saves++
	return nil
}

// Saves reports how many times Save was called.
func (s *PortfolioStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func (s *PortfolioStore) CountToday(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	n := 0
	for _, t := range s.trades {
		if !t.Timestamp.Before(midnight) {
			n++
		}
	}
	return n, nil
}

type SeenStore struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

func NewSeenStore() *SeenStore {
	return &SeenStore{seen: make(map[string]struct{})}
}

func (s *SeenStore) LoadSeen(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.seen))
	for a := range s.seen {
		out = append(out, a)
	}
	return out, nil
}

func (s *SeenStore) MarkSeen(_ context.Context, addrs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range addrs {
		s.seen[strings.ToLower(a)] = struct{}{}
	}
	return nil
}
