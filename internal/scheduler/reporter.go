// Package scheduler runs periodic background jobs outside the agent loop.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/kjannette/scout-backend/internal/logging"
	"github.com/kjannette/scout-backend/internal/models"
	"github.com/kjannette/scout-backend/internal/risk"
)

const (
	DefaultInterval = time.Hour
	reportTimeout   = 30 * time.Second
)

type BlockSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

type PortfolioView interface {
	TotalValue() float64
	StartingBalance() float64
	Holdings() map[string]models.PortfolioHolding
}

type HealthChecker interface {
	CheckPortfolioHealth(totalValue, startingValue float64) risk.Health
}

type Notifier interface {
	Send(ctx context.Context, msg string) error
}

// StatusReporter posts a portfolio summary to the webhook on a fixed cadence.
type StatusReporter struct {
	chain    BlockSource
	pf       PortfolioView
	health   HealthChecker
	notify   Notifier
	interval time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

func NewStatusReporter(chain BlockSource, pf PortfolioView, health HealthChecker, notify Notifier, interval time.Duration) *StatusReporter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &StatusReporter{
		chain:    chain,
		pf:       pf,
		health:   health,
		notify:   notify,
		interval: interval,
		log:      logging.Component("scheduler"),
	}
}

func (s *StatusReporter) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("status reporter already running")
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := c.AddFunc(spec, s.tick); err != nil {
		return fmt.Errorf("schedule status report %q: %w", spec, err)
	}
	c.Start()

	s.cron = c
	s.running = true
	s.log.Info().Dur("interval", s.interval).Msg("status reporter started")
	return nil
}

// Stop halts the schedule and waits for an in-flight report to finish.
func (s *StatusReporter) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.running = false
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.log.Info().Msg("status reporter stopped")
}

func (s *StatusReporter) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *StatusReporter) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()
	if _, err := s.Report(ctx); err != nil {
		s.log.Warn().Err(err).Msg("status report failed")
	}
}

// Report builds the status summary and sends it. The message is returned
// even when delivery fails.
func (s *StatusReporter) Report(ctx context.Context) (string, error) {
	msg := s.Summary(ctx)
	if s.notify == nil {
		return msg, nil
	}
	if err := s.notify.Send(ctx, msg); err != nil {
		return msg, fmt.Errorf("send status: %w", err)
	}
	return msg, nil
}

func (s *StatusReporter) Summary(ctx context.Context) string {
	block := "unknown"
	if s.chain != nil {
		if n, err := s.chain.BlockNumber(ctx); err != nil {
			s.log.Warn().Err(err).Msg("block number unavailable for status")
		} else {
			block = fmt.Sprintf("%d", n)
		}
	}

	total := s.pf.TotalValue()
	h := s.health.CheckPortfolioHealth(total, s.pf.StartingBalance())

	msg := fmt.Sprintf("📊 Status: block %s | value %.4f MON | drawdown %.1f%% | %d open positions",
		block, total, h.Drawdown, len(s.pf.Holdings()))
	if h.ShouldHalt {
		msg += " | BUYS HALTED"
	}
	return msg
}
