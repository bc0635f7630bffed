// Package bot runs the trading agent: one cycle at a time, each cycle
// syncing the portfolio, exiting risky positions and then evaluating newly
// launched tokens.
package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kjannette/scout-backend/internal/logging"
	"github.com/kjannette/scout-backend/internal/metrics"
	"github.com/kjannette/scout-backend/internal/models"
	"github.com/kjannette/scout-backend/internal/notifications"
	"github.com/kjannette/scout-backend/internal/risk"
)

// exitConfidence is attached to risk-driven sells.
const exitConfidence = 0.9

type Portfolio interface {
	SyncWithWallet(ctx context.Context) error
	Holdings() map[string]models.PortfolioHolding
	Holding(address string) (models.PortfolioHolding, bool)
	TotalValue() float64
	StartingBalance() float64
	AvailableBalance() float64
	CalculatePositionSize(confidence float64) float64
	Update(ctx context.Context, token models.Token, action models.Action, amount, price float64, txHash string) error
	CountToday(ctx context.Context) (int, error)
}

type Discoverer interface {
	NewTokens(ctx context.Context) []models.Token
	SeenCount() int
}

type SentimentAnalyzer interface {
	Analyze(ctx context.Context, token models.Token) float64
}

type Evaluator interface {
	Evaluate(token models.Token, sentiment float64) models.InvestmentDecision
}

type RiskChecker interface {
	CheckPositions(ctx context.Context, holdings map[string]models.PortfolioHolding) []risk.PositionStatus
	CheckPortfolioHealth(totalValue, startingValue float64) risk.Health
	CheckRebalanceNeeded(holdings map[string]models.PortfolioHolding, totalValue float64) bool
}

type Gate interface {
	PortfolioCheck(h risk.Health)
	PreTradeCheck(ctx context.Context, action models.Action) error
	Halted() bool
}

type Executor interface {
	Execute(ctx context.Context, decision models.InvestmentDecision, token models.Token, size float64) models.TradeResult
}

// Deps are the collaborators of one agent. Social and Metrics are optional.
type Deps struct {
	Portfolio Portfolio
	Discovery Discoverer
	Sentiment SentimentAnalyzer
	Evaluator Evaluator
	Risk      RiskChecker
	Guardian  Gate
	Executor  Executor
	Social    notifications.Poster
	Metrics   *metrics.Metrics
}

type Options struct {
	CycleInterval    time.Duration
	ErrorBackoff     time.Duration
	HealthCheckEvery int
	// MaxTradeMON caps a single buy. Zero disables the cap.
	MaxTradeMON float64
	ReadOnly    bool
}

func DefaultOptions() Options {
	return Options{
		CycleInterval:    30 * time.Second,
		ErrorBackoff:     10 * time.Second,
		HealthCheckEvery: 10,
	}
}

type Agent struct {
	d    Deps
	opts Options
	log  zerolog.Logger

	mu          sync.Mutex
	running     bool
	cycles      uint64
	lastCycleAt time.Time
	lastErr     string
}

func NewAgent(d Deps, opts Options) *Agent {
	def := DefaultOptions()
	if opts.CycleInterval <= 0 {
		opts.CycleInterval = def.CycleInterval
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = def.ErrorBackoff
	}
	if opts.HealthCheckEvery <= 0 {
		opts.HealthCheckEvery = def.HealthCheckEvery
	}
	return &Agent{d: d, opts: opts, log: logging.Component("agent")}
}

// Run executes cycles until ctx is cancelled. A failed or panicking cycle
// is logged and followed by the error backoff instead of the normal interval.
func (a *Agent) Run(ctx context.Context) error {
	a.setRunning(true)
	defer a.setRunning(false)

	a.log.Info().Dur("interval", a.opts.CycleInterval).Bool("read_only", a.opts.ReadOnly).Msg("agent started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			a.log.Info().Msg("agent stopped")
			return nil
		case <-timer.C:
		}

		wait := a.opts.CycleInterval
		if err := a.safeCycle(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			a.log.Error().Err(err).Dur("backoff", a.opts.ErrorBackoff).Msg("cycle failed")
			wait = a.opts.ErrorBackoff
		}
		timer.Reset(wait)
	}
}

func (a *Agent) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
			a.log.Error().Str("stack", string(debug.Stack())).Msg("recovered from cycle panic")
			a.finishCycle(0, err)
		}
	}()
	return a.RunCycle(ctx)
}

// RunCycle performs one strictly sequential pass: sync, risk exits, health,
// discovery, then evaluation of each new token.
func (a *Agent) RunCycle(ctx context.Context) error {
	start := time.Now()
	id := uuid.NewString()[:8]
	lg := a.log.With().Str("cycle", id).Logger()
	ctx = logging.WithCycle(ctx, id)

	n := a.beginCycle()
	lg.Debug().Uint64("n", n).Msg("cycle started")

	if err := a.d.Portfolio.SyncWithWallet(ctx); err != nil {
		err = fmt.Errorf("sync portfolio: %w", err)
		a.finishCycle(time.Since(start), err)
		return err
	}

	a.exitPositions(ctx, lg)
	health := a.checkHealth(lg, n)

	tokens := a.d.Discovery.NewTokens(ctx)
	a.d.Metrics.Discovered(len(tokens))
	for _, tok := range tokens {
		if ctx.Err() != nil {
			break
		}
		a.consider(ctx, lg, tok)
	}

	lg.Info().Int("new_tokens", len(tokens)).Float64("total", a.d.Portfolio.TotalValue()).
		Float64("drawdown_pct", health.Drawdown).Dur("took", time.Since(start)).Msg("cycle complete")

	err := ctx.Err()
	a.finishCycle(time.Since(start), err)
	return err
}

// exitPositions sells every holding the risk manager flags. Sells run before
// any new buy in the same cycle.
func (a *Agent) exitPositions(ctx context.Context, lg zerolog.Logger) {
	for _, st := range a.d.Risk.CheckPositions(ctx, a.d.Portfolio.Holdings()) {
		if !st.ShouldClose {
			continue
		}
		tok := models.Token{Address: st.Address, Symbol: st.Holding.Symbol, Name: st.Holding.Name, Pool: st.Holding.Pool}
		decision := models.InvestmentDecision{Action: models.ActionSell, Confidence: exitConfidence, Reason: st.Reason}
		lg.Info().Str("symbol", tok.Symbol).Str("reason", st.Reason).Float64("pnl_pct", st.PnLPercent).
			Msg("closing position")
		a.trade(ctx, lg, tok, decision, st.Holding.Amount)
	}
}

// checkHealth feeds the drawdown check to the guardian every cycle and logs
// a status line every HealthCheckEvery cycles.
func (a *Agent) checkHealth(lg zerolog.Logger, n uint64) risk.Health {
	total := a.d.Portfolio.TotalValue()
	holdings := a.d.Portfolio.Holdings()
	h := a.d.Risk.CheckPortfolioHealth(total, a.d.Portfolio.StartingBalance())
	a.d.Guardian.PortfolioCheck(h)
	a.d.Metrics.Portfolio(total, len(holdings), h.Drawdown)

	if n%uint64(a.opts.HealthCheckEvery) == 0 {
		ev := lg.Info()
		if !h.Healthy {
			ev = lg.Warn()
		}
		ev.Float64("total", total).
			Float64("available", a.d.Portfolio.AvailableBalance()).
			Float64("drawdown_pct", h.Drawdown).
			Int("positions", len(holdings)).
			Bool("rebalance", a.d.Risk.CheckRebalanceNeeded(holdings, total)).
			Bool("halted", h.ShouldHalt).
			Msg("portfolio status")
	}
	return h
}

func (a *Agent) consider(ctx context.Context, lg zerolog.Logger, tok models.Token) {
	score := a.d.Sentiment.Analyze(ctx, tok)
	decision := a.d.Evaluator.Evaluate(tok, score)
	a.d.Metrics.Decision(string(decision.Action))

	tl := lg.With().Str("symbol", tok.Symbol).Str("token", tok.Address).Logger()
	tl.Info().Str("action", string(decision.Action)).Float64("confidence", decision.Confidence).
		Float64("sentiment", score).Str("reason", decision.Reason).Msg("decision")

	switch decision.Action {
	case models.ActionBuy:
		if !tok.Tradable() {
			tl.Info().Msg("no pool, buy skipped")
			return
		}
		size := a.d.Portfolio.CalculatePositionSize(decision.Confidence)
		if a.opts.MaxTradeMON > 0 && size > a.opts.MaxTradeMON {
			size = a.opts.MaxTradeMON
		}
		if size <= 0 {
			tl.Info().Msg("no balance to size a position, buy skipped")
			return
		}
		if avail := a.d.Portfolio.AvailableBalance(); size > avail {
			tl.Info().Float64("size", size).Float64("available", avail).Msg("insufficient balance, buy skipped")
			return
		}
		if err := a.d.Guardian.PreTradeCheck(ctx, models.ActionBuy); err != nil {
			a.d.Metrics.BuyBlocked()
			tl.Warn().Err(err).Msg("buy blocked")
			return
		}
		a.trade(ctx, tl, tok, decision, size)

	case models.ActionSell:
		h, ok := a.d.Portfolio.Holding(tok.Address)
		if !ok {
			tl.Debug().Msg("sell signal for token not held")
			return
		}
		if tok.Pool == "" {
			tok.Pool = h.Pool
		}
		if tok.Name == "" {
			tok.Name = h.Name
		}
		a.trade(ctx, tl, tok, decision, h.Amount)
	}
}

// trade executes and records a fill. Simulated fills carry no amount and
// leave the portfolio untouched.
func (a *Agent) trade(ctx context.Context, lg zerolog.Logger, tok models.Token, decision models.InvestmentDecision, size float64) {
	res := a.d.Executor.Execute(ctx, decision, tok, size)
	a.d.Metrics.Trade(string(decision.Action), res.Success)
	if !res.Success {
		lg.Warn().Str("symbol", tok.Symbol).Str("action", string(decision.Action)).
			Str("error", res.Error).Str("tx", res.TxHash).Msg("trade not filled")
		return
	}

	if res.Amount <= 0 {
		return
	}
	if err := a.d.Portfolio.Update(ctx, tok, decision.Action, res.Amount, res.Price, res.TxHash); err != nil {
		lg.Error().Err(err).Str("symbol", tok.Symbol).Str("tx", res.TxHash).Msg("recording trade failed")
	}
	if a.d.Social != nil {
		a.d.Social.PostTrade(tok, decision.Action, decision.Reason)
	}
}

func (a *Agent) beginCycle() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cycles++
	return a.cycles
}

func (a *Agent) finishCycle(took time.Duration, err error) {
	a.d.Metrics.CycleDone(took, err)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastCycleAt = time.Now()
	a.lastErr = ""
	if err != nil && !errors.Is(err, context.Canceled) {
		a.lastErr = err.Error()
	}
}

func (a *Agent) setRunning(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.running = v
}

// Status is a snapshot for the dashboard API.
func (a *Agent) Status(ctx context.Context) models.AgentStatus {
	a.mu.Lock()
	st := models.AgentStatus{
		Running:      a.running,
		ReadOnly:     a.opts.ReadOnly,
		Cycles:       a.cycles,
		LastCycleAt:  a.lastCycleAt,
		LastCycleErr: a.lastErr,
	}
	a.mu.Unlock()

	st.Halted = a.d.Guardian.Halted()
	st.SeenTokens = a.d.Discovery.SeenCount()
	st.OpenPositions = len(a.d.Portfolio.Holdings())
	if n, err := a.d.Portfolio.CountToday(ctx); err == nil {
		st.TradesToday = n
	}
	return st
}
