package risk

import (
	"context"
	"fmt"
	"sync"

	"github.com/kjannette/scout-backend/internal/models"
)

// DailyTradeCounter abstracts the trade-counting dependency so Guardian
// can be tested without a real store.
type DailyTradeCounter interface {
	CountToday(ctx context.Context) (int, error)
}

// Limits holds the pre-trade thresholds from config.
// A zero value for any field means that check is disabled.
type Limits struct {
	MaxDailyTrades int
}

// Guardian gates new buys. Sells always pass so exits are never blocked.
type Guardian struct {
	limits  Limits
	counter DailyTradeCounter

	mu       sync.RWMutex
	halted   bool
	drawdown float64
}

func NewGuardian(limits Limits, counter DailyTradeCounter) *Guardian {
	return &Guardian{limits: limits, counter: counter}
}

// PortfolioCheck records the latest health result. While it signals a halt,
// buys are refused.
func (g *Guardian) PortfolioCheck(h Health) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.halted = h.ShouldHalt
	g.drawdown = h.Drawdown
}

func (g *Guardian) Halted() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.halted
}

// PreTradeCheck validates per-trade constraints before execution.
// Returns nil if the trade is allowed, a descriptive error if blocked.
func (g *Guardian) PreTradeCheck(ctx context.Context, action models.Action) error {
	if action != models.ActionBuy {
		return nil
	}

	g.mu.RLock()
	halted, dd := g.halted, g.drawdown
	g.mu.RUnlock()
	if halted {
		return fmt.Errorf("trade blocked: trading halted at %.1f%% drawdown", dd)
	}

	if g.limits.MaxDailyTrades > 0 && g.counter != nil {
		count, err := g.counter.CountToday(ctx)
		if err != nil {
			return fmt.Errorf("trade blocked: unable to verify daily trade count: %w", err)
		}
		if count >= g.limits.MaxDailyTrades {
			return fmt.Errorf("trade blocked: daily limit of %d trades reached (%d executed today)",
				g.limits.MaxDailyTrades, count)
		}
	}

	return nil
}
