// Package sentiment produces the 0-10 sentiment score the evaluator weighs.
package sentiment

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/kjannette/scout-backend/internal/models"
)

// Neutral is returned whenever a score cannot be produced.
const Neutral = 5.0

type Indicators struct {
	Hype        float64 `json:"hype"`
	Momentum    float64 `json:"momentum"`
	Credibility float64 `json:"credibility"`
	Risk        float64 `json:"risk"`
}

type Analysis struct {
	Score      float64    `json:"score"`
	Confidence float64    `json:"confidence"`
	Reasoning  string     `json:"reasoning"`
	Indicators Indicators `json:"indicators"`
}

// Fixed always returns the same score.
type Fixed float64

func (f Fixed) Analyze(context.Context, models.Token) float64 { return float64(f) }

// Heuristic scores a token from its name and on-chain numbers alone.
type Heuristic struct{}

func (Heuristic) Analyze(_ context.Context, t models.Token) float64 {
	return HeuristicAnalysis(t).Score
}

func HeuristicAnalysis(t models.Token) Analysis {
	ind := Indicators{Hype: 5, Momentum: 5, Credibility: 5, Risk: 5}

	sym := strings.ToLower(t.Symbol)
	if strings.Contains(sym, "moon") || strings.Contains(sym, "safe") ||
		strings.Contains(strings.ToLower(t.Name), "inu") {
		ind.Risk += 2
		ind.Hype += 3
	}
	if t.Liquidity != nil && *t.Liquidity > 10_000 {
		ind.Credibility += 2
		ind.Risk--
	}
	if t.MarketCap != nil && *t.MarketCap > 0 && *t.MarketCap < 50_000 {
		ind.Risk++
		ind.Hype += 2
	}

	score := ind.Hype*0.3 + ind.Momentum*0.3 + ind.Credibility*0.2 + (10-ind.Risk)*0.2
	return Analysis{
		Score:      round1(clamp(score)),
		Confidence: 0.6,
		Reasoning: fmt.Sprintf("Hype level %.1f, momentum %.1f, risk %.1f",
			ind.Hype, ind.Momentum, ind.Risk),
		Indicators: ind,
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return Neutral
	}
	return math.Max(0, math.Min(10, v))
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
