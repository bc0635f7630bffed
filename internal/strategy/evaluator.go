// Package strategy scores discovered tokens and turns the score into a
// BUY, SELL or HOLD decision.
package strategy

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kjannette/scout-backend/internal/logging"
	"github.com/kjannette/scout-backend/internal/models"
)

const (
	neutralFactor = 5.0
	baseRisk      = 5.0
	maxRisk       = 10.0

	weightSentiment = 0.40
	weightLiquidity = 0.25
	weightMarketCap = 0.20
	weightAge       = 0.15
)

// Name fragments typical of copycat launches.
var riskyWords = []string{"safe", "moon", "elon", "doge", "shib"}

// Factors holds the 0-10 sub-scores behind a decision.
type Factors struct {
	Sentiment float64 `json:"sentiment"`
	Liquidity float64 `json:"liquidity"`
	MarketCap float64 `json:"marketCap"`
	Age       float64 `json:"age"`
}

// Score is the weighted sum of the factors, rounded to one decimal.
func (f Factors) Score() float64 {
	return round(f.Sentiment*weightSentiment+
		f.Liquidity*weightLiquidity+
		f.MarketCap*weightMarketCap+
		f.Age*weightAge, 1)
}

type Evaluator struct {
	now func() time.Time
	log zerolog.Logger
}

func NewEvaluator() *Evaluator {
	return &Evaluator{now: time.Now, log: logging.Component("evaluator")}
}

// WithClock replaces the clock used for token age.
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	e.now = now
	return e
}

// Evaluate is deterministic for a fixed token, sentiment and clock.
func (e *Evaluator) Evaluate(token models.Token, sentiment float64) models.InvestmentDecision {
	f := e.Factors(token, sentiment)
	score := f.Score()
	risk := AssessRisk(token, f)
	d := Decide(score, risk)

	e.log.Debug().
		Str("symbol", token.Symbol).
		Float64("sentiment", f.Sentiment).
		Float64("liquidity", f.Liquidity).
		Float64("market_cap", f.MarketCap).
		Float64("age", f.Age).
		Float64("score", score).
		Float64("risk", risk).
		Str("action", string(d.Action)).
		Msg("token evaluated")
	return d
}

func (e *Evaluator) Factors(token models.Token, sentiment float64) Factors {
	f := Factors{
		Sentiment: sentiment,
		Liquidity: neutralFactor,
		MarketCap: neutralFactor,
		Age:       neutralFactor,
	}
	if token.Liquidity != nil {
		f.Liquidity = LiquidityScore(*token.Liquidity)
	}
	if token.MarketCap != nil {
		f.MarketCap = MarketCapScore(*token.MarketCap)
	}
	if !token.LaunchTimestamp.IsZero() {
		f.Age = AgeScore(e.now().Sub(token.LaunchTimestamp))
	}
	return f
}

func LiquidityScore(liquidity float64) float64 {
	switch {
	case liquidity >= 50_000:
		return 9
	case liquidity >= 20_000:
		return 7.5
	case liquidity >= 10_000:
		return 6
	case liquidity >= 5_000:
		return 4
	default:
		return 2
	}
}

// MarketCapScore favors small caps: early entries have the most room.
func MarketCapScore(marketCap float64) float64 {
	switch {
	case marketCap < 10_000:
		return 9
	case marketCap < 50_000:
		return 7.5
	case marketCap < 100_000:
		return 6
	case marketCap < 500_000:
		return 4
	default:
		return 2
	}
}

func AgeScore(age time.Duration) float64 {
	switch {
	case age < time.Hour:
		return 9
	case age < 6*time.Hour:
		return 7.5
	case age < 24*time.Hour:
		return 6
	case age < 72*time.Hour:
		return 4
	default:
		return 2
	}
}

// AssessRisk starts from a base of 5 and adds penalties, capped at 10.
func AssessRisk(token models.Token, f Factors) float64 {
	risk := baseRisk
	if f.Liquidity < 4 {
		risk += 2
	}
	if token.MarketCap != nil && *token.MarketCap < 5_000 {
		risk += 1.5
	}
	if f.Age > 8 {
		risk += 1
	}
	if token.HolderCount != nil && *token.HolderCount < 10 {
		risk += 2
	}
	if hasRiskyWord(token.Name) || hasRiskyWord(token.Symbol) {
		risk += 1
	}
	return math.Min(maxRisk, round(risk, 1))
}

func hasRiskyWord(s string) bool {
	s = strings.ToLower(s)
	for _, w := range riskyWords {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// Decide applies the thresholds in order; the first match wins.
func Decide(score, risk float64) models.InvestmentDecision {
	detail := fmt.Sprintf("(score: %.1f, risk: %.1f)", score, risk)
	switch {
	case score >= 8.0 && risk <= 6.0:
		return models.InvestmentDecision{
			Action:     models.ActionBuy,
			Confidence: Confidence(score, risk),
			Reason:     "Strong signal " + detail,
		}
	case score >= 7.5 && risk <= 5.0:
		return models.InvestmentDecision{
			Action:     models.ActionBuy,
			Confidence: Confidence(score, risk),
			Reason:     "Moderate signal " + detail,
		}
	case score <= 3.0 || risk > maxRisk:
		return models.InvestmentDecision{
			Action:     models.ActionSell,
			Confidence: 0.8,
			Reason:     "High risk or negative signal " + detail,
		}
	default:
		return models.InvestmentDecision{
			Action:     models.ActionHold,
			Confidence: 0.5,
			Reason:     "Neutral signal " + detail,
		}
	}
}

// Confidence is score/10 - risk/20 clamped to [0.1, 0.95].
func Confidence(score, risk float64) float64 {
	c := score/10 - risk/20
	c = math.Max(0.1, math.Min(0.95, c))
	return round(c, 2)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
