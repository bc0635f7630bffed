package strategy

import (
	"strings"
	"testing"
	"time"

	"github.com/kjannette/scout-backend/internal/models"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func newTestEvaluator() *Evaluator {
	return NewEvaluator().WithClock(func() time.Time { return fixedNow })
}

func TestEvaluate_FreshMicroCap(t *testing.T) {
	tok := models.Token{
		Address:         "0x01",
		Symbol:          "FRSH",
		Name:            "Fresh Launch",
		Liquidity:       ptr(60_000.0),
		MarketCap:       ptr(8_000.0),
		LaunchTimestamp: fixedNow.Add(-30 * time.Minute),
	}

	e := newTestEvaluator()
	f := e.Factors(tok, 9)
	if f != (Factors{Sentiment: 9, Liquidity: 9, MarketCap: 9, Age: 9}) {
		t.Fatalf("unexpected factors: %+v", f)
	}
	if f.Score() != 9.0 {
		t.Fatalf("expected score 9.0, got %.2f", f.Score())
	}

	// age under an hour carries the freshness penalty
	if r := AssessRisk(tok, f); r != 6.0 {
		t.Fatalf("expected risk 6.0, got %.2f", r)
	}

	d := e.Evaluate(tok, 9)
	if d.Action != models.ActionBuy {
		t.Fatalf("expected BUY, got %s", d.Action)
	}
	if d.Confidence != 0.6 {
		t.Fatalf("expected confidence 0.6, got %.2f", d.Confidence)
	}
	if !strings.HasPrefix(d.Reason, "Strong signal (score: 9.0, risk: 6.0)") {
		t.Fatalf("unexpected reason %q", d.Reason)
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	tok := models.Token{Symbol: "SAME", Name: "Same", Liquidity: ptr(12_000.0)}
	e := newTestEvaluator()
	first := e.Evaluate(tok, 6.5)
	for i := 0; i < 20; i++ {
		if got := e.Evaluate(tok, 6.5); got != first {
			t.Fatalf("run %d differs: %+v vs %+v", i, got, first)
		}
	}
}

func TestEvaluate_MissingFieldsAreNeutral(t *testing.T) {
	f := newTestEvaluator().Factors(models.Token{Symbol: "X", Name: "X"}, 7)
	if f.Liquidity != 5 || f.MarketCap != 5 || f.Age != 5 {
		t.Fatalf("expected neutral factors, got %+v", f)
	}
}

func TestEvaluate_ScoreBoundaries(t *testing.T) {
	e := newTestEvaluator()

	// 8*0.4 + 9*0.25 + 9*0.2 + 5*0.15 = 8.0, risky name puts risk at 6.0
	strong := models.Token{Symbol: "MCAT", Name: "Moon Cat", Liquidity: ptr(50_000.0), MarketCap: ptr(7_000.0)}
	d := e.Evaluate(strong, 8)
	if d.Action != models.ActionBuy || !strings.HasPrefix(d.Reason, "Strong signal") {
		t.Fatalf("score 8.0 risk 6.0: expected strong BUY, got %s %q", d.Action, d.Reason)
	}

	// 7.75*0.4 pulls the total down to 7.9 with the same risk
	d = e.Evaluate(strong, 7.75)
	if d.Action != models.ActionHold {
		t.Fatalf("score 7.9 risk 6.0: expected HOLD, got %s %q", d.Action, d.Reason)
	}

	// 4.5*0.4 + 2*0.25 + 2*0.2 + 2*0.15 = 3.0
	weak := models.Token{
		Symbol:          "OLD",
		Name:            "Old Coin",
		Liquidity:       ptr(1_000.0),
		MarketCap:       ptr(900_000.0),
		LaunchTimestamp: fixedNow.Add(-100 * time.Hour),
	}
	d = e.Evaluate(weak, 4.5)
	if d.Action != models.ActionSell {
		t.Fatalf("score 3.0: expected SELL, got %s %q", d.Action, d.Reason)
	}
	if d.Confidence != 0.8 {
		t.Fatalf("expected SELL confidence 0.8, got %.2f", d.Confidence)
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name   string
		score  float64
		risk   float64
		action models.Action
		prefix string
	}{
		{"strong at both limits", 8.0, 6.0, models.ActionBuy, "Strong signal"},
		{"strong risk too high", 8.0, 6.1, models.ActionHold, "Neutral signal"},
		{"just under strong", 7.9, 6.0, models.ActionHold, "Neutral signal"},
		{"moderate at limits", 7.5, 5.0, models.ActionBuy, "Moderate signal"},
		{"moderate risk too high", 7.5, 5.1, models.ActionHold, "Neutral signal"},
		{"high score low risk is strong", 9.5, 2.0, models.ActionBuy, "Strong signal"},
		{"score exactly 3", 3.0, 5.0, models.ActionSell, "High risk or negative signal"},
		{"score just above 3", 3.01, 10.0, models.ActionHold, "Neutral signal"},
		{"zero score", 0, 0, models.ActionSell, "High risk or negative signal"},
		{"middling", 5.5, 5.5, models.ActionHold, "Neutral signal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.score, tt.risk)
			if d.Action != tt.action {
				t.Fatalf("Decide(%.2f, %.2f) = %s, want %s", tt.score, tt.risk, d.Action, tt.action)
			}
			if !strings.HasPrefix(d.Reason, tt.prefix) {
				t.Fatalf("reason %q does not start with %q", d.Reason, tt.prefix)
			}
		})
	}
}

func TestAssessRisk_Penalties(t *testing.T) {
	f := Factors{Sentiment: 5, Liquidity: 2, MarketCap: 9, Age: 9}
	tok := models.Token{
		Symbol:      "SHIB2",
		Name:        "Safe Doge",
		MarketCap:   ptr(1_000.0),
		HolderCount: ptr(3),
	}
	// 5 + 2 + 1.5 + 1 + 2 + 1 = 12.5, capped
	if r := AssessRisk(tok, f); r != 10 {
		t.Fatalf("expected capped risk 10, got %.2f", r)
	}

	clean := models.Token{Symbol: "ABC", Name: "Alpha", HolderCount: ptr(50)}
	if r := AssessRisk(clean, Factors{Liquidity: 6, Age: 6}); r != 5 {
		t.Fatalf("expected base risk 5, got %.2f", r)
	}

	lowCap := models.Token{Symbol: "ABC", Name: "Alpha", MarketCap: ptr(4_999.0)}
	if r := AssessRisk(lowCap, Factors{Liquidity: 6, Age: 6}); r != 6.5 {
		t.Fatalf("expected 6.5 for sub-5k cap, got %.2f", r)
	}
}

func TestConfidenceClamp(t *testing.T) {
	if c := Confidence(10, 0); c != 0.95 {
		t.Fatalf("expected upper clamp 0.95, got %.2f", c)
	}
	if c := Confidence(2, 10); c != 0.1 {
		t.Fatalf("expected lower clamp 0.1, got %.2f", c)
	}
	if c := Confidence(8.0, 5.0); c != 0.55 {
		t.Fatalf("expected 0.55, got %.2f", c)
	}
}

func TestFactorBuckets(t *testing.T) {
	liq := map[float64]float64{50_000: 9, 49_999: 7.5, 20_000: 7.5, 10_000: 6, 5_000: 4, 4_999: 2}
	for in, want := range liq {
		if got := LiquidityScore(in); got != want {
			t.Fatalf("LiquidityScore(%.0f) = %.1f, want %.1f", in, got, want)
		}
	}
	mc := map[float64]float64{9_999: 9, 10_000: 7.5, 50_000: 6, 100_000: 4, 500_000: 2}
	for in, want := range mc {
		if got := MarketCapScore(in); got != want {
			t.Fatalf("MarketCapScore(%.0f) = %.1f, want %.1f", in, got, want)
		}
	}
	age := map[time.Duration]float64{
		59 * time.Minute: 9,
		time.Hour:        7.5,
		6 * time.Hour:    6,
		24 * time.Hour:   4,
		72 * time.Hour:   2,
	}
	for in, want := range age {
		if got := AgeScore(in); got != want {
			t.Fatalf("AgeScore(%s) = %.1f, want %.1f", in, got, want)
		}
	}
}
