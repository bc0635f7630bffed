package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/kjannette/scout-backend/internal/logging"
	"github.com/kjannette/scout-backend/internal/models"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
)

var jsonBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*\\})\\s*```|(\\{.*\\})")

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// OpenAI asks an OpenAI-compatible chat completion endpoint for a score.
// Any failure yields Neutral.
type OpenAI struct {
	client *resty.Client
	model  string
	now    func() time.Time
	log    zerolog.Logger
}

func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	client.SetTimeout(30 * time.Second)
	client.SetAuthToken(apiKey)
	client.SetHeader("Content-Type", "application/json")

	return &OpenAI{
		client: client,
		model:  model,
		now:    time.Now,
		log:    logging.Component("sentiment"),
	}
}

func (o *OpenAI) Analyze(ctx context.Context, t models.Token) float64 {
	a, err := o.AnalyzeDetailed(ctx, t)
	if err != nil {
		o.log.Warn().Err(err).Str("symbol", t.Symbol).Msg("sentiment analysis failed, using neutral score")
		return Neutral
	}
	o.log.Info().Str("symbol", t.Symbol).Float64("score", a.Score).Str("reason", a.Reasoning).
		Msg("sentiment analyzed")
	return a.Score
}

func (o *OpenAI) AnalyzeDetailed(ctx context.Context, t models.Token) (Analysis, error) {
	var out chatResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model:       o.model,
			Messages:    []chatMessage{{Role: "user", Content: o.prompt(t)}},
			Temperature: 0.7,
			MaxTokens:   500,
		}).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return Analysis{}, fmt.Errorf("chat completion: %w", err)
	}
	if resp.IsError() {
		return Analysis{}, fmt.Errorf("chat completion: status %d", resp.StatusCode())
	}
	if len(out.Choices) == 0 {
		return Analysis{}, errors.New("chat completion: no choices")
	}
	return parseAnalysis(out.Choices[0].Message.Content)
}

// parseAnalysis extracts the JSON object from a reply that may wrap it in a
// markdown fence or surrounding prose.
func parseAnalysis(content string) (Analysis, error) {
	raw := content
	if m := jsonBlock.FindStringSubmatch(content); m != nil {
		if m[1] != "" {
			raw = m[1]
		} else {
			raw = m[2]
		}
	}

	var a Analysis
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return Analysis{}, fmt.Errorf("decode analysis: %w", err)
	}
	a.Score = clamp(a.Score)
	return a, nil
}

func (o *OpenAI) prompt(t models.Token) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a crypto market analyst. Analyze the following token and provide a sentiment score from 0-10.\n\n")
	fmt.Fprintf(&b, "Token: %s (%s)\nAddress: %s\n", t.Symbol, t.Name, t.Address)
	if t.Liquidity != nil {
		fmt.Fprintf(&b, "Liquidity: %.2f MON\n", *t.Liquidity)
	}
	if t.MarketCap != nil {
		fmt.Fprintf(&b, "Market Cap: %.2f MON\n", *t.MarketCap)
	}
	if t.HolderCount != nil {
		fmt.Fprintf(&b, "Holders: %d\n", *t.HolderCount)
	}
	if !t.LaunchTimestamp.IsZero() {
		fmt.Fprintf(&b, "Age: %d hours\n", int(o.now().Sub(t.LaunchTimestamp).Hours()))
	}
	b.WriteString(`
Provide your analysis in JSON format:
{
  "score": <number 0-10>,
  "confidence": <number 0-1>,
  "reasoning": "<brief explanation>",
  "indicators": {"hype": <0-10>, "momentum": <0-10>, "credibility": <0-10>, "risk": <0-10>}
}

Scoring guide:
- 0-2: Extremely bearish (likely rug, scam indicators)
- 3-4: Bearish (weak fundamentals, low engagement)
- 5-6: Neutral (uncertain, waiting for signals)
- 7-8: Bullish (strong potential, growing community)
- 9-10: Extremely bullish (viral momentum)`)
	return b.String()
}
