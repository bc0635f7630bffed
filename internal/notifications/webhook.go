// Package notifications delivers bot messages to a Slack or Discord webhook.
package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kjannette/scout-backend/internal/httputil"
	"github.com/kjannette/scout-backend/internal/logging"
)

const DefaultBotName = "SovereignScout"

type Sender struct {
	webhookURL string
	botName    string
	httpClient *http.Client
	retry      httputil.RetryConfig
	log        zerolog.Logger

	wg sync.WaitGroup
}

func NewSender(webhookURL, botName string) *Sender {
	if botName == "" {
		botName = DefaultBotName
	}
	return &Sender{
		webhookURL: webhookURL,
		botName:    botName,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    5 * time.Second,
		},
		log: logging.Component("notify"),
	}
}

func (s *Sender) Enabled() bool {
	return s.webhookURL != ""
}

// Send logs msg and posts it to the webhook when one is configured.
func (s *Sender) Send(ctx context.Context, msg string) error {
	formatted := fmt.Sprintf("[%s] %s", s.botName, msg)
	s.log.Info().Str("message", msg).Msg("notification")

	if !s.Enabled() {
		return nil
	}

	body, err := json.Marshal(s.formatPayload(formatted))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := httputil.Do(ctx, s.httpClient, s.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("send notification: webhook returned %d", resp.StatusCode)
	}
	return nil
}

// SendAsync delivers msg in the background. Failures are logged only.
func (s *Sender) SendAsync(msg string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.Send(ctx, msg); err != nil {
			s.log.Warn().Err(err).Msg("notification failed")
		}
	}()
}

// Wait blocks until all background deliveries finish.
func (s *Sender) Wait() {
	s.wg.Wait()
}

func (s *Sender) formatPayload(msg string) map[string]string {
	if strings.Contains(s.webhookURL, "discord") {
		return map[string]string{
			"content":  msg,
			"username": s.botName,
		}
	}
	return map[string]string{
		"text":     fmt.Sprintf("`%s`", msg),
		"username": s.botName,
	}
}
