package bot

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kjannette/scout-backend/internal/logging"
	"github.com/kjannette/scout-backend/internal/models"
)

// Service owns the lifecycle of one agent run loop.
type Service struct {
	agent *Agent
	log   zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewService(agent *Agent) *Service {
	return &Service{agent: agent, log: logging.Component("agent")}
}

// Start launches the run loop. Starting a running service is a no-op.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.log.Warn().Msg("agent already running")
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done

	go func() {
		defer close(done)
		if err := s.agent.Run(runCtx); err != nil {
			s.log.Error().Err(err).Msg("run loop exited")
		}
	}()
}

// Stop cancels the run loop and waits for the current cycle to return.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Service) Running() bool {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

func (s *Service) Status(ctx context.Context) models.AgentStatus {
	return s.agent.Status(ctx)
}
