package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kjannette/scout-backend/internal/api"
	"github.com/kjannette/scout-backend/internal/bot"
	"github.com/kjannette/scout-backend/internal/config"
	"github.com/kjannette/scout-backend/internal/discovery"
	"github.com/kjannette/scout-backend/internal/metrics"
	"github.com/kjannette/scout-backend/internal/notifications"
	"github.com/kjannette/scout-backend/internal/portfolio"
	"github.com/kjannette/scout-backend/internal/risk"
	"github.com/kjannette/scout-backend/internal/scheduler"
	"github.com/kjannette/scout-backend/internal/sentiment"
	"github.com/kjannette/scout-backend/internal/strategy"
	"github.com/kjannette/scout-backend/internal/trading"
)

const banner = `
╔══════════════════════════════════════╗
║     Sovereign Scout Agent v0.3       ║
║     Monad launch-token trader        ║
╚══════════════════════════════════════╝
`

func newRunCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the trading agent, REST API and status reporter",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), banner)
			cfg.Print()
			return runAgent(cmd.Context(), cfg)
		},
	}
}

func runAgent(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	cc, err := dialChain(ctx, cfg, m)
	if err != nil {
		return err
	}
	defer cc.Close()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	pm := portfolio.NewManager(st.portfolio, cc.gateway, portfolio.Options{StartingBalance: cfg.StartingBalance})
	if err := pm.Load(ctx); err != nil {
		return err
	}

	disc := discovery.New(cc.gateway, st.seen, discovery.Options{
		BatchSize: cfg.DiscoveryBatchSize,
		Enrich:    cfg.EnrichTokens,
	})
	if err := disc.Warm(ctx); err != nil {
		log.Warn().Err(err).Msg("seen-token warm-up failed, starting with an empty set")
	}

	var analyzer bot.SentimentAnalyzer = sentiment.Heuristic{}
	if cfg.OpenAIAPIKey != "" {
		analyzer = sentiment.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	}

	riskMgr := risk.NewManager(cc.gateway, riskPolicy(cfg))
	sender := notifications.NewSender(cfg.WebhookURL, cfg.BotName)

	agent := bot.NewAgent(bot.Deps{
		Portfolio: pm,
		Discovery: disc,
		Sentiment: analyzer,
		Evaluator: strategy.NewEvaluator(),
		Risk:      riskMgr,
		Guardian:  risk.NewGuardian(risk.Limits{MaxDailyTrades: cfg.MaxDailyTrades}, pm),
		Executor:  trading.NewExecutor(cc.gateway),
		Social:    notifications.NewSocialPoster(sender, cfg.SocialPostsEnabled),
		Metrics:   m,
	}, bot.Options{
		CycleInterval:    cfg.CycleInterval,
		ErrorBackoff:     cfg.ErrorBackoff,
		HealthCheckEvery: cfg.HealthCheckEveryCycles,
		MaxTradeMON:      cfg.MaxTradeMON,
		ReadOnly:         cfg.ReadOnly(),
	})
	svc := bot.NewService(agent)

	var pinger api.Pinger
	if st.pool != nil {
		pinger = st.pool
	}
	srv := api.NewServer(pm, svc, pinger, api.Options{
		Port:       cfg.APIPort,
		APIKey:     cfg.APIKey,
		CORSOrigin: cfg.CORSAllowOrigin,
		Metrics:    m.Handler(),
	})

	var reporter *scheduler.StatusReporter
	if sender.Enabled() {
		reporter = scheduler.NewStatusReporter(cc.gateway, pm, riskMgr, sender, cfg.StatusReportInterval)
		if err := reporter.Start(); err != nil {
			return err
		}
	} else {
		log.Info().Str("component", "scheduler").Msg("no WEBHOOK_URL, status reporter disabled")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		svc.Start(gctx)
		<-gctx.Done()
		svc.Stop()
		return nil
	})

	if reporter != nil {
		g.Go(func() error {
			<-gctx.Done()
			reporter.Stop()
			return nil
		})
	}

	mode := "live trading"
	if cfg.ReadOnly() {
		mode = "read-only"
	}
	sender.SendAsync(fmt.Sprintf("Scout agent starting on %s (%s)", cfg.Network, mode))
	log.Info().Msg("all services started")

	err = g.Wait()
	sender.Wait()
	log.Info().Msg("shutdown complete")
	return err
}
