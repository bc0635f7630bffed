package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/kjannette/scout-backend/internal/chain"
	"github.com/kjannette/scout-backend/internal/config"
	"github.com/kjannette/scout-backend/internal/db"
	"github.com/kjannette/scout-backend/internal/discovery"
	"github.com/kjannette/scout-backend/internal/metrics"
	"github.com/kjannette/scout-backend/internal/portfolio"
	"github.com/kjannette/scout-backend/internal/repository"
	"github.com/kjannette/scout-backend/internal/repository/memory"
	"github.com/kjannette/scout-backend/internal/risk"
)

// stores are the persistence backends selected by STORAGE_BACKEND.
type stores struct {
	pool      *pgxpool.Pool
	portfolio portfolio.Store
	seen      discovery.SeenStore
}

func (s *stores) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.StorageBackend == "memory" {
		return &stores{
			portfolio: memory.NewPortfolioStore(),
			seen:      memory.NewSeenStore(),
		}, nil
	}

	log.Info().Str("component", "db").Str("host", cfg.DBHost).Int("port", cfg.DBPort).
		Str("name", cfg.DBName).Msg("connecting")
	pool, err := db.Connect(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.TestConnection(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &stores{
		pool:      pool,
		portfolio: repository.NewPortfolioRepo(pool),
		seen:      repository.NewSeenTokenRepo(pool),
	}, nil
}

// chainConn is the RPC client plus the gateway built over it.
type chainConn struct {
	client  *chain.Client
	gateway *chain.Gateway
}

func (c *chainConn) Close() { c.client.Close() }

// dialChain fails when the endpoint cannot be reached; the caller treats
// that as fatal.
func dialChain(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*chainConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := chain.NewClient(dialCtx, chain.ClientOptions{
		RPCURL:         cfg.RPCURL,
		PrivateKey:     cfg.PrivateKey,
		WalletAddress:  cfg.WalletAddress,
		ChainID:        int64(cfg.ChainID),
		GasLimit:       cfg.GasLimit,
		GasMultiplier:  cfg.GasMultiplier,
		ConfirmTimeout: cfg.ConfirmTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connect chain: %w", err)
	}
	client.SetLatencyObserver(m.ObserveRPC)

	gw, err := chain.NewGateway(client, chain.GatewayOptions{
		Router:      cfg.RouterAddress,
		Lens:        cfg.LensAddress,
		Curve:       cfg.CurveAddress,
		ChunkBlocks: uint64(cfg.ScanChunkBlocks),
		WindowBlock: uint64(cfg.ScanWindowBlocks),
		TxDeadline:  cfg.TxDeadline,
		ExplorerURL: cfg.ExplorerURL,
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("build gateway: %w", err)
	}
	gw.OnChunkError(m.ChunkFailed)

	return &chainConn{client: client, gateway: gw}, nil
}

func riskPolicy(cfg *config.Config) risk.Policy {
	return risk.Policy{
		StopLossPercent:         cfg.StopLossPercent,
		TakeProfitPercent:       cfg.TakeProfitPercent,
		MaxPositionAge:          time.Duration(cfg.MaxPositionAgeHours * float64(time.Hour)),
		MaxDrawdownPercent:      cfg.MaxDrawdownPercent,
		MaxPositionSharePercent: cfg.MaxPositionSharePercent,
	}
}
