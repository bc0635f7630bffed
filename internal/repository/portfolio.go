package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kjannette/scout-backend/internal/models"
)

// PortfolioRepo stores the single portfolio document plus its trade history.
type PortfolioRepo struct {
	pool *pgxpool.Pool
}

func NewPortfolioRepo(pool *pgxpool.Pool) *PortfolioRepo {
	return &PortfolioRepo{pool: pool}
}

// Load returns the stored portfolio and trade history, oldest trade first.
// An empty database yields an empty portfolio.
func (r *PortfolioRepo) Load(ctx context.Context) (*models.Portfolio, []models.TradeRecord, error) {
	p := models.NewPortfolio()

	var (
		holdings []byte
		updated  time.Time
	)
	err := r.pool.QueryRow(ctx,
		`SELECT holdings, total_balance, starting_balance, updated_at
		 FROM portfolio_state WHERE id = 1`,
	).Scan(&holdings, &p.TotalBalance, &p.StartingBalance, &updated)
	if err != nil && !isNoRows(err) {
		return nil, nil, fmt.Errorf("load portfolio: %w", err)
	}
	if err == nil {
		if len(holdings) > 0 {
			if err := json.Unmarshal(holdings, &p.Holdings); err != nil {
				return nil, nil, fmt.Errorf("decode holdings: %w", err)
			}
		}
		if p.Holdings == nil {
			p.Holdings = make(map[string]models.PortfolioHolding)
		}
		p.UpdatedAt = updated
	}

	trades, err := loadTrades(ctx, r.pool)
	if err != nil {
		return nil, nil, err
	}
	return p, trades, nil
}

// Save replaces the stored document and trade history in one transaction.
func (r *PortfolioRepo) Save(ctx context.Context, p *models.Portfolio, trades []models.TradeRecord) error {
	holdings, err := json.Marshal(p.Holdings)
	if err != nil {
		return fmt.Errorf("encode holdings: %w", err)
	}

	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO portfolio_state (id, holdings, total_balance, starting_balance, updated_at)
			 VALUES (1, $1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE SET
			   holdings = EXCLUDED.holdings,
			   total_balance = EXCLUDED.total_balance,
			   starting_balance = EXCLUDED.starting_balance,
			   updated_at = EXCLUDED.updated_at`,
			holdings, p.TotalBalance, p.StartingBalance, updated,
		)
		if err != nil {
			return fmt.Errorf("upsert portfolio: %w", err)
		}
		return replaceTrades(ctx, tx, trades)
	})
}

// CountToday counts trades recorded since midnight UTC.
func (r *PortfolioRepo) CountToday(ctx context.Context) (int, error) {
	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM trade_history WHERE timestamp >= $1`, midnight,
	).Scan(&n)
	return n, err
}
