package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SeenTokenRepo records token addresses the bot has already considered.
// Addresses are stored lowercased.
type SeenTokenRepo struct {
	pool *pgxpool.Pool
}

func NewSeenTokenRepo(pool *pgxpool.Pool) *SeenTokenRepo {
	return &SeenTokenRepo{pool: pool}
}

func (r *SeenTokenRepo) LoadSeen(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT address FROM seen_tokens`)
	if err != nil {
		return nil, fmt.Errorf("load seen tokens: %w", err)
	}
	defer rows.Close()

	addrs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan seen tokens: %w", err)
	}
	return addrs, nil
}

func (r *SeenTokenRepo) MarkSeen(ctx context.Context, addrs ...string) error {
	if len(addrs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, a := range addrs {
		batch.Queue(`INSERT INTO seen_tokens (address) VALUES ($1) ON CONFLICT (address) DO NOTHING`,
			strings.ToLower(a))
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}
