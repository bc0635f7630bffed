package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kjannette/scout-backend/internal/models"
)

var tradeColumns = []string{
	"timestamp", "action", "symbol", "address", "amount", "price", "tx_hash", "pool",
}

func loadTrades(ctx context.Context, pool *pgxpool.Pool) ([]models.TradeRecord, error) {
	rows, err := pool.Query(ctx,
		`SELECT timestamp, action, symbol, address, amount, price,
		        COALESCE(tx_hash, ''), COALESCE(pool, '')
		 FROM trade_history ORDER BY seq ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}
	defer rows.Close()

	var out []models.TradeRecord
	for rows.Next() {
		var t models.TradeRecord
		var action string
		if err := rows.Scan(&t.Timestamp, &action, &t.Symbol, &t.Address,
			&t.Amount, &t.Price, &t.TxHash, &t.Pool); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Action = models.Action(action)
		out = append(out, t)
	}
	return out, rows.Err()
}

// replaceTrades rewrites the history table. The list is already capped in
// memory, so a full rewrite stays small.
func replaceTrades(ctx context.Context, tx pgx.Tx, trades []models.TradeRecord) error {
	if _, err := tx.Exec(ctx, `DELETE FROM trade_history`); err != nil {
		return fmt.Errorf("clear trades: %w", err)
	}
	if len(trades) == 0 {
		return nil
	}

	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"trade_history"},
		tradeColumns,
		pgx.CopyFromSlice(len(trades), func(i int) ([]any, error) {
			t := trades[i]
			return []any{
				t.Timestamp, string(t.Action), t.Symbol, t.Address,
				t.Amount, t.Price, nullable(t.TxHash), nullable(t.Pool),
			}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy trades: %w", err)
	}
	return nil
}
