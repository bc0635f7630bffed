package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kjannette/scout-backend/internal/chain"
	"github.com/kjannette/scout-backend/internal/config"
	"github.com/kjannette/scout-backend/internal/portfolio"
)

func newPortfolioCmd(cfg *config.Config) *cobra.Command {
	var trades int
	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Show the persisted portfolio and recent trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStores(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			// read-only view: no chain access needed
			pm := portfolio.NewManager(st.portfolio, nil, portfolio.Options{})
			if err := pm.Load(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderPortfolio(pm.Snapshot(), pm.RecentTrades(trades), now()))
			return nil
		},
	}
	cmd.Flags().IntVar(&trades, "trades", 10, "Number of recent trades to show")
	return cmd
}

func newReconcileCmd(cfg *config.Config) *cobra.Command {
	var prune bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile holdings against on-chain balances",
		Long: `Checks every token in the trade history against its on-chain balance,
recreating missing holdings and correcting drifted amounts. Holdings whose
balance reads zero are reported but kept unless --prune is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cc, err := dialChain(ctx, cfg, nil)
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
			out, err := reconcile(ctx, pm, prune)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&prune, "prune", false, "Remove holdings whose on-chain balance is zero")
	return cmd
}

func reconcile(ctx context.Context, pm *portfolio.Manager, prune bool) (string, error) {
	if err := pm.Load(ctx); err != nil {
		return "", err
	}
	rep, err := pm.Reconcile(ctx)
	if err != nil {
		return "", fmt.Errorf("reconcile: %w", err)
	}
	var pruned []string
	if prune {
		if pruned, err = pm.PruneEmptyHoldings(ctx); err != nil {
			return "", fmt.Errorf("prune: %w", err)
		}
	}
	if err := pm.SyncWithWallet(ctx); err != nil {
		return "", fmt.Errorf("sync: %w", err)
	}
	return renderReconcile(rep, pruned, prune, pm.TotalValue()), nil
}

// balanceReader is the subset of the gateway the balance command needs.
type balanceReader interface {
	WalletAddress() (string, bool)
	WalletBalance(ctx context.Context) (float64, error)
	TokenBalance(ctx context.Context, token, owner string) float64
	TokenPrice(ctx context.Context, token string) float64
}

func newBalanceCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show wallet and held token balances",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cc, err := dialChain(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer cc.Close()

			st, err := openStores(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			pm := portfolio.NewManager(st.portfolio, cc.gateway, portfolio.Options{})
			if err := pm.Load(ctx); err != nil {
				return err
			}
			out, err := balances(ctx, cc.gateway, pm)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func balances(ctx context.Context, gw balanceReader, pm *portfolio.Manager) (string, error) {
	addr, ok := gw.WalletAddress()
	if !ok {
		return "", chain.ErrNoWallet
	}
	native, err := gw.WalletBalance(ctx)
	if err != nil {
		return "", fmt.Errorf("wallet balance: %w", err)
	}

	var rows []balanceRow
	for _, token := range sortedAddresses(pm.Holdings()) {
		h, _ := pm.Holding(token)
		rows = append(rows, balanceRow{
			Token:    token,
			Symbol:   h.Symbol,
			Recorded: h.Amount,
			OnChain:  gw.TokenBalance(ctx, token, addr),
			Price:    gw.TokenPrice(ctx, token),
		})
	}
	return renderBalances(addr, native, rows), nil
}

func newScanCmd(cfg *config.Config) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List recent token launches from the curve factory",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cc, err := dialChain(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer cc.Close()

			failed := 0
			cc.gateway.OnChunkError(func(_, _ uint64, _ error) { failed++ })

			events := cc.gateway.CreationEvents(ctx, limit)
			fmt.Fprintln(cmd.OutOrStdout(), renderEvents(events, cc.gateway.ExplorerURL))
			if failed > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), warnStyle.Render(fmt.Sprintf("%d block ranges failed and were skipped", failed)))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of launches to list")
	return cmd
}
