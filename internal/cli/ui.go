package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/kjannette/scout-backend/internal/models"
	"github.com/kjannette/scout-backend/internal/portfolio"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	valueStyle = lipgloss.NewStyle().
			Bold(true)

	gainStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))

	lossStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#374151"))
)

var now = time.Now

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func kv(label string, value string) string {
	return labelStyle.Render(label+":") + " " + valueStyle.Render(value)
}

func signed(v float64, format string) string {
	s := fmt.Sprintf(format, v)
	if v > 0 {
		return gainStyle.Render("+" + s)
	}
	if v < 0 {
		return lossStyle.Render(s)
	}
	return s
}

func shortAddr(addr string) string {
	if len(addr) > 14 {
		return addr[:8] + "…" + addr[len(addr)-4:]
	}
	return addr
}

func sortedAddresses(h map[string]models.PortfolioHolding) []string {
	out := make([]string, 0, len(h))
	for k := range h {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func renderPortfolio(p *models.Portfolio, trades []models.TradeRecord, at time.Time) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Portfolio") + "\n")

	invested := p.InvestedValue()
	b.WriteString(kv("Total", fmt.Sprintf("%.4f MON", p.TotalBalance)) + "\n")
	b.WriteString(kv("Invested", fmt.Sprintf("%.4f MON", invested)) + "\n")
	b.WriteString(kv("Cash", fmt.Sprintf("%.4f MON", max(0, p.TotalBalance-invested))) + "\n")
	if p.StartingBalance > 0 {
		dd := (p.TotalBalance - p.StartingBalance) / p.StartingBalance * 100
		b.WriteString(kv("Starting", fmt.Sprintf("%.4f MON", p.StartingBalance)) + "  " + signed(dd, "%.1f%%") + "\n")
	}
	if !p.UpdatedAt.IsZero() {
		b.WriteString(kv("Updated", p.UpdatedAt.UTC().Format(time.RFC3339)) + "\n")
	}

	if len(p.Holdings) == 0 {
		b.WriteString("\n" + labelStyle.Render("No open positions") + "\n")
	} else {
		t := newTable("Symbol", "Token", "Amount", "Avg Price", "Value", "Age")
		for _, addr := range sortedAddresses(p.Holdings) {
			h := p.Holdings[addr]
			t.Row(h.Symbol, shortAddr(addr),
				fmt.Sprintf("%.4f", h.Amount),
				fmt.Sprintf("%.8f", h.AvgPrice),
				fmt.Sprintf("%.4f", h.Value()),
				formatAge(at.Sub(h.Timestamp)))
		}
		b.WriteString("\n" + t.String() + "\n")
	}

	if len(trades) > 0 {
		b.WriteString("\n" + titleStyle.Render("Recent trades") + "\n")
		t := newTable("Time", "Action", "Symbol", "Amount", "Price", "Tx")
		for _, tr := range trades {
			t.Row(tr.Timestamp.UTC().Format("01-02 15:04"), string(tr.Action), tr.Symbol,
				fmt.Sprintf("%.4f", tr.Amount), fmt.Sprintf("%.8f", tr.Price), shortAddr(tr.TxHash))
		}
		b.WriteString(t.String() + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatAge(d time.Duration) string {
	switch {
	case d < 0:
		return "-"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 72*time.Hour:
		return fmt.Sprintf("%.1fh", d.Hours())
	default:
		return fmt.Sprintf("%.1fd", d.Hours()/24)
	}
}

func renderReconcile(rep portfolio.ReconcileReport, pruned []string, prune bool, total float64) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Reconciliation") + "\n")
	b.WriteString(kv("Checked", fmt.Sprintf("%d", rep.Checked)) + "\n")

	section := func(label string, addrs []string, style lipgloss.Style) {
		if len(addrs) == 0 {
			return
		}
		b.WriteString(style.Render(fmt.Sprintf("%s (%d)", label, len(addrs))) + "\n")
		for _, a := range addrs {
			b.WriteString("  " + a + "\n")
		}
	}
	section("Recreated", rep.Recreated, gainStyle)
	section("Corrected", rep.Corrected, gainStyle)
	section("Skipped, balance read failed", rep.Skipped, warnStyle)
	section("Zero balance", rep.Empty, warnStyle)
	section("Pruned", pruned, lossStyle)

	if len(rep.Empty) > 0 && !prune {
		b.WriteString(labelStyle.Render("Zero-balance holdings kept; rerun with --prune to remove them") + "\n")
	}
	b.WriteString(kv("Total", fmt.Sprintf("%.4f MON", total)))
	return b.String()
}

type balanceRow struct {
	Token    string
	Symbol   string
	Recorded float64
	OnChain  float64
	Price    float64
}

func renderBalances(wallet string, native float64, rows []balanceRow) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Wallet") + "\n")
	b.WriteString(kv("Address", wallet) + "\n")
	b.WriteString(kv("MON", fmt.Sprintf("%.6f", native)) + "\n")

	if len(rows) == 0 {
		b.WriteString(labelStyle.Render("No holdings recorded"))
		return b.String()
	}

	t := newTable("Symbol", "Token", "Recorded", "On-chain", "Price", "Value")
	for _, r := range rows {
		onchain, value := "read failed", "-"
		if r.OnChain >= 0 {
			onchain = fmt.Sprintf("%.4f", r.OnChain)
			value = fmt.Sprintf("%.4f", r.OnChain*r.Price)
		}
		t.Row(r.Symbol, shortAddr(r.Token), fmt.Sprintf("%.4f", r.Recorded), onchain,
			fmt.Sprintf("%.8f", r.Price), value)
	}
	b.WriteString("\n" + t.String())
	return b.String()
}

func renderEvents(events []models.CreationEvent, link func(tx string) string) string {
	if len(events) == 0 {
		return labelStyle.Render("No launches found in the scan window")
	}
	t := newTable("Block", "Symbol", "Name", "Token", "Pool", "Tx")
	for _, ev := range events {
		t.Row(fmt.Sprintf("%d", ev.BlockNumber), ev.Symbol, ev.Name, ev.Token, shortAddr(ev.Pool), link(ev.TxHash))
	}
	return titleStyle.Render(fmt.Sprintf("Recent launches (%d)", len(events))) + "\n" + t.String()
}
