package notify

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alejandrodnm/resolvebot/internal/domain"
	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
)

// maxClosedRows limita la tabla de cerradas del reporte a las más recientes.
const maxClosedRows = 20

// Console imprime el resumen de cada ciclo y el reporte de posiciones.
type Console struct {
	out io.Writer
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// CycleStatus agrupa lo que PrintCycle necesita de un ciclo.
type CycleStatus struct {
	At          time.Time
	Opened      []domain.Position
	Settled     []domain.ClosedPosition
	Eligible    int
	CheckErrors int
	Balance     decimal.Decimal
	OpenCount   int
	Duration    time.Duration
}

// PrintCycle imprime lo esencial del ciclo en una línea, más una línea por
// posición abierta o cerrada.
func (c *Console) PrintCycle(st CycleStatus) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] bal $%s | open %d | +%d opened | %d closed | %d eligible",
		st.At.Format("15:04:05"), st.Balance.StringFixed(2), st.OpenCount,
		len(st.Opened), len(st.Settled), st.Eligible)
	if st.CheckErrors > 0 {
		fmt.Fprintf(&sb, " | %d check errors", st.CheckErrors)
	}
	fmt.Fprintf(&sb, " | %s", st.Duration.Round(time.Millisecond))

	for _, p := range st.Opened {
		fmt.Fprintf(&sb, "\n  + %s %s @ %s x %s ($%s)",
			truncate(p.Slug, 40), p.Side, p.EntryPrice.String(), p.Size.String(), p.Cost.StringFixed(2))
	}
	for _, cp := range st.Settled {
		fmt.Fprintf(&sb, "\n  - %s %s %s pnl $%s",
			truncate(cp.Slug, 40), cp.Side, cp.Resolution, cp.PnL.StringFixed(2))
	}
	fmt.Fprintln(c.out, sb.String())
}

// PrintReport imprime el resumen del wallet y las tablas de posiciones.
func (c *Console) PrintReport(state *domain.State) {
	snap := state.Snapshot()

	fmt.Fprintf(c.out, "\n")
	fmt.Fprintf(c.out, "========================================================\n")
	fmt.Fprintf(c.out, "  POSITION REPORT\n")
	fmt.Fprintf(c.out, "========================================================\n\n")
	fmt.Fprintf(c.out, "  Balance:          $%s\n", snap.Balance.StringFixed(2))
	fmt.Fprintf(c.out, "  Open positions:   %d\n", snap.Positions)
	fmt.Fprintf(c.out, "  Closed positions: %d\n", snap.ClosedPositions)
	fmt.Fprintf(c.out, "  Locked events:    %d\n", snap.EventLocks)
	fmt.Fprintf(c.out, "  Realized P&L:     $%s\n", snap.RealizedPnL.StringFixed(2))
	fmt.Fprintf(c.out, "  Total value:      $%s\n", snap.TotalValue.StringFixed(2))

	if len(state.Positions) > 0 {
		fmt.Fprintf(c.out, "\n  --- OPEN ---\n")
		tbl := tablewriter.NewWriter(c.out)
		tbl.Header("#", "Market", "Side", "Entry", "Size", "Cost", "Opened")
		for i, p := range state.Positions {
			tbl.Append(
				fmt.Sprintf("%d", i+1),
				truncate(p.Slug, 40),
				string(p.Side),
				p.EntryPrice.String(),
				p.Size.String(),
				"$"+p.Cost.StringFixed(2),
				p.OpenedAt.Format("01-02 15:04"),
			)
		}
		tbl.Render()
	}

	if len(state.Closed) > 0 {
		closed := state.Closed
		if len(closed) > maxClosedRows {
			closed = closed[len(closed)-maxClosedRows:]
		}
		fmt.Fprintf(c.out, "\n  --- CLOSED (last %d of %d) ---\n", len(closed), len(state.Closed))
		tbl := tablewriter.NewWriter(c.out)
		tbl.Header("Market", "Side", "Resolution", "Cost", "Payout", "P&L", "Closed")
		for _, cp := range closed {
			tbl.Append(
				truncate(cp.Slug, 40),
				string(cp.Side),
				string(cp.Resolution),
				"$"+cp.Cost.StringFixed(2),
				"$"+cp.Payout.StringFixed(2),
				"$"+cp.PnL.StringFixed(2),
				cp.ClosedAt.Format("01-02 15:04"),
			)
		}
		tbl.Render()
		c.printResolutionBreakdown(state.Closed)
	}

	fmt.Fprintln(c.out)
}

// printResolutionBreakdown imprime conteo y P&L por tipo de cierre.
func (c *Console) printResolutionBreakdown(closed []domain.ClosedPosition) {
	type agg struct {
		n   int
		pnl decimal.Decimal
	}
	order := []domain.Resolution{domain.ResolutionYes, domain.ResolutionNo, domain.ResolutionStopLoss}
	byRes := make(map[domain.Resolution]*agg, len(order))
	for _, r := range order {
		byRes[r] = &agg{pnl: decimal.Zero}
	}
	wins := 0
	for _, cp := range closed {
		if a, ok := byRes[cp.Resolution]; ok {
			a.n++
			a.pnl = a.pnl.Add(cp.PnL)
		}
		if cp.PnL.IsPositive() {
			wins++
		}
	}

	fmt.Fprintf(c.out, "\n  --- BY RESOLUTION ---\n")
	for _, r := range order {
		a := byRes[r]
		fmt.Fprintf(c.out, "  %-10s %4d  $%s\n", r, a.n, a.pnl.StringFixed(2))
	}
	fmt.Fprintf(c.out, "  Win rate:  %.1f%%\n", float64(wins)/float64(len(closed))*100)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
