package notify

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/polywatch/internal/domain"
)

// Console es la vista de terminal del monitor: rondas reconstruidas,
// listado de series y línea a línea en modo follow.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea una consola que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea una consola para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// PrintRound imprime una ronda en el modo configurado.
func (c *Console) PrintRound(sum *domain.RoundSummary) {
	if c.table {
		c.printRoundFull(sum)
	} else {
		c.printRoundCompact(sum)
	}
}

// printRoundCompact imprime lo esencial en una línea.
func (c *Console) printRoundCompact(sum *domain.RoundSummary) {
	outcome := ""
	if sum.Settlement != nil && sum.Settlement.Outcome != "" {
		outcome = " outcome:" + sum.Settlement.Outcome
	}
	fmt.Fprintf(c.out, "[%s] %s buys:%d merges:%d profit:$%.4f open Y:%.2f N:%.2f%s\n",
		modeTag(sum.Mode), sum.Market,
		sum.BuyCount, sum.MergeCount, sum.TotalProfit,
		sum.UnmergedYes, sum.UnmergedNo, outcome)
}

// printRoundFull imprime el detalle completo: compras con su estado
// de consumo, merges con su atribución, errores y cierre.
func (c *Console) printRoundFull(sum *domain.RoundSummary) {
	fmt.Fprintf(c.out, "\n=== ROUND %s [%s] ===\n", sum.Market, modeTag(sum.Mode))
	if sum.StartedAt != nil {
		fmt.Fprintf(c.out, "  started: %s\n", sum.StartedAt.Format(time.RFC3339))
	}
	if sum.Strategy != "" {
		fmt.Fprintf(c.out, "  strategy: %s\n", sum.Strategy)
	}

	if len(sum.Buys) > 0 {
		fmt.Fprintf(c.out, "\n  BUYS (%d):\n", sum.BuyCount)
		table := tablewriter.NewWriter(c.out)
		table.Header("#", "TS", "Side", "Price", "Size", "Consumed", "Left", "Groups", "State")

		for i, b := range sum.Buys {
			table.Append(
				strconv.Itoa(i+1),
				b.TS.Format("15:04:05"),
				string(b.Side),
				fmt.Sprintf("%.4f", b.Price),
				fmt.Sprintf("%.2f", b.Size),
				fmt.Sprintf("%.2f", b.ConsumedSize),
				fmt.Sprintf("%.2f", b.Remaining()),
				joinGroups(b.MergeGroups),
				buyState(b),
			)
		}
		table.Render()
		fmt.Fprintln(c.out, "  Consumed = cantidad absorbida por merges | Groups = merges que bebieron de esta compra")
	}

	if len(sum.Merges) > 0 {
		fmt.Fprintf(c.out, "\n  MERGES (%d):\n", sum.MergeCount)
		table := tablewriter.NewWriter(c.out)
		table.Header("G", "TS", "Pairs", "PairCost", "Profit", "Buys", "Tx")

		for _, m := range sum.Merges {
			table.Append(
				strconv.Itoa(m.Group),
				m.TS.Format("15:04:05"),
				fmt.Sprintf("%.2f", m.Pairs),
				fmt.Sprintf("%.4f", m.PairCost),
				fmt.Sprintf("$%.4f", m.Profit),
				strconv.Itoa(len(m.ConsumedBuyIDs)),
				txLabel(m.TxHash),
			)
		}
		table.Render()
	}

	for _, e := range sum.Errors {
		fmt.Fprintf(c.out, "  ⚠ [%s] %s\n", e.TS.Format("15:04:05"), e.Message)
	}

	fmt.Fprintf(c.out, "\n  Merged profit: $%.4f en %d merges\n", sum.TotalProfit, sum.MergeCount)
	fmt.Fprintf(c.out, "  Open inventory: YES %.2f | NO %.2f\n", sum.UnmergedYes, sum.UnmergedNo)

	if s := sum.Settlement; s != nil {
		fmt.Fprintf(c.out, "\n  CIERRE (%s):\n", s.EndedAt.Format("15:04:05"))
		fmt.Fprintf(c.out, "     outcome: %s  pnl: $%.4f  total_cost: $%.4f\n",
			orDash(s.Outcome), s.PnL, s.TotalCost)
		fmt.Fprintf(c.out, "     up %.2f @ %.4f | dn %.2f @ %.4f | hedged %.2f\n",
			s.UpQty, s.UpAvg, s.DnQty, s.DnAvg, s.HedgedQty)

		// El bot reporta su propio PnL; el contraste con los merges
		// reconstruidos destapa agujeros en el log.
		delta := s.PnL - sum.TotalProfit
		fmt.Fprintf(c.out, "     VEREDICTO: reportado $%.4f vs merges $%.4f (Δ $%.4f)\n",
			s.PnL, sum.TotalProfit, delta)
	}
	fmt.Fprintln(c.out)
}

// PrintRounds imprime el listado agrupado por serie.
func (c *Console) PrintRounds(groups []domain.RoundGroup) {
	if len(groups) == 0 {
		fmt.Fprintf(c.out, "[%s] no rounds in the log\n", time.Now().Format("15:04:05"))
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Series", "Round", "Records", "Modes", "Last seen")

	for _, g := range groups {
		for i, r := range g.Rounds {
			series := g.Series
			if i > 0 {
				series = ""
			}
			table.Append(
				series,
				r.Market,
				strconv.Itoa(r.Records),
				joinModes(r.Modes),
				r.LastSeen.Format("2006-01-02 15:04"),
			)
		}
	}
	table.Render()
}

// PrintEvent imprime un evento en modo follow, una línea por registro.
func (c *Console) PrintEvent(ev domain.Event) {
	ts := ev.TS.Format("15:04:05")
	market := ev.Market()

	switch {
	case ev.Kind == domain.KindRoundStart:
		fmt.Fprintf(c.out, "[%s] ▶ round_start %s\n", ts, market)
	case ev.Buy != nil:
		fmt.Fprintf(c.out, "[%s]   buy %s %s %.2f @ %.4f\n",
			ts, market, ev.Buy.Side, ev.Buy.Size, ev.Buy.Price)
	case ev.Merge != nil:
		fmt.Fprintf(c.out, "[%s]   merge %s %.2f pairs profit $%.4f\n",
			ts, market, ev.Merge.Pairs, ev.Merge.Profit)
	case ev.Kind == domain.KindRoundEnd:
		outcome := ""
		if ev.RoundEnd != nil && ev.RoundEnd.Outcome != "" {
			outcome = " outcome:" + ev.RoundEnd.Outcome
		}
		fmt.Fprintf(c.out, "[%s] ■ round_end %s%s\n", ts, market, outcome)
	case ev.Error != nil:
		fmt.Fprintf(c.out, "[%s] ⚠ error %s: %s\n", ts, market, ev.Error.Message)
	default:
		fmt.Fprintf(c.out, "[%s]   %s %s\n", ts, ev.Kind, market)
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func buyState(b *domain.AnnotatedBuy) string {
	switch {
	case b.Merged:
		return "MERGED"
	case b.ConsumedSize > 0:
		return "PARTIAL"
	default:
		return "OPEN"
	}
}

func joinGroups(groups []int) string {
	if len(groups) == 0 {
		return "-"
	}
	parts := make([]string, len(groups))
	for i, g := range groups {
		parts[i] = strconv.Itoa(g)
	}
	return strings.Join(parts, ",")
}

func joinModes(modes []domain.Mode) string {
	parts := make([]string, len(modes))
	for i, m := range modes {
		parts[i] = modeTag(m)
	}
	return strings.Join(parts, ",")
}

// modeTag abrevia el modo para las vistas compactas.
func modeTag(m domain.Mode) string {
	switch m {
	case domain.ModeProduction:
		return "prod"
	case domain.ModeSimulation:
		return "sim"
	case "":
		return "?"
	}
	return string(m)
}

func txLabel(tx *string) string {
	if tx == nil || *tx == "" {
		return "-"
	}
	if len(*tx) > 12 {
		return (*tx)[:12] + "..."
	}
	return *tx
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
