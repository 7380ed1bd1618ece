package notify

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/teamshares/internal/domain"
	"github.com/alejandrodnm/teamshares/internal/ports"
)

// Console implementa ports.Reporter.
type Console struct {
	out   io.Writer
	curve domain.Curve
	table bool
}

var _ ports.Reporter = (*Console)(nil)

// NewConsole crea un reporter que escribe a stdout.
func NewConsole(curve domain.Curve, table bool) *Console {
	return &Console{out: os.Stdout, curve: curve, table: table}
}

// NewConsoleWriter crea un reporter para tests.
func NewConsoleWriter(w io.Writer, curve domain.Curve, table bool) *Console {
	return &Console{out: w, curve: curve, table: table}
}

// ReportMarket imprime los equipos de una liga y su resumen.
func (c *Console) ReportMarket(league string, teams []domain.Team, sum domain.MarketSummary) {
	now := sum.GeneratedAt
	if now.IsZero() {
		now = time.Now()
	}
	if len(teams) == 0 {
		fmt.Fprintf(c.out, "[%s] %s: no teams\n", now.Format("15:04:05"), league)
		return
	}

	if c.table {
		fmt.Fprintf(c.out, "\n[%s] %s market (%d teams)\n", now.Format("15:04:05"), league, len(teams))
		c.printTeams(teams)
	} else {
		c.printCompact(league, teams, now)
	}
	c.printSummary(sum)
}

// printCompact imprime una línea por liga con los equipos de mayor market cap.
func (c *Console) printCompact(league string, teams []domain.Team, now time.Time) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s %d teams", now.Format("15:04:05"), league, len(teams))

	shown := 0
	for _, t := range teams {
		if shown >= 4 {
			break
		}
		if t.SharesOutstanding == 0 {
			continue
		}
		fmt.Fprintf(&sb, " | %s %d@$%s bank$%s",
			t.Ticker, t.SharesOutstanding, money(c.curve.SpotPrice(t.SharesOutstanding)), money(t.DividendBank))
		shown++
	}
	fmt.Fprintln(c.out, sb.String())
}

func (c *Console) printTeams(teams []domain.Team) {
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Ticker", "Team", "Record", "Supply", "Spot", "Mkt cap", "Bank", "Yield/sh", "Next")

	for i, t := range teams {
		next := "-"
		if t.NextOpponent != "" {
			next = t.NextOpponent
			if t.NextGameAt != nil {
				next += " " + t.NextGameAt.UTC().Format("01-02 15:04")
			}
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			t.Ticker,
			truncate(t.Name, 24),
			t.Record().String(),
			fmt.Sprintf("%d", t.SharesOutstanding),
			"$"+money(c.curve.SpotPrice(t.SharesOutstanding)),
			"$"+money(c.curve.MarketCap(t.SharesOutstanding)),
			"$"+money(t.DividendBank),
			"$"+money(domain.YieldPerShare(t.DividendBank, t.SharesOutstanding)),
			next,
		)
	}
	table.Render()

	fmt.Fprintln(c.out, "  Spot = price(supply) | Yield/sh = bank / supply si gana ahora")
}

func (c *Console) printSummary(sum domain.MarketSummary) {
	rows := []struct {
		label string
		stat  *domain.TeamStat
		unit  string
	}{
		{"Biggest pot", sum.BiggestPot, "$"},
		{"Market leader", sum.MarketLeader, "$"},
		{"Best yield", sum.BestYield, "%"},
		{"Scarcity", sum.Scarcity, "sh"},
		{"Volume 24h", sum.VolumeLeader, "sh"},
	}
	for _, r := range rows {
		if r.stat == nil {
			continue
		}
		fmt.Fprintf(c.out, "  %-14s %-5s %s\n", r.label+":", r.stat.Ticker, withUnit(r.stat.Value, r.unit))
	}
}

// ReportSync imprime el resultado de un ciclo de sync en una línea.
func (c *Console) ReportSync(r domain.SyncReport) {
	if r.Skipped {
		fmt.Fprintf(c.out, "[%s] %s sync skipped: another run in progress\n",
			r.StartedAt.Format("15:04:05"), r.League)
		return
	}
	fmt.Fprintf(c.out, "[%s] %s sync → teams:%d games:%d payouts:%d skipped:%d locked:%d errors:%d (%s)\n",
		r.StartedAt.Format("15:04:05"), r.League,
		r.TeamsUpdated, r.GamesProcessed, r.PayoutsIssued, r.GamesSkipped, r.LockedTeams, r.Errors,
		r.Duration.Round(time.Millisecond))
}

// --- helpers ---

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func withUnit(d decimal.Decimal, unit string) string {
	switch unit {
	case "$":
		return "$" + money(d)
	case "%":
		return money(d) + "%"
	default:
		return d.String() + " " + unit
	}
}

func truncate(s string, max int) string {
	if len([]rune(s)) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-3]) + "..."
}
