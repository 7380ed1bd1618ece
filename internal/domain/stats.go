package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TeamStat es un equipo destacado en el resumen de mercado.
type TeamStat struct {
	TeamID int64           `json:"team_id"`
	Ticker string          `json:"ticker"`
	Name   string          `json:"name"`
	Value  decimal.Decimal `json:"value"`
}

// MarketSummary son los destacados de una liga: bank más grande, mayor market
// cap, mejor yield sobre precio, menor float y mayor volumen en 24h.
type MarketSummary struct {
	League       string    `json:"league"`
	GeneratedAt  time.Time `json:"generated_at"`
	BiggestPot   *TeamStat `json:"biggest_pot,omitempty"`
	MarketLeader *TeamStat `json:"market_leader,omitempty"`
	BestYield    *TeamStat `json:"best_yield,omitempty"` // yield por share / spot, en %
	Scarcity     *TeamStat `json:"scarcity,omitempty"`   // menor supply > 0
	VolumeLeader *TeamStat `json:"volume_leader,omitempty"` // shares negociados en la ventana
}

// Summarize calcula el resumen de una liga. volumes es teamID → shares
// negociados (BUY+SELL) en la ventana que elija el caller.
func Summarize(league string, teams []Team, volumes map[int64]int64, curve Curve, now time.Time) MarketSummary {
	s := MarketSummary{League: league, GeneratedAt: now}
	hundred := decimal.NewFromInt(100)

	for _, t := range teams {
		if t.League != league {
			continue
		}
		s.BiggestPot = maxStat(s.BiggestPot, t, t.DividendBank)
		s.MarketLeader = maxStat(s.MarketLeader, t, curve.MarketCap(t.SharesOutstanding))

		yield := YieldPerShare(t.DividendBank, t.SharesOutstanding).
			Div(curve.SpotPrice(t.SharesOutstanding)).Mul(hundred).Round(2)
		s.BestYield = maxStat(s.BestYield, t, yield)

		if t.SharesOutstanding > 0 {
			supply := decimal.NewFromInt(t.SharesOutstanding)
			if s.Scarcity == nil || supply.LessThan(s.Scarcity.Value) {
				s.Scarcity = statOf(t, supply)
			}
		}
		if v := volumes[t.ID]; v > 0 {
			s.VolumeLeader = maxStat(s.VolumeLeader, t, decimal.NewFromInt(v))
		}
	}
	return s
}

func maxStat(cur *TeamStat, t Team, v decimal.Decimal) *TeamStat {
	if cur == nil || v.GreaterThan(cur.Value) {
		return statOf(t, v)
	}
	return cur
}

func statOf(t Team, v decimal.Decimal) *TeamStat {
	return &TeamStat{TeamID: t.ID, Ticker: t.Ticker, Name: t.Name, Value: v}
}
