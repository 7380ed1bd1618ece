package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Curva de bonding lineal: price(s) = Base + Slope*s.
// Las constantes no pueden cambiar una vez que hay posiciones abiertas: el precio
// de cualquier supply histórico tiene que ser reproducible.
var (
	DefaultBase  = decimal.RequireFromString("10.00")
	DefaultSlope = decimal.RequireFromString("0.01")
)

// avgPricePlaces es la precisión con la que se guarda el precio medio en el audit log.
const avgPricePlaces = 8

// Curve es la función de precio. Sin estado: seguro para uso concurrente.
type Curve struct {
	Base  decimal.Decimal
	Slope decimal.Decimal
}

// DefaultCurve devuelve la curva de producción (10.00 + 0.01*s).
func DefaultCurve() Curve {
	return Curve{Base: DefaultBase, Slope: DefaultSlope}
}

// Quote es el resultado de recorrer la curva para k shares.
type Quote struct {
	Side        Side
	Qty         int64
	StartSupply int64
	EndSupply   int64
	FirstPrice  decimal.Decimal // precio marginal del primer share tocado
	LastPrice   decimal.Decimal // precio marginal del último share tocado
	Total       decimal.Decimal
	AvgPrice    decimal.Decimal
}

// SpotPrice devuelve price(s). Nunca se persiste: siempre se recalcula.
func (c Curve) SpotPrice(supply int64) decimal.Decimal {
	return c.Base.Add(c.Slope.Mul(decimal.NewFromInt(supply)))
}

// QuoteBuy cotiza la compra de qty shares desde startSupply.
// El i-ésimo share comprado cuesta price(S+i); la suma aritmética da
// total = k/2 * (price(S+1) + price(S+k)).
func (c Curve) QuoteBuy(startSupply, qty int64) (Quote, error) {
	if qty <= 0 {
		return Quote{}, fmt.Errorf("quote buy %d: %w", qty, ErrInvalidQuantity)
	}
	if startSupply < 0 {
		return Quote{}, fmt.Errorf("quote buy: negative supply %d: %w", startSupply, ErrInvalidQuantity)
	}
	end := startSupply + qty
	return c.quote(SideBuy, startSupply, end, qty, c.SpotPrice(startSupply+1), c.SpotPrice(end)), nil
}

// QuoteSell cotiza la venta de qty shares desde startSupply.
// total = k/2 * (price(S) + price(S-k+1)).
func (c Curve) QuoteSell(startSupply, qty int64) (Quote, error) {
	if qty <= 0 || qty > startSupply {
		return Quote{}, fmt.Errorf("quote sell %d of %d: %w", qty, startSupply, ErrInvalidQuantity)
	}
	end := startSupply - qty
	return c.quote(SideSell, startSupply, end, qty, c.SpotPrice(startSupply), c.SpotPrice(end+1)), nil
}

// QuoteSide despacha a QuoteBuy o QuoteSell.
func (c Curve) QuoteSide(side Side, startSupply, qty int64) (Quote, error) {
	switch side {
	case SideBuy:
		return c.QuoteBuy(startSupply, qty)
	case SideSell:
		return c.QuoteSell(startSupply, qty)
	default:
		return Quote{}, fmt.Errorf("quote %q: %w", side, ErrInvalidSide)
	}
}

func (c Curve) quote(side Side, start, end, qty int64, first, last decimal.Decimal) Quote {
	k := decimal.NewFromInt(qty)
	total := k.Mul(first.Add(last)).Div(decimal.NewFromInt(2))
	return Quote{
		Side:        side,
		Qty:         qty,
		StartSupply: start,
		EndSupply:   end,
		FirstPrice:  first,
		LastPrice:   last,
		Total:       total,
		AvgPrice:    total.DivRound(k, avgPricePlaces),
	}
}

// MarketCap es spot * supply (métrica "market leader" del ticker).
func (c Curve) MarketCap(supply int64) decimal.Decimal {
	return c.SpotPrice(supply).Mul(decimal.NewFromInt(supply))
}

// YieldPerShare es lo que cobraría cada share si el equipo ganara ahora.
func YieldPerShare(bank decimal.Decimal, supply int64) decimal.Decimal {
	if supply <= 0 {
		return decimal.Zero
	}
	return bank.DivRound(decimal.NewFromInt(supply), 4)
}
