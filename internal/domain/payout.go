package domain

import "github.com/shopspring/decimal"

// centPlaces: los payouts se pagan en centavos, siempre hacia abajo.
const centPlaces = 2

// SplitDividend reparte bank entre los holders pro-rata por
// shares_owned / shares_outstanding. Cada parte se redondea hacia abajo a
// centavos y el residuo queda como Remainder (vuelve al bank).
// Holders con 0 shares se ignoran. Con outstanding == 0 no se reparte nada.
func SplitDividend(teamID int64, bank decimal.Decimal, outstanding int64, holdings []Holding) Payout {
	p := Payout{
		TeamID:      teamID,
		BankBefore:  bank,
		Distributed: decimal.Zero,
		Remainder:   bank,
	}
	if outstanding <= 0 || !bank.IsPositive() {
		return p
	}

	// Si los holdings suman más que outstanding, se usa esa suma como
	// denominador: nunca se paga más que el bank.
	var held int64
	for _, h := range holdings {
		if h.SharesOwned > 0 {
			held += h.SharesOwned
		}
	}
	total := decimal.NewFromInt(max(outstanding, held))
	for _, h := range holdings {
		if h.SharesOwned <= 0 {
			continue
		}
		amount := bank.Mul(decimal.NewFromInt(h.SharesOwned)).Div(total).RoundFloor(centPlaces)
		if !amount.IsPositive() {
			continue
		}
		p.Holders = append(p.Holders, HolderPayout{
			UserID:      h.UserID,
			SharesOwned: h.SharesOwned,
			Amount:      amount,
		})
		p.Distributed = p.Distributed.Add(amount)
	}

	p.Remainder = bank.Sub(p.Distributed)
	return p
}
