package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side es el lado de un registro del audit log.
type Side string

const (
	SideBuy      Side = "BUY"
	SideSell     Side = "SELL"
	SideDividend Side = "DIVIDEND" // payout de un win, solo auditoría
)

// ParseSide acepta BUY/SELL en cualquier capitalización.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	}
	return "", ErrInvalidSide
}

// Team es un equipo listado. SharesOutstanding es el agregado autoritativo de
// circulación; el precio se deriva de él y nunca se guarda.
type Team struct {
	ID                int64
	League            string
	Ticker            string // canónico, único por liga
	Name              string
	SharesOutstanding int64
	DividendBank      decimal.Decimal
	Wins              int
	Losses            int
	Ties              int
	NextOpponent      string
	NextGameAt        *time.Time
	NextGameID        string
}

// Record devuelve el récord del equipo.
func (t Team) Record() Record {
	return Record{Wins: t.Wins, Losses: t.Losses, Ties: t.Ties}
}

// User es una cuenta con saldo en USD simulados. Nunca negativo.
type User struct {
	ID         string
	USDBalance decimal.Decimal
	CreatedAt  time.Time
}

// Holding es la posición de un usuario en un equipo. Se crea en la primera
// compra y nunca se borra (cero es válido).
type Holding struct {
	UserID      string
	TeamID      int64
	SharesOwned int64
}

// Transaction es un registro inmutable del audit log. No es la fuente de verdad
// de los saldos.
type Transaction struct {
	ID            string
	UserID        string
	TeamID        int64
	Side          Side
	SharesAmount  int64
	USDAmount     decimal.Decimal
	AvgSharePrice decimal.Decimal
	CreatedAt     time.Time
}

// ProcessedGame es el fence de idempotencia de payouts: una fila por game_id.
type ProcessedGame struct {
	GameID      string
	League      string
	WinnerID    *int64
	ProcessedAt time.Time
}

// TradeResult es lo que devuelve un trade ejecutado.
type TradeResult struct {
	TransactionID string
	Side          Side
	Qty           int64
	Total         decimal.Decimal
	AvgPrice      decimal.Decimal
	NewSupply     int64
	NewSpotPrice  decimal.Decimal
	NewBalance    decimal.Decimal
}

// HolderPayout es la parte de un holder en un payout.
type HolderPayout struct {
	UserID      string
	SharesOwned int64
	Amount      decimal.Decimal
}

// Payout es el resultado de distribuir el dividend bank de un equipo.
type Payout struct {
	TeamID      int64
	BankBefore  decimal.Decimal
	Distributed decimal.Decimal
	Remainder   decimal.Decimal // residuo de redondeo, se queda en el bank
	Holders     []HolderPayout
}
