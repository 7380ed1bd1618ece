package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// TradeExecuted se publica tras el commit de un BUY/SELL.
type TradeExecuted struct {
	TransactionID string          `json:"transaction_id"`
	UserID        string          `json:"user_id"`
	TeamID        int64           `json:"team_id"`
	League        string          `json:"league"`
	Ticker        string          `json:"ticker"`
	Side          Side            `json:"side"`
	Qty           int64           `json:"qty"`
	Total         decimal.Decimal `json:"total"`
	AvgPrice      decimal.Decimal `json:"avg_price"`
	NewSupply     int64           `json:"new_supply"`
	NewSpotPrice  decimal.Decimal `json:"new_spot_price"`
	At            time.Time       `json:"at"`
}

// EventKey agrupa los eventos por equipo (orden por partición).
func (e TradeExecuted) EventKey() string { return strconv.FormatInt(e.TeamID, 10) }

// PayoutIssued se publica tras el commit de un settle.
type PayoutIssued struct {
	GameID      string          `json:"game_id,omitempty"`
	TeamID      int64           `json:"team_id"`
	League      string          `json:"league"`
	Ticker      string          `json:"ticker"`
	BankBefore  decimal.Decimal `json:"bank_before"`
	Distributed decimal.Decimal `json:"distributed"`
	Remainder   decimal.Decimal `json:"remainder"`
	Holders     int             `json:"holders"`
	At          time.Time       `json:"at"`
}

func (e PayoutIssued) EventKey() string { return strconv.FormatInt(e.TeamID, 10) }
