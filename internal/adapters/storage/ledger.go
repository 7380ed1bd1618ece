package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/teamshares/internal/domain"
	"github.com/alejandrodnm/teamshares/internal/ports"
)

// ledgerTx implementa ports.LedgerTx. Todo lo que se lee o escribe aquí usa
// la misma *sql.Tx: en SQLite usar s.db dentro de WithTx bloquearía la única
// conexión.
type ledgerTx struct {
	tx      *sql.Tx
	dialect dialect
}

var _ ports.LedgerTx = (*ledgerTx)(nil)

func (l *ledgerTx) q(query string) string { return rebind(l.dialect, query) }

func (l *ledgerTx) LockTeam(ctx context.Context, teamID int64) (domain.Team, error) {
	t, err := getTeam(ctx, l.tx, l.dialect, teamID, true)
	if err != nil {
		return domain.Team{}, fmt.Errorf("storage.LockTeam: %w", err)
	}
	return t, nil
}

func (l *ledgerTx) GetUser(ctx context.Context, userID string) (domain.User, error) {
	u, err := getUser(ctx, l.tx, l.dialect, userID, true)
	if err != nil {
		return domain.User{}, fmt.Errorf("storage.GetUser: %w", err)
	}
	return u, nil
}

func (l *ledgerTx) GetHolding(ctx context.Context, userID string, teamID int64) (domain.Holding, error) {
	h, err := getHolding(ctx, l.tx, l.dialect, userID, teamID)
	if err != nil {
		return domain.Holding{}, fmt.Errorf("storage.GetHolding: %w", err)
	}
	return h, nil
}

// ListHoldings devuelve las posiciones > 0 del equipo, en orden de user_id.
func (l *ledgerTx) ListHoldings(ctx context.Context, teamID int64) ([]domain.Holding, error) {
	rows, err := l.tx.QueryContext(ctx,
		l.q(`SELECT user_id, shares_owned FROM holdings WHERE team_id = ? AND shares_owned > 0 ORDER BY user_id`),
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage.ListHoldings: %w", err)
	}
	defer rows.Close()

	var out []domain.Holding
	for rows.Next() {
		h := domain.Holding{TeamID: teamID}
		if err := rows.Scan(&h.UserID, &h.SharesOwned); err != nil {
			return nil, fmt.Errorf("storage.ListHoldings: scan: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (l *ledgerTx) TeamGames(ctx context.Context, league, ticker string, since time.Time) ([]domain.Game, error) {
	games, err := teamGames(ctx, l.tx, l.dialect, league, ticker, since)
	if err != nil {
		return nil, fmt.Errorf("storage.TeamGames: %w", err)
	}
	return games, nil
}

func (l *ledgerTx) SetTeamSupply(ctx context.Context, teamID, supply int64) error {
	if supply < 0 {
		return fmt.Errorf("storage.SetTeamSupply: team %d: negative supply %d", teamID, supply)
	}
	res, err := l.tx.ExecContext(ctx, l.q(`UPDATE teams SET shares_outstanding = ? WHERE id = ?`), supply, teamID)
	if err != nil {
		return fmt.Errorf("storage.SetTeamSupply: %w", err)
	}
	return mustAffect(res, fmt.Errorf("storage.SetTeamSupply: team %d: %w", teamID, domain.ErrTeamNotFound))
}

func (l *ledgerTx) SetDividendBank(ctx context.Context, teamID int64, bank decimal.Decimal) error {
	if bank.IsNegative() {
		return fmt.Errorf("storage.SetDividendBank: team %d: negative bank %s", teamID, bank)
	}
	res, err := l.tx.ExecContext(ctx, l.q(`UPDATE teams SET dividend_bank = ? WHERE id = ?`), bank.String(), teamID)
	if err != nil {
		return fmt.Errorf("storage.SetDividendBank: %w", err)
	}
	return mustAffect(res, fmt.Errorf("storage.SetDividendBank: team %d: %w", teamID, domain.ErrTeamNotFound))
}

func (l *ledgerTx) SetUserBalance(ctx context.Context, userID string, balance decimal.Decimal) error {
	if balance.IsNegative() {
		return fmt.Errorf("storage.SetUserBalance: %q: %w", userID, domain.ErrInsufficientFunds)
	}
	res, err := l.tx.ExecContext(ctx, l.q(`UPDATE users SET usd_balance = ? WHERE id = ?`), balance.String(), userID)
	if err != nil {
		return fmt.Errorf("storage.SetUserBalance: %w", err)
	}
	return mustAffect(res, fmt.Errorf("storage.SetUserBalance: %q: %w", userID, domain.ErrUserNotFound))
}

// SetHolding hace upsert de la posición. Cero es válido: la fila nunca se borra.
func (l *ledgerTx) SetHolding(ctx context.Context, h domain.Holding) error {
	if h.SharesOwned < 0 {
		return fmt.Errorf("storage.SetHolding: %q/%d: %w", h.UserID, h.TeamID, domain.ErrInsufficientShares)
	}
	_, err := l.tx.ExecContext(ctx, l.q(`
		INSERT INTO holdings (user_id, team_id, shares_owned) VALUES (?, ?, ?)
		ON CONFLICT(user_id, team_id) DO UPDATE SET shares_owned = excluded.shares_owned`),
		h.UserID, h.TeamID, h.SharesOwned,
	)
	if err != nil {
		return fmt.Errorf("storage.SetHolding: %w", err)
	}
	return nil
}

func (l *ledgerTx) AppendTransaction(ctx context.Context, t domain.Transaction) error {
	_, err := l.tx.ExecContext(ctx, l.q(`
		INSERT INTO transactions (id, user_id, team_id, side, shares_amount, usd_amount, avg_share_price, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		t.ID, t.UserID, t.TeamID, string(t.Side), t.SharesAmount,
		t.USDAmount.String(), t.AvgSharePrice.String(), formatTS(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("storage.AppendTransaction: %s: %w", t.ID, err)
	}
	return nil
}

// InsertProcessedGame inserta el fence con ON CONFLICT DO NOTHING: false si
// el partido ya estaba procesado.
func (l *ledgerTx) InsertProcessedGame(ctx context.Context, pg domain.ProcessedGame) (bool, error) {
	var winner any
	if pg.WinnerID != nil {
		winner = *pg.WinnerID
	}
	res, err := l.tx.ExecContext(ctx, l.q(`
		INSERT INTO processed_games (game_id, league, winner_id, processed_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(game_id) DO NOTHING`),
		pg.GameID, pg.League, winner, formatTS(pg.ProcessedAt),
	)
	if err != nil {
		return false, fmt.Errorf("storage.InsertProcessedGame: %s: %w", pg.GameID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("storage.InsertProcessedGame: rows affected: %w", err)
	}
	return n == 1, nil
}
