package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/teamshares/internal/domain"
)

// querier es lo común entre *sql.DB y *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const teamColumns = `id, league, ticker, name, shares_outstanding, dividend_bank,
	wins, losses, ties, next_opponent, next_game_at, next_game_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTeam(r rowScanner) (domain.Team, error) {
	var (
		t      domain.Team
		nextAt sql.NullString
	)
	if err := r.Scan(&t.ID, &t.League, &t.Ticker, &t.Name, &t.SharesOutstanding, &t.DividendBank,
		&t.Wins, &t.Losses, &t.Ties, &t.NextOpponent, &nextAt, &t.NextGameID); err != nil {
		return domain.Team{}, err
	}
	at, err := scanNullTS(nextAt)
	if err != nil {
		return domain.Team{}, fmt.Errorf("next_game_at: %w", err)
	}
	t.NextGameAt = at
	return t, nil
}

func getTeam(ctx context.Context, q querier, d dialect, teamID int64, lock bool) (domain.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE id = ?`
	if lock {
		query += forUpdate(d)
	}
	t, err := scanTeam(q.QueryRowContext(ctx, rebind(d, query), teamID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Team{}, fmt.Errorf("team %d: %w", teamID, domain.ErrTeamNotFound)
	}
	return t, err
}

// GetTeam devuelve un equipo por id.
func (s *Store) GetTeam(ctx context.Context, teamID int64) (domain.Team, error) {
	t, err := getTeam(ctx, s.db, s.dialect, teamID, false)
	if err != nil {
		return domain.Team{}, fmt.Errorf("storage.GetTeam: %w", err)
	}
	return t, nil
}

// TeamByTicker busca un equipo por su ticker canónico dentro de la liga.
func (s *Store) TeamByTicker(ctx context.Context, league, ticker string) (domain.Team, error) {
	row := s.db.QueryRowContext(ctx,
		s.q(`SELECT `+teamColumns+` FROM teams WHERE league = ? AND ticker = ?`), league, ticker)
	t, err := scanTeam(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Team{}, fmt.Errorf("storage.TeamByTicker: %s/%s: %w", league, ticker, domain.ErrTeamNotFound)
	}
	if err != nil {
		return domain.Team{}, fmt.Errorf("storage.TeamByTicker: %w", err)
	}
	return t, nil
}

// ListTeams devuelve los equipos de una liga ordenados por ticker.
// Con league vacío devuelve todos.
func (s *Store) ListTeams(ctx context.Context, league string) ([]domain.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams`
	var args []any
	if league != "" {
		query += ` WHERE league = ?`
		args = append(args, league)
	}
	query += ` ORDER BY league, ticker`

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("storage.ListTeams: %w", err)
	}
	defer rows.Close()

	var out []domain.Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ListTeams: scan: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// EnsureTeam crea el equipo si no existe. Si ya existe sin nombre, lo completa.
func (s *Store) EnsureTeam(ctx context.Context, league, ticker, name string) (domain.Team, error) {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO teams (league, ticker, name) VALUES (?, ?, ?)
		ON CONFLICT(league, ticker) DO UPDATE SET
			name = CASE WHEN teams.name = '' THEN excluded.name ELSE teams.name END`),
		league, ticker, name,
	)
	if err != nil {
		return domain.Team{}, fmt.Errorf("storage.EnsureTeam: %s/%s: %w", league, ticker, err)
	}
	return s.TeamByTicker(ctx, league, ticker)
}

// UpdateRecord sobreescribe el récord del equipo.
func (s *Store) UpdateRecord(ctx context.Context, teamID int64, rec domain.Record) error {
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE teams SET wins = ?, losses = ?, ties = ? WHERE id = ?`),
		rec.Wins, rec.Losses, rec.Ties, teamID,
	)
	if err != nil {
		return fmt.Errorf("storage.UpdateRecord: %w", err)
	}
	return mustAffect(res, fmt.Errorf("storage.UpdateRecord: team %d: %w", teamID, domain.ErrTeamNotFound))
}

// SetSchedule fija el próximo partido del equipo.
func (s *Store) SetSchedule(ctx context.Context, teamID int64, claim domain.ScheduleClaim) error {
	var at *time.Time
	if !claim.At.IsZero() {
		at = &claim.At
	}
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE teams SET next_opponent = ?, next_game_at = ?, next_game_id = ? WHERE id = ?`),
		claim.Opponent, nullTS(at), claim.GameID, teamID,
	)
	if err != nil {
		return fmt.Errorf("storage.SetSchedule: %w", err)
	}
	return mustAffect(res, fmt.Errorf("storage.SetSchedule: team %d: %w", teamID, domain.ErrTeamNotFound))
}

// --- usuarios ---

func getUser(ctx context.Context, q querier, d dialect, userID string, lock bool) (domain.User, error) {
	query := `SELECT id, usd_balance, created_at FROM users WHERE id = ?`
	if lock {
		query += forUpdate(d)
	}
	var (
		u       domain.User
		created string
	)
	err := q.QueryRowContext(ctx, rebind(d, query), userID).Scan(&u.ID, &u.USDBalance, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, fmt.Errorf("user %q: %w", userID, domain.ErrUserNotFound)
	}
	if err != nil {
		return domain.User{}, err
	}
	if u.CreatedAt, err = parseTS(created); err != nil {
		return domain.User{}, fmt.Errorf("user %q created_at: %w", userID, err)
	}
	return u, nil
}

// GetUser devuelve un usuario.
func (s *Store) GetUser(ctx context.Context, userID string) (domain.User, error) {
	u, err := getUser(ctx, s.db, s.dialect, userID, false)
	if err != nil {
		return domain.User{}, fmt.Errorf("storage.GetUser: %w", err)
	}
	return u, nil
}

// CreateUser crea un usuario con saldo inicial. ErrUserExists si ya existe.
func (s *Store) CreateUser(ctx context.Context, userID string, balance decimal.Decimal) (domain.User, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO users (id, usd_balance, created_at) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING`),
		userID, balance.String(), formatTS(now),
	)
	if err != nil {
		return domain.User{}, fmt.Errorf("storage.CreateUser: %w", err)
	}
	if err := mustAffect(res, domain.ErrUserExists); err != nil {
		return domain.User{}, fmt.Errorf("storage.CreateUser: %q: %w", userID, err)
	}
	return s.GetUser(ctx, userID)
}

func getHolding(ctx context.Context, q querier, d dialect, userID string, teamID int64) (domain.Holding, error) {
	h := domain.Holding{UserID: userID, TeamID: teamID}
	err := q.QueryRowContext(ctx,
		rebind(d, `SELECT shares_owned FROM holdings WHERE user_id = ? AND team_id = ?`),
		userID, teamID,
	).Scan(&h.SharesOwned)
	if errors.Is(err, sql.ErrNoRows) {
		return h, nil // sin fila = 0 shares
	}
	return h, err
}

// GetHolding devuelve la posición del usuario en el equipo (0 si no tiene).
func (s *Store) GetHolding(ctx context.Context, userID string, teamID int64) (domain.Holding, error) {
	h, err := getHolding(ctx, s.db, s.dialect, userID, teamID)
	if err != nil {
		return domain.Holding{}, fmt.Errorf("storage.GetHolding: %w", err)
	}
	return h, nil
}

// ListTransactions devuelve el audit log del usuario, más reciente primero.
func (s *Store) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, user_id, team_id, side, shares_amount, usd_amount, avg_share_price, created_at
		FROM transactions
		WHERE user_id = ?
		ORDER BY created_at DESC, id
		LIMIT ?`),
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage.ListTransactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var (
			t       domain.Transaction
			side    string
			created string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.TeamID, &side, &t.SharesAmount,
			&t.USDAmount, &t.AvgSharePrice, &created); err != nil {
			return nil, fmt.Errorf("storage.ListTransactions: scan: %w", err)
		}
		t.Side = domain.Side(side)
		if t.CreatedAt, err = parseTS(created); err != nil {
			return nil, fmt.Errorf("storage.ListTransactions: created_at: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// VolumeSince suma shares negociados (BUY+SELL) por equipo de la liga desde since.
func (s *Store) VolumeSince(ctx context.Context, league string, since time.Time) (map[int64]int64, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT tx.team_id, SUM(tx.shares_amount)
		FROM transactions tx
		JOIN teams t ON t.id = tx.team_id
		WHERE t.league = ? AND tx.side IN ('BUY', 'SELL') AND tx.created_at >= ?
		GROUP BY tx.team_id`),
		league, formatTS(since),
	)
	if err != nil {
		return nil, fmt.Errorf("storage.VolumeSince: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]int64)
	for rows.Next() {
		var (
			teamID int64
			vol    int64
		)
		if err := rows.Scan(&teamID, &vol); err != nil {
			return nil, fmt.Errorf("storage.VolumeSince: scan: %w", err)
		}
		out[teamID] = vol
	}
	return out, rows.Err()
}

// mustAffect devuelve notFound si la sentencia no tocó ninguna fila.
func mustAffect(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
