package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/teamshares/internal/domain"
)

const gameColumns = `id, league, start_at, state, completed,
	c0_ticker, c0_side, c0_score, c0_winner,
	c1_ticker, c1_side, c1_score, c1_winner, completed_at`

func scanGame(r rowScanner) (domain.Game, error) {
	var (
		g                  domain.Game
		startAt            string
		completedAt        sql.NullString
		completed          int
		c0Side, c1Side     string
		c0Winner, c1Winner int
		state              int
	)
	err := r.Scan(&g.ID, &g.League, &startAt, &state, &completed,
		&g.Competitors[0].Ticker, &c0Side, &g.Competitors[0].Score, &c0Winner,
		&g.Competitors[1].Ticker, &c1Side, &g.Competitors[1].Score, &c1Winner,
		&completedAt,
	)
	if err != nil {
		return domain.Game{}, err
	}
	if g.StartAt, err = parseTS(startAt); err != nil {
		return domain.Game{}, fmt.Errorf("game %s start_at: %w", g.ID, err)
	}
	if g.CompletedAt, err = scanNullTS(completedAt); err != nil {
		return domain.Game{}, fmt.Errorf("game %s completed_at: %w", g.ID, err)
	}
	g.State = domain.GameState(state)
	g.Completed = completed == 1
	g.Competitors[0].HomeAway = domain.HomeAway(c0Side)
	g.Competitors[0].IsWinner = c0Winner == 1
	g.Competitors[1].HomeAway = domain.HomeAway(c1Side)
	g.Competitors[1].IsWinner = c1Winner == 1
	return g, nil
}

// UpsertGame cachea un partido. completed_at se fija la primera vez que el
// partido llega terminado (g.CompletedAt si viene, si no la estimación desde
// seenAt) y después se conserva.
func (s *Store) UpsertGame(ctx context.Context, g domain.Game, seenAt time.Time) (domain.Game, error) {
	var completedAt any
	if g.IsFinal() {
		done := g.EstimateCompletion(seenAt, domain.DefaultMaxGameDuration)
		if g.CompletedAt != nil {
			done = *g.CompletedAt
		}
		completedAt = formatTS(done)
	}
	c0, c1 := g.Competitors[0], g.Competitors[1]

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO games (id, league, start_at, state, completed,
			c0_ticker, c0_side, c0_score, c0_winner,
			c1_ticker, c1_side, c1_score, c1_winner,
			completed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			start_at     = excluded.start_at,
			state        = excluded.state,
			completed    = excluded.completed,
			c0_ticker    = excluded.c0_ticker,
			c0_side      = excluded.c0_side,
			c0_score     = excluded.c0_score,
			c0_winner    = excluded.c0_winner,
			c1_ticker    = excluded.c1_ticker,
			c1_side      = excluded.c1_side,
			c1_score     = excluded.c1_score,
			c1_winner    = excluded.c1_winner,
			completed_at = COALESCE(games.completed_at, excluded.completed_at),
			updated_at   = excluded.updated_at`),
		g.ID, g.League, formatTS(g.StartAt), int(g.State), boolInt(g.Completed),
		c0.Ticker, string(c0.HomeAway), c0.Score, boolInt(c0.IsWinner),
		c1.Ticker, string(c1.HomeAway), c1.Score, boolInt(c1.IsWinner),
		completedAt, formatTS(seenAt),
	)
	if err != nil {
		return domain.Game{}, fmt.Errorf("storage.UpsertGame: %s: %w", g.ID, err)
	}

	saved, err := scanGame(s.db.QueryRowContext(ctx, s.q(`SELECT `+gameColumns+` FROM games WHERE id = ?`), g.ID))
	if err != nil {
		return domain.Game{}, fmt.Errorf("storage.UpsertGame: reload %s: %w", g.ID, err)
	}
	return saved, nil
}

func teamGames(ctx context.Context, q querier, d dialect, league, ticker string, since time.Time) ([]domain.Game, error) {
	rows, err := q.QueryContext(ctx, rebind(d, `
		SELECT `+gameColumns+`
		FROM games
		WHERE league = ? AND (c0_ticker = ? OR c1_ticker = ?) AND start_at >= ?
		ORDER BY start_at, id`),
		league, ticker, ticker, formatTS(since),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// RecentGames devuelve los partidos cacheados de ticker que empezaron desde since.
func (s *Store) RecentGames(ctx context.Context, league, ticker string, since time.Time) ([]domain.Game, error) {
	games, err := teamGames(ctx, s.db, s.dialect, league, ticker, since)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentGames: %w", err)
	}
	return games, nil
}

// ProcessedGameExists consulta el fence sin tomar locks. Solo sirve como
// atajo: la decisión definitiva la toma InsertProcessedGame.
func (s *Store) ProcessedGameExists(ctx context.Context, gameID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM processed_games WHERE game_id = ?`), gameID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("storage.ProcessedGameExists: %w", err)
	}
	return n > 0, nil
}
