package settlement

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alejandrodnm/teamshares/internal/domain"
)

// syncStandings sobreescribe el récord de cada equipo (last-write-wins).
// Devuelve los tickers cubiertos para no pisarlos con el scoreboard.
func (s *Syncer) syncStandings(ctx context.Context, league string, lc LeagueConfig, r *domain.SyncReport) (map[string]bool, error) {
	rows, err := s.feed.FetchStandings(ctx, league)
	if err != nil {
		return nil, err
	}

	covered := make(map[string]bool, len(rows))
	for _, row := range rows {
		ticker := s.tickers.Normalize(league, row.ProviderTicker)
		team, err := s.resolveTeam(ctx, league, ticker, row.Name, lc.AutoCreateTeams)
		if err != nil {
			slog.Warn("standings: team not resolved",
				"league", league, "provider", row.ProviderTicker, "ticker", ticker, "err", err)
			r.Errors++
			continue
		}
		if err := s.store.UpdateRecord(ctx, team.ID, row.Record); err != nil {
			slog.Warn("standings: update failed", "league", league, "ticker", ticker, "err", err)
			r.Errors++
			continue
		}
		covered[ticker] = true
		r.TeamsUpdated++
	}
	return covered, nil
}

func (s *Syncer) resolveTeam(ctx context.Context, league, ticker, name string, create bool) (domain.Team, error) {
	if create {
		return s.store.EnsureTeam(ctx, league, ticker, name)
	}
	return s.store.TeamByTicker(ctx, league, ticker)
}

// normalizeGames traduce los tickers de ambos competidores.
func (s *Syncer) normalizeGames(league string, games []domain.Game) []domain.Game {
	out := make([]domain.Game, 0, len(games))
	for _, g := range games {
		for i := range g.Competitors {
			g.Competitors[i].Ticker = s.tickers.Normalize(league, g.Competitors[i].Ticker)
		}
		out = append(out, g)
	}
	return out
}

// cacheGames guarda los partidos para el gate y recupera completed_at.
// Si el upsert falla el partido sigue en el ciclo con la estimación local.
func (s *Syncer) cacheGames(ctx context.Context, games []domain.Game, now time.Time, maxDuration time.Duration, r *domain.SyncReport) []domain.Game {
	out := make([]domain.Game, 0, len(games))
	for _, g := range games {
		if g.IsFinal() && g.CompletedAt == nil {
			done := g.EstimateCompletion(now, maxDuration)
			g.CompletedAt = &done
		}
		saved, err := s.store.UpsertGame(ctx, g, now)
		if err != nil {
			slog.Warn("game cache failed", "game", g.ID, "err", err)
			r.Errors++
			out = append(out, g)
			continue
		}
		// los overall records no se persisten en la cache
		saved.Competitors[0].OverallRecord = g.Competitors[0].OverallRecord
		saved.Competitors[1].OverallRecord = g.Competitors[1].OverallRecord
		out = append(out, saved)
	}
	return out
}

// applySchedule escribe next_opponent/next_game_at según el fold.
func (s *Syncer) applySchedule(ctx context.Context, league string, claims domain.ScheduleClaims, r *domain.SyncReport) {
	for _, ticker := range claims.Tickers() {
		claim := claims[ticker]
		team, err := s.store.TeamByTicker(ctx, league, ticker)
		if errors.Is(err, domain.ErrTeamNotFound) {
			slog.Debug("schedule: unknown team", "league", league, "ticker", ticker)
			continue
		}
		if err == nil {
			err = s.store.SetSchedule(ctx, team.ID, claim)
		}
		if err != nil {
			slog.Warn("schedule: update failed", "league", league, "ticker", ticker, "err", err)
			r.Errors++
		}
	}
}

// applyOverallRecords usa el "W-L-T" del scoreboard para los equipos que el
// standings no cubrió. Un récord malformado se salta solo para ese equipo.
func (s *Syncer) applyOverallRecords(ctx context.Context, league string, games []domain.Game, covered map[string]bool, r *domain.SyncReport) {
	for _, g := range games {
		for _, c := range g.Competitors {
			if c.OverallRecord == "" || covered[c.Ticker] {
				continue
			}
			covered[c.Ticker] = true

			rec, err := domain.ParseRecord(c.OverallRecord)
			if err != nil {
				slog.Warn("malformed record", "league", league, "ticker", c.Ticker, "record", c.OverallRecord)
				r.Errors++
				continue
			}
			team, err := s.store.TeamByTicker(ctx, league, c.Ticker)
			if errors.Is(err, domain.ErrTeamNotFound) {
				continue
			}
			if err == nil {
				err = s.store.UpdateRecord(ctx, team.ID, rec)
			}
			if err != nil {
				slog.Warn("record update failed", "league", league, "ticker", c.Ticker, "err", err)
				r.Errors++
				continue
			}
			r.TeamsUpdated++
		}
	}
}

// settle procesa un partido terminado detrás del fence.
func (s *Syncer) settle(ctx context.Context, league string, g domain.Game, now time.Time, r *domain.SyncReport) {
	done, err := s.store.ProcessedGameExists(ctx, g.ID)
	if err != nil {
		slog.Warn("fence check failed", "game", g.ID, "err", err)
		r.Errors++
		return
	}
	if done {
		r.GamesSkipped++
		return
	}

	fence := domain.ProcessedGame{GameID: g.ID, League: league, ProcessedAt: now}
	winner, ok := g.Winner()
	if ok {
		team, err := s.store.TeamByTicker(ctx, league, winner)
		if err != nil {
			// sin fence: se reintenta en el próximo run
			slog.Warn("winner not resolved, game left pending", "league", league, "game", g.ID, "winner", winner, "err", err)
			r.Errors++
			return
		}
		fence.WinnerID = &team.ID
	} else {
		slog.Info("game without winner, fencing only", "league", league, "game", g.ID)
	}

	payout, settled, err := s.settler.SettleGame(ctx, fence)
	if err != nil {
		slog.Warn("settle failed", "league", league, "game", g.ID, "err", err)
		r.Errors++
		return
	}
	if !settled {
		r.GamesSkipped++
		return
	}
	r.GamesProcessed++
	// un ganador sin holders o con el bank vacío no cuenta como payout
	if payout.Distributed.IsPositive() {
		r.PayoutsIssued++
	}
}

// countLocked evalúa el gate de cada equipo de la liga con los partidos del ciclo.
func (s *Syncer) countLocked(ctx context.Context, league string, games []domain.Game, now time.Time, gate domain.GateConfig) int {
	teams, err := s.store.ListTeams(ctx, league)
	if err != nil {
		slog.Warn("gate summary failed", "league", league, "err", err)
		return 0
	}
	locked := 0
	for _, t := range teams {
		st := domain.EvaluateGate(games, t.Ticker, now, gate)
		if !st.Open() {
			locked++
			slog.Debug("market locked", "league", league, "ticker", t.Ticker, "reason", st.Reason, "game", st.GameID)
		}
	}
	return locked
}
