package espn

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/teamshares/internal/domain"
)

// FetchStandings devuelve el récord de todos los equipos de la liga.
// GET {base}/v2/sports/{sport}/standings
func (c *Client) FetchStandings(ctx context.Context, league string) ([]domain.StandingRow, error) {
	sport, err := c.sportPath(league)
	if err != nil {
		return nil, fmt.Errorf("espn.FetchStandings: %w", err)
	}

	var root standingsNode
	url := fmt.Sprintf("%s/v2/sports/%s/standings", c.baseURL, sport)
	if err := c.get(ctx, url, &root); err != nil {
		return nil, fmt.Errorf("espn.FetchStandings: %s: %w", league, err)
	}

	rows, err := collectStandings(root)
	if err != nil {
		return nil, fmt.Errorf("espn.FetchStandings: %s: %w", league, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("espn.FetchStandings: %s: empty standings: %w", league, domain.ErrFeedParse)
	}
	return rows, nil
}

// FetchSchedule devuelve los partidos entre from y to (fechas inclusive) en el
// orden del feed. Los partidos que no se pueden parsear se loguean y se omiten.
// GET {base}/site/v2/sports/{sport}/scoreboard?dates=YYYYMMDD-YYYYMMDD
func (c *Client) FetchSchedule(ctx context.Context, league string, from, to time.Time) ([]domain.Game, error) {
	sport, err := c.sportPath(league)
	if err != nil {
		return nil, fmt.Errorf("espn.FetchSchedule: %w", err)
	}
	if to.Before(from) {
		from, to = to, from
	}

	var resp scoreboardResponse
	url := fmt.Sprintf("%s/site/v2/sports/%s/scoreboard?dates=%s-%s&limit=500",
		c.baseURL, sport, from.Format("20060102"), to.Format("20060102"))
	if err := c.get(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("espn.FetchSchedule: %s: %w", league, err)
	}

	games := make([]domain.Game, 0, len(resp.Events))
	for _, e := range resp.Events {
		g, err := mapEvent(league, e)
		if err != nil {
			slog.Warn("skipping unparseable game", "league", league, "event", e.ID, "err", err)
			continue
		}
		games = append(games, g)
	}
	return games, nil
}
