package espn

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/teamshares/internal/domain"
)

// mapEvent convierte un event del scoreboard a domain.Game.
// Errores de parseo son por partido: el caller lo loguea y sigue.
func mapEvent(league string, e event) (domain.Game, error) {
	if e.ID == "" {
		return domain.Game{}, fmt.Errorf("event without id: %w", domain.ErrFeedParse)
	}
	state, err := domain.ParseGameState(e.Status.Type.State)
	if err != nil {
		return domain.Game{}, fmt.Errorf("event %s: %w", e.ID, err)
	}
	if len(e.Competitions) == 0 {
		return domain.Game{}, fmt.Errorf("event %s: no competitions: %w", e.ID, domain.ErrFeedParse)
	}
	comp := e.Competitions[0]
	if len(comp.Competitors) != 2 {
		return domain.Game{}, fmt.Errorf("event %s: %d competitors: %w", e.ID, len(comp.Competitors), domain.ErrFeedParse)
	}

	date := comp.Date
	if date == "" {
		date = e.Date
	}
	start, err := parseDate(date)
	if err != nil {
		return domain.Game{}, fmt.Errorf("event %s: date %q: %w", e.ID, date, domain.ErrFeedParse)
	}

	g := domain.Game{
		ID:        e.ID,
		League:    league,
		StartAt:   start,
		State:     state,
		Completed: e.Status.Type.Completed,
	}
	for i, c := range comp.Competitors {
		mc, err := mapCompetitor(c)
		if err != nil {
			return domain.Game{}, fmt.Errorf("event %s: %w", e.ID, err)
		}
		g.Competitors[i] = mc
	}
	return g, nil
}

func mapCompetitor(c competitor) (domain.Competitor, error) {
	if c.Team.Abbreviation == "" {
		return domain.Competitor{}, fmt.Errorf("competitor without abbreviation: %w", domain.ErrFeedParse)
	}
	mc := domain.Competitor{
		Ticker:   strings.ToUpper(strings.TrimSpace(c.Team.Abbreviation)),
		HomeAway: domain.HomeAway(c.HomeAway),
		IsWinner: c.Winner,
	}
	// score vacío es normal antes del partido
	if s := strings.TrimSpace(c.Score); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return domain.Competitor{}, fmt.Errorf("score %q: %w", c.Score, domain.ErrFeedParse)
		}
		mc.Score = n
	}
	for _, r := range c.Records {
		if strings.EqualFold(r.Name, "overall") || strings.EqualFold(r.Type, "total") {
			mc.OverallRecord = r.Summary
			break
		}
	}
	return mc, nil
}

// parseDate acepta los formatos que usa ESPN (sin segundos la mayoría de veces).
func parseDate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range []string{
		"2006-01-02T15:04Z07:00",
		time.RFC3339,
		"2006-01-02T15:04:05.000Z07:00",
	} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// collectStandings aplana el árbol de standings en filas.
// Un equipo que aparece en varios niveles se cuenta una vez.
func collectStandings(root standingsNode) ([]domain.StandingRow, error) {
	var (
		rows []domain.StandingRow
		seen = make(map[string]bool)
	)
	var walk func(n standingsNode) error
	walk = func(n standingsNode) error {
		if n.Standings != nil {
			for _, e := range n.Standings.Entries {
				row, err := mapEntry(e)
				if err != nil {
					return err
				}
				if seen[row.ProviderTicker] {
					continue
				}
				seen[row.ProviderTicker] = true
				rows = append(rows, row)
			}
		}
		for _, ch := range n.Children {
			if err := walk(ch); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return rows, nil
}

// mapEntry lee wins/losses y suma ties + otLosses como tercer componente
// del récord (W-L-OTL en NHL, W-L-T en NFL).
func mapEntry(e standingsEntry) (domain.StandingRow, error) {
	if e.Team.Abbreviation == "" {
		return domain.StandingRow{}, fmt.Errorf("standings entry without abbreviation: %w", domain.ErrFeedParse)
	}
	var rec domain.Record
	var hasWins, hasLosses bool
	for _, s := range e.Stats {
		v := int(s.Value)
		switch s.Name {
		case "wins":
			rec.Wins, hasWins = v, true
		case "losses":
			rec.Losses, hasLosses = v, true
		case "ties", "otLosses":
			rec.Ties += v
		}
	}
	if !hasWins || !hasLosses {
		return domain.StandingRow{}, fmt.Errorf("standings entry %s: missing wins/losses: %w",
			e.Team.Abbreviation, domain.ErrFeedParse)
	}
	if rec.Wins < 0 || rec.Losses < 0 || rec.Ties < 0 {
		return domain.StandingRow{}, fmt.Errorf("standings entry %s: negative record: %w",
			e.Team.Abbreviation, domain.ErrFeedParse)
	}
	return domain.StandingRow{
		ProviderTicker: strings.ToUpper(strings.TrimSpace(e.Team.Abbreviation)),
		Name:           e.Team.DisplayName,
		Record:         rec,
	}, nil
}
