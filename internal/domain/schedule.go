package domain

import (
	"sort"
	"time"
)

// ClaimKind distingue por qué un partido reclamó el schedule de un equipo.
type ClaimKind int

const (
	ClaimFuture ClaimKind = iota + 1 // próximo partido programado
	ClaimLock                        // en juego o recién terminado: fija el schedule
)

// ScheduleClaim es el next_opponent/next_game_at que se escribirá para un equipo.
type ScheduleClaim struct {
	Ticker   string
	Opponent string
	GameID   string
	At       time.Time
	Kind     ClaimKind
}

// ScheduleClaims es el acumulador del fold: ticker → claim.
type ScheduleClaims map[string]ScheduleClaim

// Tickers devuelve los tickers reclamados en orden estable.
func (c ScheduleClaims) Tickers() []string {
	out := make([]string, 0, len(c))
	for t := range c {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// PlanSchedule recorre los partidos en el orden del feed y decide qué partido
// apunta cada equipo. Es un fold explícito sobre el set de tickers reclamados:
//   - un partido en juego o terminado dentro de window reclama a ambos equipos y
//     pisa cualquier claim futuro previo (el primer lock gana entre locks);
//   - un partido futuro solo reclama equipos sin claim: el primero en orden del
//     feed gana y los posteriores no lo sobreescriben.
func PlanSchedule(games []Game, now time.Time, window time.Duration) ScheduleClaims {
	claims := make(ScheduleClaims)
	for _, g := range games {
		claims = claimGame(claims, g, now, window)
	}
	return claims
}

func claimGame(claims ScheduleClaims, g Game, now time.Time, window time.Duration) ScheduleClaims {
	var kind ClaimKind
	switch {
	case isLockGame(g, now, window):
		kind = ClaimLock
	case isFutureGame(g, now):
		kind = ClaimFuture
	default:
		return claims
	}

	for i, c := range g.Competitors {
		if c.Ticker == "" {
			continue
		}
		prev, claimed := claims[c.Ticker]
		if claimed && (kind == ClaimFuture || prev.Kind == ClaimLock) {
			continue
		}
		claims[c.Ticker] = ScheduleClaim{
			Ticker:   c.Ticker,
			Opponent: g.Competitors[1-i].Ticker,
			GameID:   g.ID,
			At:       g.StartAt,
			Kind:     kind,
		}
	}
	return claims
}

func isLockGame(g Game, now time.Time, window time.Duration) bool {
	if g.State == GameLive {
		return true
	}
	return g.IsFinal() && now.Sub(g.FinishedAt()) < window
}

func isFutureGame(g Game, now time.Time) bool {
	return !g.Completed && g.State == GamePre && g.StartAt.After(now)
}
