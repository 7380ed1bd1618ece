package domain

import (
	"fmt"
	"time"
)

// GameState es el conjunto cerrado de estados que aceptamos del feed.
// Cualquier otro valor se rechaza en el adapter.
type GameState int

const (
	GamePre GameState = iota + 1
	GameLive
	GameFinal
)

func (s GameState) String() string {
	switch s {
	case GamePre:
		return "pre"
	case GameLive:
		return "in"
	case GameFinal:
		return "post"
	default:
		return "unknown"
	}
}

// ParseGameState mapea los estados del feed (pre|in|post).
func ParseGameState(s string) (GameState, error) {
	switch s {
	case "pre":
		return GamePre, nil
	case "in":
		return GameLive, nil
	case "post":
		return GameFinal, nil
	}
	return 0, fmt.Errorf("game state %q: %w", s, ErrFeedParse)
}

// HomeAway indica el lado del competidor.
type HomeAway string

const (
	Home HomeAway = "home"
	Away HomeAway = "away"
)

// Competitor es uno de los dos lados de un partido.
type Competitor struct {
	Ticker        string // provider ticker en el adapter, canónico tras normalizar
	HomeAway      HomeAway
	Score         int
	IsWinner      bool
	OverallRecord string // "W-L-T" tal cual viene del scoreboard, puede estar vacío
}

// Game es un partido del schedule/scoreboard.
// CompletedAt solo tiene sentido para GameFinal: es cuando el sync lo vio
// terminado por primera vez (el feed no da hora de fin).
type Game struct {
	ID          string
	League      string
	StartAt     time.Time
	State       GameState
	Completed   bool
	Competitors [2]Competitor
	CompletedAt *time.Time
}

// Involves devuelve true si el ticker juega este partido.
func (g Game) Involves(ticker string) bool {
	return g.Competitors[0].Ticker == ticker || g.Competitors[1].Ticker == ticker
}

// Opponent devuelve el rival de ticker, o "" si no juega.
func (g Game) Opponent(ticker string) string {
	switch ticker {
	case g.Competitors[0].Ticker:
		return g.Competitors[1].Ticker
	case g.Competitors[1].Ticker:
		return g.Competitors[0].Ticker
	}
	return ""
}

// IsFinal devuelve true para partidos terminados.
func (g Game) IsFinal() bool {
	return g.State == GameFinal && g.Completed
}

// DefaultMaxGameDuration acota cuánto puede durar un partido cuando el feed no
// da la hora de fin.
const DefaultMaxGameDuration = 5 * time.Hour

// EstimateCompletion devuelve la hora de fin a guardar para un partido visto
// terminado en seenAt: nunca más tarde que StartAt+maxDuration, para que un
// final de otro día visto tras un hueco de sync no parezca recién terminado.
func (g Game) EstimateCompletion(seenAt time.Time, maxDuration time.Duration) time.Time {
	if maxDuration <= 0 {
		maxDuration = DefaultMaxGameDuration
	}
	if bound := g.StartAt.Add(maxDuration); bound.Before(seenAt) {
		return bound
	}
	return seenAt
}

// FinishedAt devuelve la mejor estimación de cuándo terminó el partido.
func (g Game) FinishedAt() time.Time {
	if g.CompletedAt != nil {
		return *g.CompletedAt
	}
	return g.StartAt.Add(DefaultMaxGameDuration)
}

// Winner devuelve el ticker ganador de un partido terminado.
// Prioridad: flag winner del feed (si exactamente uno lo tiene), si no el
// marcador más alto. Empate → ok=false.
func (g Game) Winner() (ticker string, ok bool) {
	if !g.IsFinal() {
		return "", false
	}
	a, b := g.Competitors[0], g.Competitors[1]
	switch {
	case a.IsWinner && !b.IsWinner:
		return a.Ticker, true
	case b.IsWinner && !a.IsWinner:
		return b.Ticker, true
	case a.Score > b.Score:
		return a.Ticker, true
	case b.Score > a.Score:
		return b.Ticker, true
	}
	return "", false
}
