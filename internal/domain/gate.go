package domain

import "time"

// MarketStatus es OPEN o LOCKED.
type MarketStatus string

const (
	MarketOpen   MarketStatus = "OPEN"
	MarketLocked MarketStatus = "LOCKED"
)

// Razones de bloqueo.
const (
	ReasonGameInProgress  = "game in progress"
	ReasonPayoutPending   = "payout pending"
	ReasonOvernightPayout = "overnight payout pending"
)

// MarketState es el estado del gate. No se persiste: se recalcula en cada BUY.
type MarketState struct {
	Status MarketStatus
	Reason string
	GameID string // partido que provocó el bloqueo, vacío si OPEN
}

// Open devuelve true si se aceptan compras.
func (m MarketState) Open() bool { return m.Status == MarketOpen }

// GateConfig parametriza el gate por liga.
type GateConfig struct {
	SettlementWindow time.Duration
	CutoffHour       int
	Location         *time.Location
	MaxGameDuration  time.Duration // tope para estimar la hora de fin; 0 = DefaultMaxGameDuration
}

// DefaultGateConfig: ventana de 6h, corte a las 06:00 hora del Este.
func DefaultGateConfig() GateConfig {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return GateConfig{SettlementWindow: 6 * time.Hour, CutoffHour: 6, Location: loc, MaxGameDuration: DefaultMaxGameDuration}
}

func (c GateConfig) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// EvaluateGate deriva el estado del mercado de ticker a partir de sus partidos.
// Las reglas se evalúan en orden; gana la primera que bloquee.
//  1. partido en juego → LOCKED (game in progress)
//  2. terminado hoy (fecha del feed) y dentro de la ventana → LOCKED (payout pending)
//  3. terminado y no se ha cruzado el corte diario desde entonces → LOCKED (overnight)
//  4. OPEN
func EvaluateGate(games []Game, ticker string, now time.Time, cfg GateConfig) MarketState {
	loc := cfg.location()

	for _, g := range games {
		if g.Involves(ticker) && g.State == GameLive {
			return MarketState{Status: MarketLocked, Reason: ReasonGameInProgress, GameID: g.ID}
		}
	}

	today := dateOf(now, loc)
	for _, g := range games {
		if !g.Involves(ticker) || !g.IsFinal() {
			continue
		}
		if dateOf(g.StartAt, loc) == today && now.Sub(g.FinishedAt()) < cfg.SettlementWindow {
			return MarketState{Status: MarketLocked, Reason: ReasonPayoutPending, GameID: g.ID}
		}
	}

	for _, g := range games {
		if !g.Involves(ticker) || !g.IsFinal() {
			continue
		}
		if now.Before(NextCutoff(g.FinishedAt(), cfg.CutoffHour, loc)) {
			return MarketState{Status: MarketLocked, Reason: ReasonOvernightPayout, GameID: g.ID}
		}
	}

	return MarketState{Status: MarketOpen}
}

// NextCutoff devuelve el primer instante a cutoffHour (hora local) estrictamente
// posterior a t.
func NextCutoff(t time.Time, cutoffHour int, loc *time.Location) time.Time {
	lt := t.In(loc)
	c := time.Date(lt.Year(), lt.Month(), lt.Day(), cutoffHour, 0, 0, 0, loc)
	if !c.After(lt) {
		c = time.Date(lt.Year(), lt.Month(), lt.Day()+1, cutoffHour, 0, 0, 0, loc)
	}
	return c
}

func dateOf(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}
