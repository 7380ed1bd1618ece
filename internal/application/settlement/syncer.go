package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/teamshares/internal/domain"
	"github.com/alejandrodnm/teamshares/internal/ports"
)

// LeagueConfig parametriza el sync de una liga.
type LeagueConfig struct {
	LookbackDays    int  // días hacia atrás del scoreboard (payouts tardíos)
	LookaheadDays   int  // días hacia delante (próximos rivales)
	AutoCreateTeams bool // crear equipos que aparecen en standings y no existen
	Gate            domain.GateConfig
}

// Config contiene las ligas que se sincronizan.
type Config struct {
	Leagues map[string]LeagueConfig
}

// Settler paga un partido detrás del fence. Lo implementa exchange.Service.
type Settler interface {
	SettleGame(ctx context.Context, fence domain.ProcessedGame) (domain.Payout, bool, error)
}

// Syncer ingesta standings y scoreboard de una liga y dispara los payouts.
type Syncer struct {
	cfg     Config
	feed    ports.FeedProvider
	tickers ports.TickerNormalizer
	store   ports.LedgerStore
	settler Settler
	now     func() time.Time

	mu      sync.Mutex
	running map[string]*sync.Mutex
}

// New crea un Syncer con todas las dependencias inyectadas.
func New(cfg Config, feed ports.FeedProvider, tickers ports.TickerNormalizer, store ports.LedgerStore, settler Settler) *Syncer {
	leagues := make(map[string]LeagueConfig, len(cfg.Leagues))
	for name, lc := range cfg.Leagues {
		if lc.LookbackDays <= 0 {
			lc.LookbackDays = 1
		}
		if lc.LookaheadDays <= 0 {
			lc.LookaheadDays = 7
		}
		if lc.Gate.SettlementWindow <= 0 {
			lc.Gate = domain.DefaultGateConfig()
		}
		leagues[strings.ToUpper(name)] = lc
	}
	cfg.Leagues = leagues
	return &Syncer{
		cfg:     cfg,
		feed:    feed,
		tickers: tickers,
		store:   store,
		settler: settler,
		now:     time.Now,
		running: make(map[string]*sync.Mutex),
	}
}

// SetClock reemplaza el reloj (tests).
func (s *Syncer) SetClock(now func() time.Time) {
	s.now = now
}

// Leagues devuelve las ligas configuradas.
func (s *Syncer) Leagues() []string {
	out := make([]string, 0, len(s.cfg.Leagues))
	for l := range s.cfg.Leagues {
		out = append(out, l)
	}
	return out
}

// Loop ejecuta Run para cada liga cada interval hasta que ctx se cancele.
// El primer ciclo es inmediato.
func (s *Syncer) Loop(ctx context.Context, leagues []string, interval time.Duration) {
	slog.Info("settlement sync starting", "leagues", leagues, "interval", interval)

	runAll := func() {
		for _, l := range leagues {
			if ctx.Err() != nil {
				return
			}
			if _, err := s.Run(ctx, l); err != nil {
				slog.Error("settlement sync failed", "league", l, "err", err)
			}
		}
	}

	runAll()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("settlement sync stopped")
			return
		case <-ticker.C:
			runAll()
		}
	}
}

// leagueLock devuelve el mutex de runs de la liga.
func (s *Syncer) leagueLock(league string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.running[league]
	if !ok {
		m = &sync.Mutex{}
		s.running[league] = m
	}
	return m
}

// Run ejecuta un ciclo completo de sync para la liga.
//
// Un fallo del feed aborta el ciclo (lo ya escrito se queda). Los fallos por
// equipo o por partido se loguean, se cuentan en Errors y no paran el resto.
// Si otro run de la misma liga está en curso, devuelve Skipped sin hacer nada:
// el fence ya garantiza exactly-once, esto solo ahorra llamadas al feed.
func (s *Syncer) Run(ctx context.Context, league string) (domain.SyncReport, error) {
	league = strings.ToUpper(league)
	lc, ok := s.cfg.Leagues[league]
	if !ok {
		return domain.SyncReport{}, fmt.Errorf("settlement.Run: %q: %w", league, domain.ErrUnknownLeague)
	}

	now := s.now()
	report := domain.SyncReport{League: league, StartedAt: now}

	lock := s.leagueLock(league)
	if !lock.TryLock() {
		slog.Info("settlement sync already running, skipping", "league", league)
		report.Skipped = true
		return report, nil
	}
	defer lock.Unlock()

	start := time.Now()

	covered, err := s.syncStandings(ctx, league, lc, &report)
	if err != nil {
		report.Duration = time.Since(start)
		return report, fmt.Errorf("settlement.Run: %s: standings: %w", league, err)
	}

	from, to := scheduleRange(now, lc)
	games, err := s.feed.FetchSchedule(ctx, league, from, to)
	if err != nil {
		report.Duration = time.Since(start)
		return report, fmt.Errorf("settlement.Run: %s: schedule: %w", league, err)
	}

	games = s.normalizeGames(league, games)
	games = s.cacheGames(ctx, games, now, lc.Gate.MaxGameDuration, &report)

	s.applySchedule(ctx, league, domain.PlanSchedule(games, now, lc.Gate.SettlementWindow), &report)
	s.applyOverallRecords(ctx, league, games, covered, &report)

	for _, g := range games {
		if g.IsFinal() {
			s.settle(ctx, league, g, now, &report)
		}
	}

	report.LockedTeams = s.countLocked(ctx, league, games, now, lc.Gate)
	report.Duration = time.Since(start)

	slog.Info("settlement sync complete",
		"league", league,
		"teams_updated", report.TeamsUpdated,
		"games_processed", report.GamesProcessed,
		"payouts", report.PayoutsIssued,
		"skipped", report.GamesSkipped,
		"locked", report.LockedTeams,
		"errors", report.Errors,
		"duration", report.Duration.Round(time.Millisecond),
	)
	return report, nil
}

// scheduleRange cubre desde "ayer" (lookback) hasta lookahead días, por fecha
// local de la liga.
func scheduleRange(now time.Time, lc LeagueConfig) (time.Time, time.Time) {
	loc := lc.Gate.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return day.AddDate(0, 0, -lc.LookbackDays), day.AddDate(0, 0, lc.LookaheadDays)
}
