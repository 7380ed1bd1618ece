package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/teamshares/internal/domain"
	"github.com/alejandrodnm/teamshares/internal/ports"
)

const (
	defaultGateLookback = 48 * time.Hour
	publishTimeout      = 5 * time.Second
)

// Config contiene la configuración del exchange.
type Config struct {
	Curve           domain.Curve
	DefaultGate     domain.GateConfig
	Gates           map[string]domain.GateConfig // por liga; las ausentes usan DefaultGate
	GateLookback    time.Duration                // cuánto historial de partidos mira el gate
	StartingBalance decimal.Decimal              // saldo de los usuarios nuevos
}

// DefaultConfig devuelve la curva y el gate de producción.
func DefaultConfig() Config {
	return Config{
		Curve:        domain.DefaultCurve(),
		DefaultGate:  domain.DefaultGateConfig(),
		GateLookback: defaultGateLookback,
	}
}

// Service ejecuta trades y payouts sobre el LedgerStore. Cada mutación de
// supply o bank de un equipo pasa por su lock en memoria y por una
// transacción con el equipo bloqueado.
type Service struct {
	cfg    Config
	store  ports.LedgerStore
	events ports.EventPublisher
	locks  *teamLocks
	now    func() time.Time
}

// New crea un Service con las dependencias inyectadas. events puede ser nil.
func New(cfg Config, store ports.LedgerStore, events ports.EventPublisher) *Service {
	if cfg.Curve.Base.IsZero() && cfg.Curve.Slope.IsZero() {
		cfg.Curve = domain.DefaultCurve()
	}
	if cfg.DefaultGate.SettlementWindow <= 0 {
		cfg.DefaultGate = domain.DefaultGateConfig()
	}
	if cfg.GateLookback <= 0 {
		cfg.GateLookback = defaultGateLookback
	}
	return &Service{
		cfg:    cfg,
		store:  store,
		events: events,
		locks:  newTeamLocks(),
		now:    time.Now,
	}
}

// SetClock reemplaza el reloj (tests y replays).
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Curve devuelve la curva de precios en uso.
func (s *Service) Curve() domain.Curve {
	return s.cfg.Curve
}

// GateFor devuelve la configuración del gate de una liga.
func (s *Service) GateFor(league string) domain.GateConfig {
	if g, ok := s.cfg.Gates[strings.ToUpper(league)]; ok {
		return g
	}
	return s.cfg.DefaultGate
}

// Quote cotiza sin mutar nada.
func (s *Service) Quote(ctx context.Context, teamID int64, side domain.Side, qty int64) (domain.Quote, error) {
	team, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("exchange.Quote: %w", err)
	}
	q, err := s.cfg.Curve.QuoteSide(side, team.SharesOutstanding, qty)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("exchange.Quote: %s: %w", team.Ticker, err)
	}
	return q, nil
}

// MarketState evalúa el gate del equipo con los partidos cacheados.
func (s *Service) MarketState(ctx context.Context, teamID int64) (domain.MarketState, error) {
	team, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		return domain.MarketState{}, fmt.Errorf("exchange.MarketState: %w", err)
	}
	now := s.now()
	games, err := s.store.RecentGames(ctx, team.League, team.Ticker, now.Add(-s.cfg.GateLookback))
	if err != nil {
		return domain.MarketState{}, fmt.Errorf("exchange.MarketState: %w", err)
	}
	return domain.EvaluateGate(games, team.Ticker, now, s.GateFor(team.League)), nil
}

// Summary calcula los destacados de mercado de una liga con volumen de 24h.
func (s *Service) Summary(ctx context.Context, league string) (domain.MarketSummary, error) {
	league = strings.ToUpper(league)
	teams, err := s.store.ListTeams(ctx, league)
	if err != nil {
		return domain.MarketSummary{}, fmt.Errorf("exchange.Summary: %w", err)
	}
	now := s.now()
	volumes, err := s.store.VolumeSince(ctx, league, now.Add(-24*time.Hour))
	if err != nil {
		return domain.MarketSummary{}, fmt.Errorf("exchange.Summary: %w", err)
	}
	return domain.Summarize(league, teams, volumes, s.cfg.Curve, now), nil
}

// publish envía el evento tras el commit. Un fallo solo se loguea: el trade
// ya es definitivo.
func (s *Service) publish(ctx context.Context, topic string, event any) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.events.Publish(ctx, topic, event); err != nil {
		slog.Warn("event publish failed", "topic", topic, "err", err)
	}
}

// Team devuelve un equipo.
func (s *Service) Team(ctx context.Context, teamID int64) (domain.Team, error) {
	t, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		return domain.Team{}, fmt.Errorf("exchange.Team: %w", err)
	}
	return t, nil
}

// Teams lista los equipos de una liga (todas si league es "").
func (s *Service) Teams(ctx context.Context, league string) ([]domain.Team, error) {
	teams, err := s.store.ListTeams(ctx, strings.ToUpper(league))
	if err != nil {
		return nil, fmt.Errorf("exchange.Teams: %w", err)
	}
	return teams, nil
}

// User devuelve un usuario.
func (s *Service) User(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("exchange.User: %w", err)
	}
	return u, nil
}

// Transactions devuelve el audit log del usuario, más reciente primero.
func (s *Service) Transactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("exchange.Transactions: %w", err)
	}
	txs, err := s.store.ListTransactions(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("exchange.Transactions: %w", err)
	}
	return txs, nil
}
