package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/teamshares/internal/domain"
	"github.com/shopspring/decimal"
)

// LedgerStore persiste equipos, usuarios, holdings, el audit log y el fence
// de partidos procesados. Las mutaciones de supply/bank/saldos solo ocurren
// dentro de WithTx.
type LedgerStore interface {
	// WithTx ejecuta fn en una transacción. Commit si fn devuelve nil,
	// rollback en cualquier otro caso.
	WithTx(ctx context.Context, fn func(tx LedgerTx) error) error

	GetTeam(ctx context.Context, teamID int64) (domain.Team, error)
	TeamByTicker(ctx context.Context, league, ticker string) (domain.Team, error)
	ListTeams(ctx context.Context, league string) ([]domain.Team, error)
	// EnsureTeam crea el equipo si no existe y devuelve su estado actual.
	EnsureTeam(ctx context.Context, league, ticker, name string) (domain.Team, error)

	GetUser(ctx context.Context, userID string) (domain.User, error)
	CreateUser(ctx context.Context, userID string, balance decimal.Decimal) (domain.User, error)
	GetHolding(ctx context.Context, userID string, teamID int64) (domain.Holding, error)

	// UpdateRecord sobreescribe wins/losses/ties (last-write-wins).
	UpdateRecord(ctx context.Context, teamID int64, rec domain.Record) error
	// SetSchedule fija next_opponent/next_game_at.
	SetSchedule(ctx context.Context, teamID int64, claim domain.ScheduleClaim) error

	// UpsertGame cachea un partido del feed. completed_at se fija la primera
	// vez que se ve terminado y no se vuelve a tocar; el partido devuelto lo trae.
	UpsertGame(ctx context.Context, g domain.Game, seenAt time.Time) (domain.Game, error)
	RecentGames(ctx context.Context, league, ticker string, since time.Time) ([]domain.Game, error)

	ProcessedGameExists(ctx context.Context, gameID string) (bool, error)

	ListTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error)
	// VolumeSince devuelve teamID → shares negociados (BUY+SELL) desde since.
	VolumeSince(ctx context.Context, league string, since time.Time) (map[int64]int64, error)

	Close() error
}

// LedgerTx son las operaciones disponibles dentro de una transacción.
type LedgerTx interface {
	// LockTeam lee el equipo serializando escritores concurrentes sobre la fila.
	LockTeam(ctx context.Context, teamID int64) (domain.Team, error)
	GetUser(ctx context.Context, userID string) (domain.User, error)
	GetHolding(ctx context.Context, userID string, teamID int64) (domain.Holding, error)
	ListHoldings(ctx context.Context, teamID int64) ([]domain.Holding, error)
	TeamGames(ctx context.Context, league, ticker string, since time.Time) ([]domain.Game, error)

	SetTeamSupply(ctx context.Context, teamID, supply int64) error
	SetDividendBank(ctx context.Context, teamID int64, bank decimal.Decimal) error
	SetUserBalance(ctx context.Context, userID string, balance decimal.Decimal) error
	SetHolding(ctx context.Context, h domain.Holding) error
	AppendTransaction(ctx context.Context, t domain.Transaction) error

	// InsertProcessedGame inserta el fence. Devuelve false si el game_id ya
	// existía (otro run lo procesó): no es un error.
	InsertProcessedGame(ctx context.Context, pg domain.ProcessedGame) (bool, error)
}
