package storage

// sqlite.go: store del ledger sobre database/sql.
//
// Estrategia:
//   - SQLite (modernc, pure Go) por defecto; Postgres (pgx stdlib) si el DSN
//     empieza por postgres://. Las queries se escriben con `?` y se rebindean.
//   - SQLite es single-writer: una sola conexión serializa todas las
//     transacciones. En Postgres LockTeam/GetUser usan SELECT ... FOR UPDATE.
//   - Dinero como TEXT (decimal exacto), timestamps como TEXT UTC de ancho fijo
//     para que la comparación lexicográfica sea cronológica en ambos motores.
//   - Prune al arrancar: partidos cacheados con más de 30 días.

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/teamshares/internal/ports"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS teams (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    league             TEXT    NOT NULL,
    ticker             TEXT    NOT NULL,
    name               TEXT    NOT NULL DEFAULT '',
    shares_outstanding INTEGER NOT NULL DEFAULT 0 CHECK (shares_outstanding >= 0),
    dividend_bank      TEXT    NOT NULL DEFAULT '0',
    wins               INTEGER NOT NULL DEFAULT 0,
    losses             INTEGER NOT NULL DEFAULT 0,
    ties               INTEGER NOT NULL DEFAULT 0,
    next_opponent      TEXT    NOT NULL DEFAULT '',
    next_game_at       TEXT,
    next_game_id       TEXT    NOT NULL DEFAULT '',
    UNIQUE (league, ticker)
);
` + commonSchema

const postgresSchema = `
CREATE TABLE IF NOT EXISTS teams (
    id                 BIGSERIAL PRIMARY KEY,
    league             TEXT    NOT NULL,
    ticker             TEXT    NOT NULL,
    name               TEXT    NOT NULL DEFAULT '',
    shares_outstanding BIGINT  NOT NULL DEFAULT 0 CHECK (shares_outstanding >= 0),
    dividend_bank      TEXT    NOT NULL DEFAULT '0',
    wins               INTEGER NOT NULL DEFAULT 0,
    losses             INTEGER NOT NULL DEFAULT 0,
    ties               INTEGER NOT NULL DEFAULT 0,
    next_opponent      TEXT    NOT NULL DEFAULT '',
    next_game_at       TEXT,
    next_game_id       TEXT    NOT NULL DEFAULT '',
    UNIQUE (league, ticker)
);
` + commonSchema

// commonSchema es SQL compatible con ambos motores.
const commonSchema = `
CREATE TABLE IF NOT EXISTS users (
    id          TEXT PRIMARY KEY,
    usd_balance TEXT NOT NULL DEFAULT '0',
    created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS holdings (
    user_id      TEXT   NOT NULL,
    team_id      BIGINT NOT NULL,
    shares_owned BIGINT NOT NULL DEFAULT 0 CHECK (shares_owned >= 0),
    PRIMARY KEY (user_id, team_id)
);

-- audit log append-only: nunca UPDATE ni DELETE
CREATE TABLE IF NOT EXISTS transactions (
    id              TEXT   PRIMARY KEY,
    user_id         TEXT   NOT NULL,
    team_id         BIGINT NOT NULL,
    side            TEXT   NOT NULL,
    shares_amount   BIGINT NOT NULL,
    usd_amount      TEXT   NOT NULL,
    avg_share_price TEXT   NOT NULL,
    created_at      TEXT   NOT NULL
);

-- fence de idempotencia: la PK sobre game_id ES el mecanismo de exactly-once
CREATE TABLE IF NOT EXISTS processed_games (
    game_id      TEXT PRIMARY KEY,
    league       TEXT NOT NULL,
    winner_id    BIGINT,
    processed_at TEXT NOT NULL
);

-- cache local de partidos del feed: el gate lee de aquí, nunca del feed
CREATE TABLE IF NOT EXISTS games (
    id           TEXT    PRIMARY KEY,
    league       TEXT    NOT NULL,
    start_at     TEXT    NOT NULL,
    state        INTEGER NOT NULL,
    completed    INTEGER NOT NULL DEFAULT 0,
    c0_ticker    TEXT    NOT NULL,
    c0_side      TEXT    NOT NULL DEFAULT '',
    c0_score     INTEGER NOT NULL DEFAULT 0,
    c0_winner    INTEGER NOT NULL DEFAULT 0,
    c1_ticker    TEXT    NOT NULL,
    c1_side      TEXT    NOT NULL DEFAULT '',
    c1_score     INTEGER NOT NULL DEFAULT 0,
    c1_winner    INTEGER NOT NULL DEFAULT 0,
    completed_at TEXT,
    updated_at   TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tx_user      ON transactions(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_tx_team      ON transactions(team_id, created_at);
CREATE INDEX IF NOT EXISTS idx_holdings_team ON holdings(team_id);
CREATE INDEX IF NOT EXISTS idx_games_c0     ON games(league, c0_ticker, start_at);
CREATE INDEX IF NOT EXISTS idx_games_c1     ON games(league, c1_ticker, start_at);
`

const (
	retentionGames = 30 * 24 * time.Hour
	// tsLayout es de ancho fijo: "2026-01-10T20:00:00.000000Z".
	tsLayout = "2006-01-02T15:04:05.000000Z"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// Store implementa ports.LedgerStore sobre database/sql.
type Store struct {
	db      *sql.DB
	dialect dialect
}

var _ ports.LedgerStore = (*Store)(nil)

// Open abre el store según el DSN: postgres:// o postgresql:// usa pgx,
// cualquier otra cosa es una ruta SQLite (o ":memory:").
func Open(dsn string) (*Store, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return NewPostgresStorage(dsn)
	}
	return NewSQLiteStorage(dsn)
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada y aplica el schema.
func NewSQLiteStorage(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &Store{db: db, dialect: dialectSQLite}
	s.pruneOld(context.Background())
	return s, nil
}

// NewPostgresStorage conecta vía pgx stdlib y aplica el schema.
func NewPostgresStorage(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage.NewPostgresStorage: open: %w", err)
	}
	db.SetMaxOpenConns(20)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewPostgresStorage: ping: %w", err)
	}
	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewPostgresStorage: apply schema: %w", err)
	}

	s := &Store{db: db, dialect: dialectPostgres}
	s.pruneOld(context.Background())
	return s, nil
}

// WithTx ejecuta fn dentro de una transacción.
func (s *Store) WithTx(ctx context.Context, fn func(tx ports.LedgerTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.WithTx: begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&ledgerTx{tx: tx, dialect: s.dialect}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.WithTx: commit: %w", err)
	}
	return nil
}

// Close cierra la conexión a la base de datos.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// q adapta una query escrita con `?` al dialecto del store.
func (s *Store) q(query string) string {
	return rebind(s.dialect, query)
}

// rebind reemplaza `?` por `$1..$n` en Postgres.
func rebind(d dialect, query string) string {
	if d != dialectPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// forUpdate añade el lock de fila en Postgres. En SQLite la conexión única
// ya serializa.
func forUpdate(d dialect) string {
	if d == dialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}

// pruneOld elimina partidos cacheados antiguos para mantener la DB ligera.
// processed_games no se toca nunca: es el fence.
func (s *Store) pruneOld(ctx context.Context) {
	cutoff := formatTS(time.Now().Add(-retentionGames))
	s.db.ExecContext(ctx, s.q(`DELETE FROM games WHERE start_at < ?`), cutoff)
}

func formatTS(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTS(s string) (time.Time, error) {
	return time.Parse(tsLayout, s)
}

func nullTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTS(*t)
}

func scanNullTS(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTS(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
