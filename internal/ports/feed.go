package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/teamshares/internal/domain"
)

// FeedProvider obtiene standings y schedule del feed deportivo externo.
// Los tickers devueltos son los del proveedor, sin normalizar.
type FeedProvider interface {
	FetchStandings(ctx context.Context, league string) ([]domain.StandingRow, error)
	// FetchSchedule devuelve los partidos entre from y to (ambos inclusive, por
	// fecha), en el orden del feed.
	FetchSchedule(ctx context.Context, league string, from, to time.Time) ([]domain.Game, error)
}

// TickerNormalizer mapea tickers del feed a tickers canónicos por liga.
type TickerNormalizer interface {
	Normalize(league, providerTicker string) string
}
