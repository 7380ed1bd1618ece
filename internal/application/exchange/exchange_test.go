package exchange_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/teamshares/internal/adapters/storage"
	"github.com/alejandrodnm/teamshares/internal/application/exchange"
	"github.com/alejandrodnm/teamshares/internal/domain"
	"github.com/alejandrodnm/teamshares/internal/ports"
)

var now0 = time.Date(2026, 1, 10, 18, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type recordedEvent struct {
	topic string
	event any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakePublisher) Publish(_ context.Context, topic string, event any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{topic, event})
	return nil
}

func (f *fakePublisher) topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.topic
	}
	return out
}

type fixture struct {
	svc   *exchange.Service
	store *storage.Store
	pub   *fakePublisher
	team  domain.Team
}

func setup(t *testing.T) fixture {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := exchange.DefaultConfig()
	cfg.DefaultGate = domain.GateConfig{SettlementWindow: 6 * time.Hour, CutoffHour: 6, Location: time.UTC}
	cfg.StartingBalance = dec("1000")

	pub := &fakePublisher{}
	svc := exchange.New(cfg, store, pub)
	svc.SetClock(func() time.Time { return now0 })

	team, err := store.EnsureTeam(context.Background(), "NHL", "BOS", "Boston Bruins")
	require.NoError(t, err)
	return fixture{svc: svc, store: store, pub: pub, team: team}
}

func (f fixture) user(t *testing.T, id string) {
	t.Helper()
	_, err := f.svc.CreateUser(context.Background(), id)
	require.NoError(t, err)
}

func (f fixture) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	u, err := f.store.GetUser(context.Background(), id)
	require.NoError(t, err)
	return u.USDBalance
}

func (f fixture) supply(t *testing.T) int64 {
	t.Helper()
	team, err := f.store.GetTeam(context.Background(), f.team.ID)
	require.NoError(t, err)
	return team.SharesOutstanding
}

func TestExecuteTrade_BuyFromZeroSupply(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.user(t, "alice")

	res, err := f.svc.ExecuteTrade(ctx, "alice", f.team.ID, domain.SideBuy, 10)
	require.NoError(t, err)

	assert.Equal(t, "100.55", res.Total.String())
	assert.Equal(t, "10.055", res.AvgPrice.String())
	assert.Equal(t, int64(10), res.NewSupply)
	assert.True(t, res.NewSpotPrice.Equal(dec("10.10")))
	assert.Equal(t, "899.45", res.NewBalance.String())
	assert.NotEmpty(t, res.TransactionID)

	assert.Equal(t, int64(10), f.supply(t))
	assert.Equal(t, "899.45", f.balance(t, "alice").String())

	h, err := f.store.GetHolding(ctx, "alice", f.team.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), h.SharesOwned)

	txs, err := f.store.ListTransactions(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, res.TransactionID, txs[0].ID)

	assert.Equal(t, []string{ports.TopicTradeExecuted}, f.pub.topics())
}

func TestExecuteTrade_RoundTripRestoresBalance(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.user(t, "alice")

	buy, err := f.svc.ExecuteTrade(ctx, "alice", f.team.ID, domain.SideBuy, 25)
	require.NoError(t, err)
	sell, err := f.svc.ExecuteTrade(ctx, "alice", f.team.ID, domain.SideSell, 25)
	require.NoError(t, err)

	assert.True(t, buy.Total.Equal(sell.Total))
	assert.Equal(t, int64(0), f.supply(t))
	assert.True(t, f.balance(t, "alice").Equal(dec("1000")))
}

func TestExecuteTrade_Rejections(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.user(t, "alice")

	_, err := f.svc.ExecuteTrade(ctx, "alice", f.team.ID, domain.SideBuy, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.svc.ExecuteTrade(ctx, "alice", f.team.ID, domain.SideBuy, -3)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.svc.ExecuteTrade(ctx, "alice", f.team.ID, domain.SideDividend, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidSide)

	_, err = f.svc.ExecuteTrade(ctx, "alice", f.team.ID, domain.SideSell, 1)
	assert.ErrorIs(t, err, domain.ErrInsufficientShares)

	// 100 shares desde 0 cuestan 1050.50 > 1000
	_, err = f.svc.ExecuteTrade(ctx, "alice", f.team.ID, domain.SideBuy, 100)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	_, err = f.svc.ExecuteTrade(ctx, "nobody", f.team.ID, domain.SideBuy, 1)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = f.svc.ExecuteTrade(ctx, "alice", 9999, domain.SideBuy, 1)
	assert.ErrorIs(t, err, domain.ErrTeamNotFound)

	// nada se ha movido
	assert.Equal(t, int64(0), f.supply(t))
	assert.True(t, f.balance(t, "alice").Equal(dec("1000")))
	assert.Empty(t, f.pub.topics())
}

func TestExecuteTrade_MarketClosedBlocksBuyOnly(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.user(t, "alice")

	_, err := f.svc.ExecuteTrade(ctx, "alice", f.team.ID, domain.SideBuy, 5)
	require.NoError(t, err)

	live := domain.Game{
		ID: "g-live", League: "NHL", StartAt: now0.Add(-time.Hour), State: domain.GameLive,
		Competitors: [2]domain.Competitor{{Ticker: "BOS"}, {Ticker: "TBL"}},
	}
	_, err = f.store.UpsertGame(ctx, live, now0)
	require.NoError(t, err)

	st, err := f.svc.MarketState(ctx, f.team.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketLocked, st.Status)
	assert.Equal(t, domain.ReasonGameInProgress, st.Reason)

	_, err = f.svc.ExecuteTrade(ctx, "alice", f.team.ID, domain.SideBuy, 1)
	assert.ErrorIs(t, err, domain.ErrMarketClosed)
	assert.Contains(t, err.Error(), domain.ReasonGameInProgress)

	_, err = f.svc.ExecuteTrade(ctx, "alice", f.team.ID, domain.SideSell, 2)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), f.supply(t))
}

func TestMarketState_OpenWithoutGames(t *testing.T) {
	f := setup(t)
	st, err := f.svc.MarketState(context.Background(), f.team.ID)
	require.NoError(t, err)
	assert.True(t, st.Open())
}

func TestExecuteTrade_ConcurrentBuysDoNotLoseUpdates(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	const buyers = 20
	for i := 0; i < buyers; i++ {
		f.user(t, string(rune('a'+i)))
	}

	var wg sync.WaitGroup
	errs := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.svc.ExecuteTrade(ctx, id, f.team.ID, domain.SideBuy, 1)
			errs <- err
		}(string(rune('a' + i)))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, int64(buyers), f.supply(t))

	// lo pagado entre todos es exactamente la integral de la curva
	want, err := f.svc.Curve().QuoteBuy(0, buyers)
	require.NoError(t, err)
	spent := decimal.Zero
	for i := 0; i < buyers; i++ {
		spent = spent.Add(dec("1000").Sub(f.balance(t, string(rune('a'+i)))))
	}
	assert.True(t, want.Total.Equal(spent), "want %s, spent %s", want.Total, spent)
}

func TestQuote_ReadOnly(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	q, err := f.svc.Quote(ctx, f.team.ID, domain.SideBuy, 10)
	require.NoError(t, err)
	assert.Equal(t, "100.55", q.Total.String())
	assert.Equal(t, int64(0), f.supply(t))

	_, err = f.svc.Quote(ctx, f.team.ID, domain.SideSell, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}
