package settlement_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/teamshares/internal/adapters/storage"
	"github.com/alejandrodnm/teamshares/internal/adapters/tickers"
	"github.com/alejandrodnm/teamshares/internal/application/exchange"
	"github.com/alejandrodnm/teamshares/internal/application/settlement"
	"github.com/alejandrodnm/teamshares/internal/domain"
)

var now0 = time.Date(2026, 1, 10, 18, 0, 0, 0, time.UTC)

var utcGate = domain.GateConfig{SettlementWindow: 6 * time.Hour, CutoffHour: 6, Location: time.UTC}

type fakeFeed struct {
	mu        sync.Mutex
	standings []domain.StandingRow
	games     []domain.Game
	standErr  error
	schedErr  error
	from, to  time.Time

	entered chan struct{}
	release chan struct{}
}

func (f *fakeFeed) FetchStandings(ctx context.Context, league string) ([]domain.StandingRow, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.standErr != nil {
		return nil, f.standErr
	}
	return append([]domain.StandingRow(nil), f.standings...), nil
}

func (f *fakeFeed) FetchSchedule(ctx context.Context, league string, from, to time.Time) ([]domain.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.from, f.to = from, to
	if f.schedErr != nil {
		return nil, f.schedErr
	}
	return append([]domain.Game(nil), f.games...), nil
}

func game(id string, state domain.GameState, start time.Time, home, away string) domain.Game {
	return domain.Game{
		ID: id, League: "NHL", StartAt: start, State: state,
		Completed: state == domain.GameFinal,
		Competitors: [2]domain.Competitor{
			{Ticker: home, HomeAway: domain.Home},
			{Ticker: away, HomeAway: domain.Away},
		},
	}
}

type env struct {
	store  *storage.Store
	svc    *exchange.Service
	feed   *fakeFeed
	syncer *settlement.Syncer
}

func newEnv(t *testing.T, autoCreate bool) env {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := exchange.DefaultConfig()
	cfg.DefaultGate = utcGate
	cfg.StartingBalance = decimal.NewFromInt(1000)
	svc := exchange.New(cfg, store, nil)
	svc.SetClock(func() time.Time { return now0 })

	feed := &fakeFeed{}
	syncer := settlement.New(settlement.Config{
		Leagues: map[string]settlement.LeagueConfig{
			"NHL": {LookbackDays: 1, LookaheadDays: 7, AutoCreateTeams: autoCreate, Gate: utcGate},
		},
	}, feed, tickers.NewNormalizer(nil), store, svc)
	syncer.SetClock(func() time.Time { return now0 })

	return env{store: store, svc: svc, feed: feed, syncer: syncer}
}

// nhlSlate: TBL ganó a BOS hoy, NYR-NJD en juego, y dos partidos futuros que
// no deben pisar los locks.
func nhlSlate() ([]domain.StandingRow, []domain.Game) {
	standings := []domain.StandingRow{
		{ProviderTicker: "BOS", Name: "Boston Bruins", Record: domain.Record{Wins: 25, Losses: 12, Ties: 4}},
		{ProviderTicker: "TB", Name: "Tampa Bay Lightning", Record: domain.Record{Wins: 24, Losses: 14, Ties: 3}},
		{ProviderTicker: "NYR", Name: "New York Rangers", Record: domain.Record{Wins: 20, Losses: 18, Ties: 3}},
	}

	final := game("g1", domain.GameFinal, now0.Add(-5*time.Hour), "BOS", "TB")
	final.Competitors[0].Score, final.Competitors[1].Score = 2, 4

	live := game("g2", domain.GameLive, now0.Add(-time.Hour), "NYR", "NJ")
	live.Competitors[1].OverallRecord = "22-15-5"

	return standings, []domain.Game{
		game("g4", domain.GamePre, now0.Add(24*time.Hour), "TB", "NYR"),
		final,
		live,
		game("g3", domain.GamePre, now0.Add(48*time.Hour), "BOS", "TB"),
	}
}

func TestRun_FullCycle(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, true)
	e.feed.standings, e.feed.games = nhlSlate()

	// alice tiene 10 shares de TBL y el bank tiene 40
	tbl, err := e.store.EnsureTeam(ctx, "NHL", "TBL", "")
	require.NoError(t, err)
	_, err = e.svc.CreateUser(ctx, "alice")
	require.NoError(t, err)
	_, err = e.svc.ExecuteTrade(ctx, "alice", tbl.ID, domain.SideBuy, 10)
	require.NoError(t, err)
	_, err = e.svc.FundDividendBank(ctx, tbl.ID, decimal.NewFromInt(40))
	require.NoError(t, err)
	before, err := e.store.GetUser(ctx, "alice")
	require.NoError(t, err)

	report, err := e.syncer.Run(ctx, "nhl")
	require.NoError(t, err)

	assert.Equal(t, "NHL", report.League)
	assert.Equal(t, 3, report.TeamsUpdated)
	assert.Equal(t, 1, report.GamesProcessed)
	assert.Equal(t, 1, report.PayoutsIssued)
	assert.Equal(t, 0, report.Errors)
	assert.Equal(t, 3, report.LockedTeams)

	// rango: ayer → +7 días
	assert.True(t, e.feed.from.Equal(time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)))
	assert.True(t, e.feed.to.Equal(time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC)))

	// standings normalizados
	tbl, err = e.store.TeamByTicker(ctx, "NHL", "TBL")
	require.NoError(t, err)
	assert.Equal(t, "24-14-3", tbl.Record().String())
	assert.Equal(t, "Tampa Bay Lightning", tbl.Name)

	// el partido recién terminado gana al futuro que aparece antes en el feed
	assert.Equal(t, "g1", tbl.NextGameID)
	assert.Equal(t, "BOS", tbl.NextOpponent)
	bos, err := e.store.TeamByTicker(ctx, "NHL", "BOS")
	require.NoError(t, err)
	assert.Equal(t, "g1", bos.NextGameID)
	nyr, err := e.store.TeamByTicker(ctx, "NHL", "NYR")
	require.NoError(t, err)
	assert.Equal(t, "g2", nyr.NextGameID)
	assert.Equal(t, "NJD", nyr.NextOpponent)

	// payout al holder
	after, err := e.store.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, after.USDBalance.Sub(before.USDBalance).Equal(decimal.NewFromInt(40)))

	// el gate del exchange ve el partido cacheado
	st, err := e.svc.MarketState(ctx, tbl.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonPayoutPending, st.Reason)
	_, err = e.svc.ExecuteTrade(ctx, "alice", tbl.ID, domain.SideBuy, 1)
	assert.ErrorIs(t, err, domain.ErrMarketClosed)
}

func TestRun_TwiceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, true)
	e.feed.standings, e.feed.games = nhlSlate()

	tbl, err := e.store.EnsureTeam(ctx, "NHL", "TBL", "")
	require.NoError(t, err)
	_, err = e.svc.CreateUser(ctx, "alice")
	require.NoError(t, err)
	_, err = e.svc.ExecuteTrade(ctx, "alice", tbl.ID, domain.SideBuy, 5)
	require.NoError(t, err)
	_, err = e.svc.FundDividendBank(ctx, tbl.ID, decimal.NewFromInt(20))
	require.NoError(t, err)

	_, err = e.syncer.Run(ctx, "NHL")
	require.NoError(t, err)
	mid, err := e.store.GetUser(ctx, "alice")
	require.NoError(t, err)

	// se vuelve a llenar el bank: un segundo run no debe pagar el mismo partido
	_, err = e.svc.FundDividendBank(ctx, tbl.ID, decimal.NewFromInt(20))
	require.NoError(t, err)
	report, err := e.syncer.Run(ctx, "NHL")
	require.NoError(t, err)

	assert.Equal(t, 0, report.GamesProcessed)
	assert.Equal(t, 0, report.PayoutsIssued)
	assert.Equal(t, 1, report.GamesSkipped)

	end, err := e.store.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, end.USDBalance.Equal(mid.USDBalance))
}

func TestRun_ConcurrentRunsPayOnce(t *testing.T) {
	ctx := context.Background()

	// dos Syncers independientes (dos procesos) sobre el mismo store
	e := newEnv(t, true)
	e.feed.standings, e.feed.games = nhlSlate()
	other := settlement.New(settlement.Config{
		Leagues: map[string]settlement.LeagueConfig{"NHL": {AutoCreateTeams: true, Gate: utcGate}},
	}, e.feed, tickers.NewNormalizer(nil), e.store, e.svc)
	other.SetClock(func() time.Time { return now0 })

	tbl, err := e.store.EnsureTeam(ctx, "NHL", "TBL", "")
	require.NoError(t, err)
	_, err = e.svc.CreateUser(ctx, "alice")
	require.NoError(t, err)
	_, err = e.svc.ExecuteTrade(ctx, "alice", tbl.ID, domain.SideBuy, 5)
	require.NoError(t, err)
	_, err = e.svc.FundDividendBank(ctx, tbl.ID, decimal.NewFromInt(30))
	require.NoError(t, err)
	before, err := e.store.GetUser(ctx, "alice")
	require.NoError(t, err)

	var wg sync.WaitGroup
	reports := make([]domain.SyncReport, 2)
	for i, s := range []*settlement.Syncer{e.syncer, other} {
		wg.Add(1)
		go func(i int, s *settlement.Syncer) {
			defer wg.Done()
			r, err := s.Run(ctx, "NHL")
			assert.NoError(t, err)
			reports[i] = r
		}(i, s)
	}
	wg.Wait()

	assert.Equal(t, 1, reports[0].PayoutsIssued+reports[1].PayoutsIssued)
	after, err := e.store.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, after.USDBalance.Sub(before.USDBalance).Equal(decimal.NewFromInt(30)))
}

func TestRun_OverlappingRunIsSkipped(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, true)
	e.feed.standings, e.feed.games = nhlSlate()
	e.feed.entered = make(chan struct{})
	e.feed.release = make(chan struct{})

	done := make(chan domain.SyncReport)
	go func() {
		r, err := e.syncer.Run(ctx, "NHL")
		assert.NoError(t, err)
		done <- r
	}()
	<-e.feed.entered

	r, err := e.syncer.Run(ctx, "NHL")
	require.NoError(t, err)
	assert.True(t, r.Skipped)

	close(e.feed.release)
	first := <-done
	assert.False(t, first.Skipped)
	assert.Equal(t, 1, first.GamesProcessed)
}

func TestRun_StandingsFailureAborts(t *testing.T) {
	e := newEnv(t, true)
	e.feed.standErr = fmt.Errorf("espn down: %w", domain.ErrFeedUnavailable)

	_, err := e.syncer.Run(context.Background(), "NHL")
	assert.ErrorIs(t, err, domain.ErrFeedUnavailable)

	teams, err := e.store.ListTeams(context.Background(), "NHL")
	require.NoError(t, err)
	assert.Empty(t, teams)
}

func TestRun_ScheduleFailureKeepsStandings(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, true)
	e.feed.standings, _ = nhlSlate()
	e.feed.schedErr = fmt.Errorf("bad json: %w", domain.ErrFeedParse)

	report, err := e.syncer.Run(ctx, "NHL")
	assert.ErrorIs(t, err, domain.ErrFeedParse)
	assert.Equal(t, 3, report.TeamsUpdated)

	bos, err := e.store.TeamByTicker(ctx, "NHL", "BOS")
	require.NoError(t, err)
	assert.Equal(t, "25-12-4", bos.Record().String())
}

func TestRun_UnknownWinnerLeavesGamePending(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)
	_, err := e.store.EnsureTeam(ctx, "NHL", "BOS", "")
	require.NoError(t, err)

	g := game("g9", domain.GameFinal, now0.Add(-10*time.Hour), "BOS", "XYZ")
	g.Competitors[1].IsWinner = true
	e.feed.standings = []domain.StandingRow{{ProviderTicker: "BOS", Record: domain.Record{Wins: 1}}}
	e.feed.games = []domain.Game{g}

	report, err := e.syncer.Run(ctx, "NHL")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, 0, report.GamesProcessed)

	ok, err := e.store.ProcessedGameExists(ctx, "g9")
	require.NoError(t, err)
	assert.False(t, ok, "sin ganador resuelto no se inserta el fence")
}

func TestRun_TieFencesWithoutPayout(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, true)
	e.feed.standings, _ = nhlSlate()
	e.feed.games = []domain.Game{game("tie", domain.GameFinal, now0.Add(-20*time.Hour), "BOS", "TB")}

	report, err := e.syncer.Run(ctx, "NHL")
	require.NoError(t, err)
	assert.Equal(t, 1, report.GamesProcessed)
	assert.Equal(t, 0, report.PayoutsIssued)

	ok, err := e.store.ProcessedGameExists(ctx, "tie")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRun_LateSeenFinalDoesNotLockMarket(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, true)
	now := time.Date(2026, 1, 10, 14, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	e.svc.SetClock(clock)
	e.syncer.SetClock(clock)

	// la DB nunca vio y1 en juego: llega terminado un día después
	e.feed.standings, _ = nhlSlate()
	y1 := game("y1", domain.GameFinal, time.Date(2026, 1, 9, 19, 0, 0, 0, time.UTC), "BOS", "TB")
	y1.Competitors[0].Score, y1.Competitors[1].Score = 1, 3
	e.feed.games = []domain.Game{y1}

	report, err := e.syncer.Run(ctx, "NHL")
	require.NoError(t, err)
	assert.Equal(t, 1, report.GamesProcessed)
	assert.Equal(t, 0, report.LockedTeams)

	tbl, err := e.store.TeamByTicker(ctx, "NHL", "TBL")
	require.NoError(t, err)
	assert.NotEqual(t, "y1", tbl.NextGameID)

	for _, at := range []time.Time{now, now.Add(9 * time.Hour)} {
		e.svc.SetClock(func() time.Time { return at })
		st, err := e.svc.MarketState(ctx, tbl.ID)
		require.NoError(t, err)
		assert.True(t, st.Open(), "at %s got %s", at, st.Reason)
	}
}

func TestRun_WinWithoutHoldersIsNotAPayout(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, true)
	e.feed.standings, e.feed.games = nhlSlate()

	// TBL gana g1 pero nadie tiene shares ni hay bank
	report, err := e.syncer.Run(ctx, "NHL")
	require.NoError(t, err)
	assert.Equal(t, 1, report.GamesProcessed)
	assert.Equal(t, 0, report.PayoutsIssued)

	ok, err := e.store.ProcessedGameExists(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRun_PerTeamFailuresDoNotAbort(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)
	for _, tk := range []string{"BOS", "NJD", "SJS"} {
		_, err := e.store.EnsureTeam(ctx, "NHL", tk, "")
		require.NoError(t, err)
	}

	// TBL no existe y no se crea: error por equipo, el resto sigue
	e.feed.standings = []domain.StandingRow{
		{ProviderTicker: "TB", Record: domain.Record{Wins: 1}},
		{ProviderTicker: "BOS", Record: domain.Record{Wins: 2}},
	}
	bad := game("g5", domain.GamePre, now0.Add(3*time.Hour), "NJ", "SJ")
	bad.Competitors[0].OverallRecord = "veinte-dos"
	bad.Competitors[1].OverallRecord = "10-9-1"
	e.feed.games = []domain.Game{bad}

	report, err := e.syncer.Run(ctx, "NHL")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Errors)
	assert.Equal(t, 2, report.TeamsUpdated)

	sjs, err := e.store.TeamByTicker(ctx, "NHL", "SJS")
	require.NoError(t, err)
	assert.Equal(t, "10-9-1", sjs.Record().String())
	assert.Equal(t, "NJD", sjs.NextOpponent)

	njd, err := e.store.TeamByTicker(ctx, "NHL", "NJD")
	require.NoError(t, err)
	assert.Equal(t, "0-0-0", njd.Record().String())
}

func TestRun_UnknownLeague(t *testing.T) {
	e := newEnv(t, true)
	_, err := e.syncer.Run(context.Background(), "KHL")
	assert.ErrorIs(t, err, domain.ErrUnknownLeague)
}
