package espn_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/teamshares/internal/adapters/espn"
	"github.com/alejandrodnm/teamshares/internal/domain"
)

func fixtureServer(t *testing.T, wantPath, fixture string) *httptest.Server {
	t.Helper()
	data, err := os.ReadFile("../../../testdata/fixtures/" + fixture)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, wantPath, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchStandings_Success(t *testing.T) {
	srv := fixtureServer(t, "/v2/sports/hockey/nhl/standings", "espn_nhl_standings.json")
	client := espn.NewClient(srv.URL, nil, 100)

	rows, err := client.FetchStandings(context.Background(), "NHL")
	require.NoError(t, err)
	require.Len(t, rows, 4)

	byTicker := make(map[string]domain.StandingRow)
	for _, r := range rows {
		byTicker[r.ProviderTicker] = r
	}
	assert.Equal(t, domain.Record{Wins: 25, Losses: 12, Ties: 4}, byTicker["BOS"].Record)
	assert.Equal(t, "Tampa Bay Lightning", byTicker["TB"].Name)
	// entries colgando directamente de la conferencia también cuentan
	assert.Equal(t, domain.Record{Wins: 23, Losses: 13, Ties: 6}, byTicker["LA"].Record)
}

func TestFetchSchedule_Success(t *testing.T) {
	var gotDates string
	data, err := os.ReadFile("../../../testdata/fixtures/espn_nhl_scoreboard.json")
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/site/v2/sports/hockey/nhl/scoreboard", r.URL.Path)
		gotDates = r.URL.Query().Get("dates")
		w.Write(data)
	}))
	defer srv.Close()

	client := espn.NewClient(srv.URL, nil, 100)
	from := time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC)

	games, err := client.FetchSchedule(context.Background(), "NHL", from, to)
	require.NoError(t, err)
	assert.Equal(t, "20260109-20260117", gotDates)

	// el partido "delayed" se descarta, el resto mantiene el orden del feed
	require.Len(t, games, 3)
	assert.Equal(t, "401559001", games[0].ID)
	assert.Equal(t, domain.GameFinal, games[0].State)
	assert.True(t, games[0].IsFinal())
	assert.Equal(t, "NHL", games[0].League)

	w, ok := games[0].Winner()
	require.True(t, ok)
	assert.Equal(t, "TB", w, "el flag winner manda aunque el marcador esté empatado")
	assert.Equal(t, "25-12-4", games[0].Competitors[0].OverallRecord)

	assert.Equal(t, domain.GameLive, games[1].State)
	assert.Equal(t, domain.GamePre, games[2].State)
	assert.Equal(t, 0, games[2].Competitors[0].Score)
	assert.True(t, games[2].StartAt.Equal(time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)))
}

func TestFetchSchedule_UnknownLeague(t *testing.T) {
	client := espn.NewClient("http://127.0.0.1:1", nil, 100)
	_, err := client.FetchSchedule(context.Background(), "CURLING", time.Now(), time.Now())
	assert.ErrorIs(t, err, domain.ErrUnknownLeague)
}

func TestFetchStandings_ServerError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := espn.NewClient(srv.URL, nil, 100)
	_, err := client.FetchStandings(context.Background(), "NHL")
	assert.ErrorIs(t, err, domain.ErrFeedUnavailable)
	assert.Equal(t, 4, calls)
}

func TestFetchStandings_NotFoundIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	client := espn.NewClient(srv.URL, nil, 100)
	_, err := client.FetchStandings(context.Background(), "NHL")
	assert.ErrorIs(t, err, domain.ErrFeedUnavailable)
}

func TestFetchStandings_GarbageBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	client := espn.NewClient(srv.URL, nil, 100)
	_, err := client.FetchStandings(context.Background(), "NHL")
	assert.ErrorIs(t, err, domain.ErrFeedParse)
}

func TestFetchStandings_EmptyIsParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"children": []}`))
	}))
	defer srv.Close()

	client := espn.NewClient(srv.URL, nil, 100)
	_, err := client.FetchStandings(context.Background(), "NHL")
	assert.ErrorIs(t, err, domain.ErrFeedParse)
}
