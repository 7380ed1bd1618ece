package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, []string{"NHL"}, cfg.LeagueNames())
	nhl := cfg.Leagues["NHL"]
	assert.Equal(t, "hockey/nhl", nhl.Sport)
	assert.Equal(t, 1, nhl.LookbackDays)
	assert.Equal(t, 7, nhl.LookaheadDays)
	assert.True(t, *nhl.AutoCreateTeams)

	gate := nhl.Gate()
	assert.Equal(t, 6*time.Hour, gate.SettlementWindow)
	assert.Equal(t, 6, gate.CutoffHour)
	assert.Equal(t, "America/New_York", gate.Location.String())
	assert.Equal(t, 5*time.Hour, gate.MaxGameDuration)

	curve, err := cfg.Curve()
	require.NoError(t, err)
	assert.Equal(t, "10", curve.Base.String())
	assert.Equal(t, "0.01", curve.Slope.String())

	assert.Equal(t, 5*time.Minute, cfg.SyncInterval())
	assert.Equal(t, 48*time.Hour, cfg.GateLookback())
	assert.Equal(t, "teamshares.db", cfg.Storage.DSN)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestParse_Leagues(t *testing.T) {
	yml := `
exchange:
  base: "5.00"
  slope: "0.02"
  starting_balance: "250"
leagues:
  nfl:
    cutoff_hour: 0
    timezone: America/Los_Angeles
    auto_create_teams: false
    max_game_hours: 4
    tickers:
      was: wsh
  nhl: {}
`
	cfg, err := Parse([]byte(yml))
	require.NoError(t, err)

	assert.Equal(t, []string{"NFL", "NHL"}, cfg.LeagueNames())
	nfl := cfg.Leagues["NFL"]
	assert.Equal(t, "football/nfl", nfl.Sport)
	assert.Equal(t, 0, nfl.Gate().CutoffHour) // 0 explícito no se pisa
	assert.False(t, *nfl.AutoCreateTeams)
	assert.Equal(t, 4*time.Hour, nfl.Gate().MaxGameDuration)

	bal, err := cfg.StartingBalance()
	require.NoError(t, err)
	assert.Equal(t, "250", bal.String())

	assert.Equal(t, map[string]map[string]string{"NFL": {"was": "wsh"}}, cfg.TickerOverrides())
	assert.Equal(t, "hockey/nhl", cfg.Sports()["NHL"])
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{"bad base", `exchange: {base: "abc"}`},
		{"zero base", `exchange: {base: "0"}`},
		{"negative balance", `exchange: {starting_balance: "-5"}`},
		{"unknown league without sport", `leagues: {xfl: {}}`},
		{"cutoff out of range", `leagues: {nhl: {cutoff_hour: 24}}`},
		{"bad timezone", `leagues: {nhl: {timezone: Mars/Olympus}}`},
		{"bad log format", `log: {format: xml}`},
		{"not yaml", `leagues: [`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yml))
			assert.Error(t, err)
		})
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_DSN", "postgres://u:p@localhost/teamshares")
	t.Setenv("CRON_SECRET", "shh")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Parse([]byte(`storage: {dsn: local.db}`))
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost/teamshares", cfg.Storage.DSN)
	assert.Equal(t, "shh", cfg.HTTP.CronSecret)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.Brokers)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sync: {interval_seconds: 60}\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.SyncInterval())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
