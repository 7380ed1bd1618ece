package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/teamshares/internal/domain"
)

// Config es la configuración completa del exchange.
type Config struct {
	Exchange ExchangeConfig          `yaml:"exchange"`
	Leagues  map[string]LeagueConfig `yaml:"leagues"`
	Sync     SyncConfig              `yaml:"sync"`
	Feed     FeedConfig              `yaml:"feed"`
	HTTP     HTTPConfig              `yaml:"http"`
	Events   EventsConfig            `yaml:"events"`
	Storage  StorageConfig           `yaml:"storage"`
	Log      LogConfig               `yaml:"log"`
}

// ExchangeConfig controla la curva y el saldo inicial.
type ExchangeConfig struct {
	Base              string `yaml:"base"`  // precio del share 0
	Slope             string `yaml:"slope"` // incremento por share
	StartingBalance   string `yaml:"starting_balance"`
	GateLookbackHours int    `yaml:"gate_lookback_hours"`
}

// LeagueConfig parametriza una liga: feed, gate y sync.
type LeagueConfig struct {
	Sport                 string            `yaml:"sport"` // path del feed, p.ej. "hockey/nhl"
	Timezone              string            `yaml:"timezone"`
	CutoffHour            *int              `yaml:"cutoff_hour"`
	SettlementWindowHours int               `yaml:"settlement_window_hours"`
	MaxGameHours          int               `yaml:"max_game_hours"` // tope para estimar el fin de un partido
	LookbackDays          int               `yaml:"lookback_days"`
	LookaheadDays         int               `yaml:"lookahead_days"`
	AutoCreateTeams       *bool             `yaml:"auto_create_teams"`
	Tickers               map[string]string `yaml:"tickers"` // overrides código del feed → ticker
}

// SyncConfig controla el loop de settlement.
type SyncConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
}

// FeedConfig apunta al proveedor de resultados.
type FeedConfig struct {
	BaseURL    string  `yaml:"base_url"`
	RatePerSec float64 `yaml:"rate_per_sec"`
}

// HTTPConfig controla la API.
type HTTPConfig struct {
	Addr       string `yaml:"addr"`
	CronSecret string `yaml:"cron_secret"`
}

// EventsConfig controla la publicación de eventos. Sin brokers se loguean.
type EventsConfig struct {
	Brokers     []string `yaml:"brokers"`
	TopicPrefix string   `yaml:"topic_prefix"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta SQLite, ":memory:" o postgres://...
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

var defaultSports = map[string]string{
	"NHL": "hockey/nhl",
	"NFL": "football/nfl",
	"NBA": "basketball/nba",
	"MLB": "baseball/mlb",
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del entorno sobreescriben los del YAML.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse aplica overrides de entorno, defaults y validación sobre el YAML dado.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Parse: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Parse: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("CRON_SECRET"); v != "" {
		cfg.HTTP.CronSecret = v
	}
	if v := os.Getenv("ESPN_BASE_URL"); v != "" {
		cfg.Feed.BaseURL = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Events.Brokers = splitList(v)
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Exchange.Base == "" {
		cfg.Exchange.Base = domain.DefaultBase.String()
	}
	if cfg.Exchange.Slope == "" {
		cfg.Exchange.Slope = domain.DefaultSlope.String()
	}
	if cfg.Exchange.StartingBalance == "" {
		cfg.Exchange.StartingBalance = "0"
	}
	if cfg.Exchange.GateLookbackHours <= 0 {
		cfg.Exchange.GateLookbackHours = 48
	}

	if len(cfg.Leagues) == 0 {
		cfg.Leagues = map[string]LeagueConfig{"NHL": {}}
	}
	leagues := make(map[string]LeagueConfig, len(cfg.Leagues))
	for name, lc := range cfg.Leagues {
		name = strings.ToUpper(strings.TrimSpace(name))
		if lc.Sport == "" {
			lc.Sport = defaultSports[name]
		}
		if lc.Timezone == "" {
			lc.Timezone = "America/New_York"
		}
		if lc.CutoffHour == nil {
			h := 6
			lc.CutoffHour = &h
		}
		if lc.SettlementWindowHours <= 0 {
			lc.SettlementWindowHours = 6
		}
		if lc.MaxGameHours <= 0 {
			lc.MaxGameHours = int(domain.DefaultMaxGameDuration / time.Hour)
		}
		if lc.LookbackDays <= 0 {
			lc.LookbackDays = 1
		}
		if lc.LookaheadDays <= 0 {
			lc.LookaheadDays = 7
		}
		if lc.AutoCreateTeams == nil {
			v := true
			lc.AutoCreateTeams = &v
		}
		leagues[name] = lc
	}
	cfg.Leagues = leagues

	if cfg.Sync.IntervalSeconds <= 0 {
		cfg.Sync.IntervalSeconds = 300
	}
	if cfg.Feed.BaseURL == "" {
		cfg.Feed.BaseURL = "https://site.api.espn.com/apis"
	}
	if cfg.Feed.RatePerSec <= 0 {
		cfg.Feed.RatePerSec = 5
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.Events.TopicPrefix == "" {
		cfg.Events.TopicPrefix = "teamshares."
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "teamshares.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// Validate comprueba lo que los defaults no pueden arreglar.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Curve(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.StartingBalance(); err != nil {
		errs = append(errs, err)
	}
	for _, name := range c.LeagueNames() {
		lc := c.Leagues[name]
		if lc.Sport == "" {
			errs = append(errs, fmt.Errorf("league %s: sport path required", name))
		}
		if *lc.CutoffHour < 0 || *lc.CutoffHour > 23 {
			errs = append(errs, fmt.Errorf("league %s: cutoff_hour %d out of range", name, *lc.CutoffHour))
		}
		if _, err := time.LoadLocation(lc.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("league %s: timezone %q: %w", name, lc.Timezone, err))
		}
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log format %q: want text or json", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Curve devuelve la curva de precios configurada.
func (c *Config) Curve() (domain.Curve, error) {
	base, err := decimal.NewFromString(c.Exchange.Base)
	if err != nil {
		return domain.Curve{}, fmt.Errorf("exchange.base %q: %w", c.Exchange.Base, err)
	}
	slope, err := decimal.NewFromString(c.Exchange.Slope)
	if err != nil {
		return domain.Curve{}, fmt.Errorf("exchange.slope %q: %w", c.Exchange.Slope, err)
	}
	if !base.IsPositive() || slope.IsNegative() {
		return domain.Curve{}, fmt.Errorf("exchange curve base=%s slope=%s: base must be > 0, slope >= 0", base, slope)
	}
	return domain.Curve{Base: base, Slope: slope}, nil
}

// StartingBalance devuelve el saldo inicial de los usuarios nuevos.
func (c *Config) StartingBalance() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.Exchange.StartingBalance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("exchange.starting_balance %q: %w", c.Exchange.StartingBalance, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("exchange.starting_balance %s: negative", d)
	}
	return d, nil
}

// GateLookback devuelve cuánto historial de partidos mira el gate.
func (c *Config) GateLookback() time.Duration {
	return time.Duration(c.Exchange.GateLookbackHours) * time.Hour
}

// SyncInterval devuelve el intervalo del loop de sync.
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.Sync.IntervalSeconds) * time.Second
}

// LeagueNames devuelve las ligas configuradas en orden estable.
func (c *Config) LeagueNames() []string {
	out := make([]string, 0, len(c.Leagues))
	for name := range c.Leagues {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Gate construye el GateConfig de una liga. Validate ya comprobó la zona.
func (lc LeagueConfig) Gate() domain.GateConfig {
	loc, err := time.LoadLocation(lc.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return domain.GateConfig{
		SettlementWindow: time.Duration(lc.SettlementWindowHours) * time.Hour,
		CutoffHour:       *lc.CutoffHour,
		Location:         loc,
		MaxGameDuration:  time.Duration(lc.MaxGameHours) * time.Hour,
	}
}

// Sports devuelve el mapa liga → path del feed.
func (c *Config) Sports() map[string]string {
	out := make(map[string]string, len(c.Leagues))
	for name, lc := range c.Leagues {
		out[name] = lc.Sport
	}
	return out
}

// TickerOverrides devuelve los overrides de tickers por liga.
func (c *Config) TickerOverrides() map[string]map[string]string {
	out := make(map[string]map[string]string)
	for name, lc := range c.Leagues {
		if len(lc.Tickers) > 0 {
			out[name] = lc.Tickers
		}
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
