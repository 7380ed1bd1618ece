package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/alejandrodnm/teamshares/config"
	"github.com/alejandrodnm/teamshares/internal/adapters/espn"
	"github.com/alejandrodnm/teamshares/internal/adapters/events"
	"github.com/alejandrodnm/teamshares/internal/adapters/httpapi"
	"github.com/alejandrodnm/teamshares/internal/adapters/notify"
	"github.com/alejandrodnm/teamshares/internal/adapters/storage"
	"github.com/alejandrodnm/teamshares/internal/adapters/tickers"
	"github.com/alejandrodnm/teamshares/internal/application/exchange"
	"github.com/alejandrodnm/teamshares/internal/application/settlement"
	"github.com/alejandrodnm/teamshares/internal/domain"
	"github.com/alejandrodnm/teamshares/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one settlement sync per league and exit")
	report := flag.Bool("report", false, "print the market of every league and exit")
	noLoop := flag.Bool("no-loop", false, "serve the API without the background sync loop (cron-driven)")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full tables (default: compact 1-line)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("teamshares starting",
		"config", *configPath,
		"leagues", cfg.LeagueNames(),
		"interval", cfg.SyncInterval(),
		"once", *once,
		"report", *report,
	)

	store, err := storage.Open(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	publisher, closePublisher := newPublisher(cfg.Events)
	defer closePublisher()

	curve, _ := cfg.Curve() // Validate ya la comprobó
	balance, _ := cfg.StartingBalance()

	exCfg := exchange.DefaultConfig()
	exCfg.Curve = curve
	exCfg.StartingBalance = balance
	exCfg.GateLookback = cfg.GateLookback()
	exCfg.Gates = make(map[string]domain.GateConfig, len(cfg.Leagues))

	syncCfg := settlement.Config{Leagues: make(map[string]settlement.LeagueConfig, len(cfg.Leagues))}
	for name, lc := range cfg.Leagues {
		gate := lc.Gate()
		exCfg.Gates[name] = gate
		syncCfg.Leagues[name] = settlement.LeagueConfig{
			LookbackDays:    lc.LookbackDays,
			LookaheadDays:   lc.LookaheadDays,
			AutoCreateTeams: *lc.AutoCreateTeams,
			Gate:            gate,
		}
	}

	normalizer := tickers.NewNormalizer(cfg.TickerOverrides())
	for _, c := range normalizer.Collisions() {
		slog.Warn("ticker table collision", "collision", c.String())
	}

	feed := espn.NewClient(cfg.Feed.BaseURL, cfg.Sports(), cfg.Feed.RatePerSec)
	ex := exchange.New(exCfg, store, publisher)
	syncer := settlement.New(syncCfg, feed, normalizer, store, ex)
	console := notify.NewConsole(curve, *table)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch {
	case *once:
		if !runOnce(ctx, syncer, cfg.LeagueNames(), console) {
			os.Exit(1)
		}
		return
	case *report:
		if !runReport(ctx, ex, cfg.LeagueNames(), console) {
			os.Exit(1)
		}
		return
	}

	var wg sync.WaitGroup
	if !*noLoop {
		wg.Add(1)
		go func() {
			defer wg.Done()
			syncer.Loop(ctx, cfg.LeagueNames(), cfg.SyncInterval())
		}()
	}

	srv := httpapi.New(httpapi.Config{Addr: cfg.HTTP.Addr, CronSecret: cfg.HTTP.CronSecret}, ex, syncer)
	if err := srv.Run(ctx); err != nil {
		slog.Error("http api exited with error", "err", err)
		cancel()
		wg.Wait()
		os.Exit(1)
	}
	wg.Wait()

	slog.Info("teamshares stopped cleanly")
}

// newPublisher elige Kafka si hay brokers; si no, los eventos van al log.
func newPublisher(cfg config.EventsConfig) (ports.EventPublisher, func()) {
	if len(cfg.Brokers) == 0 {
		return events.NewLogPublisher(slog.Default()), func() {}
	}
	p := events.NewKafkaPublisher(cfg.Brokers, cfg.TopicPrefix)
	slog.Info("publishing events to kafka", "brokers", cfg.Brokers, "prefix", cfg.TopicPrefix)
	return p, func() {
		if err := p.Close(); err != nil {
			slog.Warn("kafka writer close failed", "err", err)
		}
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
