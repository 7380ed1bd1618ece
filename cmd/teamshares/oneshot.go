package main

import (
	"context"
	"log/slog"

	"github.com/alejandrodnm/teamshares/internal/application/exchange"
	"github.com/alejandrodnm/teamshares/internal/application/settlement"
	"github.com/alejandrodnm/teamshares/internal/ports"
)

// runOnce ejecuta un ciclo de sync por liga. Devuelve false si alguna falló.
func runOnce(ctx context.Context, syncer *settlement.Syncer, leagues []string, out ports.Reporter) bool {
	ok := true
	for _, league := range leagues {
		r, err := syncer.Run(ctx, league)
		if err != nil {
			slog.Error("settlement sync failed", "league", league, "err", err)
			ok = false
			continue
		}
		out.ReportSync(r)
	}
	return ok
}

// runReport imprime equipos y resumen de cada liga.
func runReport(ctx context.Context, ex *exchange.Service, leagues []string, out ports.Reporter) bool {
	for _, league := range leagues {
		teams, err := ex.Teams(ctx, league)
		if err != nil {
			slog.Error("list teams failed", "league", league, "err", err)
			return false
		}
		sum, err := ex.Summary(ctx, league)
		if err != nil {
			slog.Error("market summary failed", "league", league, "err", err)
			return false
		}
		out.ReportMarket(league, teams, sum)
	}
	return true
}
