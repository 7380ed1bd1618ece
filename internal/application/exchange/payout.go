package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/teamshares/internal/domain"
	"github.com/alejandrodnm/teamshares/internal/ports"
)

// SettleWin reparte el dividend bank del equipo entre sus holders.
// No consulta el fence: para partidos reales usar SettleGame.
func (s *Service) SettleWin(ctx context.Context, teamID int64) (domain.Payout, error) {
	unlock := s.locks.lock(teamID)
	defer unlock()

	var (
		payout domain.Payout
		team   domain.Team
	)
	now := s.now()
	err := s.store.WithTx(ctx, func(tx ports.LedgerTx) error {
		var err error
		payout, team, err = s.settleInTx(ctx, tx, teamID, now)
		return err
	})
	if err != nil {
		return domain.Payout{}, fmt.Errorf("exchange.SettleWin: %w", err)
	}
	s.publishPayout(ctx, "", team, payout, now)
	return payout, nil
}

// SettleGame inserta el fence del partido y, si fence.WinnerID no es nil,
// paga al ganador en la misma transacción. Si el partido ya estaba procesado
// devuelve settled=false sin tocar nada.
func (s *Service) SettleGame(ctx context.Context, fence domain.ProcessedGame) (payout domain.Payout, settled bool, err error) {
	if fence.ProcessedAt.IsZero() {
		fence.ProcessedAt = s.now()
	}
	if fence.WinnerID != nil {
		unlock := s.locks.lock(*fence.WinnerID)
		defer unlock()
	}

	var team domain.Team
	err = s.store.WithTx(ctx, func(tx ports.LedgerTx) error {
		inserted, err := tx.InsertProcessedGame(ctx, fence)
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}
		settled = true
		if fence.WinnerID == nil {
			return nil
		}
		payout, team, err = s.settleInTx(ctx, tx, *fence.WinnerID, fence.ProcessedAt)
		return err
	})
	if err != nil {
		return domain.Payout{}, false, fmt.Errorf("exchange.SettleGame: %s: %w", fence.GameID, err)
	}
	if settled && fence.WinnerID != nil {
		s.publishPayout(ctx, fence.GameID, team, payout, fence.ProcessedAt)
	}
	return payout, settled, nil
}

// settleInTx bloquea el equipo, reparte el bank y deja el residuo.
func (s *Service) settleInTx(ctx context.Context, tx ports.LedgerTx, teamID int64, now time.Time) (domain.Payout, domain.Team, error) {
	team, err := tx.LockTeam(ctx, teamID)
	if err != nil {
		return domain.Payout{}, domain.Team{}, err
	}
	holdings, err := tx.ListHoldings(ctx, teamID)
	if err != nil {
		return domain.Payout{}, domain.Team{}, err
	}

	p := domain.SplitDividend(teamID, team.DividendBank, team.SharesOutstanding, holdings)
	for _, h := range p.Holders {
		user, err := tx.GetUser(ctx, h.UserID)
		if err != nil {
			return domain.Payout{}, domain.Team{}, err
		}
		if err := tx.SetUserBalance(ctx, h.UserID, user.USDBalance.Add(h.Amount)); err != nil {
			return domain.Payout{}, domain.Team{}, err
		}
		if err := tx.AppendTransaction(ctx, domain.Transaction{
			ID:            uuid.NewString(),
			UserID:        h.UserID,
			TeamID:        teamID,
			Side:          domain.SideDividend,
			SharesAmount:  h.SharesOwned,
			USDAmount:     h.Amount,
			AvgSharePrice: h.Amount.DivRound(decimal.NewFromInt(h.SharesOwned), 8),
			CreatedAt:     now,
		}); err != nil {
			return domain.Payout{}, domain.Team{}, err
		}
	}

	if !p.Distributed.IsZero() {
		if err := tx.SetDividendBank(ctx, teamID, p.Remainder); err != nil {
			return domain.Payout{}, domain.Team{}, err
		}
	}
	return p, team, nil
}

func (s *Service) publishPayout(ctx context.Context, gameID string, team domain.Team, p domain.Payout, at time.Time) {
	slog.Info("payout issued",
		"league", team.League,
		"ticker", team.Ticker,
		"game", gameID,
		"distributed", p.Distributed.StringFixed(2),
		"remainder", p.Remainder.StringFixed(2),
		"holders", len(p.Holders),
	)
	s.publish(ctx, ports.TopicPayoutIssued, domain.PayoutIssued{
		GameID:      gameID,
		TeamID:      team.ID,
		League:      team.League,
		Ticker:      team.Ticker,
		BankBefore:  p.BankBefore,
		Distributed: p.Distributed,
		Remainder:   p.Remainder,
		Holders:     len(p.Holders),
		At:          at,
	})
}
