package exchange

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/alejandrodnm/teamshares/internal/domain"
	"github.com/alejandrodnm/teamshares/internal/ports"
)

// ExecuteTrade compra o vende qty shares del equipo a precio de curva.
// Todo o nada: cualquier rechazo deja supply, saldo y holding intactos.
//
// Errores: ErrInvalidQuantity, ErrInvalidSide, ErrInsufficientFunds,
// ErrInsufficientShares, ErrMarketClosed (con la razón), ErrTeamNotFound,
// ErrUserNotFound.
func (s *Service) ExecuteTrade(ctx context.Context, userID string, teamID int64, side domain.Side, qty int64) (domain.TradeResult, error) {
	if qty <= 0 {
		return domain.TradeResult{}, fmt.Errorf("exchange.ExecuteTrade: qty %d: %w", qty, domain.ErrInvalidQuantity)
	}
	if side != domain.SideBuy && side != domain.SideSell {
		return domain.TradeResult{}, fmt.Errorf("exchange.ExecuteTrade: side %q: %w", side, domain.ErrInvalidSide)
	}

	unlock := s.locks.lock(teamID)
	defer unlock()

	var (
		res  domain.TradeResult
		team domain.Team
	)
	now := s.now()
	err := s.store.WithTx(ctx, func(tx ports.LedgerTx) error {
		var err error
		team, err = tx.LockTeam(ctx, teamID)
		if err != nil {
			return err
		}
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		holding, err := tx.GetHolding(ctx, userID, teamID)
		if err != nil {
			return err
		}

		if side == domain.SideBuy {
			games, err := tx.TeamGames(ctx, team.League, team.Ticker, now.Add(-s.cfg.GateLookback))
			if err != nil {
				return err
			}
			if st := domain.EvaluateGate(games, team.Ticker, now, s.GateFor(team.League)); !st.Open() {
				return fmt.Errorf("%s %s: %w", team.Ticker, st.Reason, domain.ErrMarketClosed)
			}
		} else if holding.SharesOwned < qty {
			return fmt.Errorf("own %d, selling %d: %w", holding.SharesOwned, qty, domain.ErrInsufficientShares)
		}

		// la cotización se recalcula con el supply bloqueado, nunca con la del cliente
		q, err := s.cfg.Curve.QuoteSide(side, team.SharesOutstanding, qty)
		if err != nil {
			return err
		}

		balance := user.USDBalance
		shares := holding.SharesOwned
		switch side {
		case domain.SideBuy:
			if balance.LessThan(q.Total) {
				return fmt.Errorf("balance %s, cost %s: %w", balance.StringFixed(2), q.Total.StringFixed(2), domain.ErrInsufficientFunds)
			}
			balance = balance.Sub(q.Total)
			shares += qty
		case domain.SideSell:
			balance = balance.Add(q.Total)
			shares -= qty
		}

		if err := tx.SetTeamSupply(ctx, teamID, q.EndSupply); err != nil {
			return err
		}
		if err := tx.SetUserBalance(ctx, userID, balance); err != nil {
			return err
		}
		if err := tx.SetHolding(ctx, domain.Holding{UserID: userID, TeamID: teamID, SharesOwned: shares}); err != nil {
			return err
		}

		txID := uuid.NewString()
		if err := tx.AppendTransaction(ctx, domain.Transaction{
			ID:            txID,
			UserID:        userID,
			TeamID:        teamID,
			Side:          side,
			SharesAmount:  qty,
			USDAmount:     q.Total,
			AvgSharePrice: q.AvgPrice,
			CreatedAt:     now,
		}); err != nil {
			return err
		}

		res = domain.TradeResult{
			TransactionID: txID,
			Side:          side,
			Qty:           qty,
			Total:         q.Total,
			AvgPrice:      q.AvgPrice,
			NewSupply:     q.EndSupply,
			NewSpotPrice:  s.cfg.Curve.SpotPrice(q.EndSupply),
			NewBalance:    balance,
		}
		return nil
	})
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("exchange.ExecuteTrade: %w", err)
	}

	s.publish(ctx, ports.TopicTradeExecuted, domain.TradeExecuted{
		TransactionID: res.TransactionID,
		UserID:        userID,
		TeamID:        teamID,
		League:        team.League,
		Ticker:        team.Ticker,
		Side:          side,
		Qty:           qty,
		Total:         res.Total,
		AvgPrice:      res.AvgPrice,
		NewSupply:     res.NewSupply,
		NewSpotPrice:  res.NewSpotPrice,
		At:            now,
	})
	return res, nil
}
