package exchange

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/teamshares/internal/domain"
	"github.com/alejandrodnm/teamshares/internal/ports"
)

// CreateUser da de alta un usuario con el saldo inicial configurado.
// userID vacío genera uno.
func (s *Service) CreateUser(ctx context.Context, userID string) (domain.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = uuid.NewString()
	}
	balance := s.cfg.StartingBalance
	if balance.IsNegative() {
		return domain.User{}, fmt.Errorf("exchange.CreateUser: starting balance %s: %w", balance, domain.ErrInvalidAmount)
	}
	u, err := s.store.CreateUser(ctx, userID, balance)
	if err != nil {
		return domain.User{}, fmt.Errorf("exchange.CreateUser: %w", err)
	}
	return u, nil
}

// Credit suma amount al saldo del usuario (depósito simulado).
func (s *Service) Credit(ctx context.Context, userID string, amount decimal.Decimal) (domain.User, error) {
	u, err := s.adjustBalance(ctx, userID, amount)
	if err != nil {
		return domain.User{}, fmt.Errorf("exchange.Credit: %w", err)
	}
	return u, nil
}

// Debit resta amount del saldo. Nunca deja el saldo en negativo.
func (s *Service) Debit(ctx context.Context, userID string, amount decimal.Decimal) (domain.User, error) {
	u, err := s.adjustBalance(ctx, userID, amount.Neg())
	if err != nil {
		return domain.User{}, fmt.Errorf("exchange.Debit: %w", err)
	}
	return u, nil
}

func (s *Service) adjustBalance(ctx context.Context, userID string, delta decimal.Decimal) (domain.User, error) {
	if delta.IsZero() {
		return domain.User{}, fmt.Errorf("amount 0: %w", domain.ErrInvalidAmount)
	}
	if !delta.Equal(delta.Truncate(2)) {
		return domain.User{}, fmt.Errorf("amount %s has sub-cent precision: %w", delta.Abs(), domain.ErrInvalidAmount)
	}

	var out domain.User
	err := s.store.WithTx(ctx, func(tx ports.LedgerTx) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		next := u.USDBalance.Add(delta)
		if next.IsNegative() {
			return fmt.Errorf("balance %s, withdrawing %s: %w", u.USDBalance.StringFixed(2), delta.Abs().StringFixed(2), domain.ErrInsufficientFunds)
		}
		if err := tx.SetUserBalance(ctx, userID, next); err != nil {
			return err
		}
		u.USDBalance = next
		out = u
		return nil
	})
	return out, err
}

// FundDividendBank suma amount al bank del equipo (admin).
func (s *Service) FundDividendBank(ctx context.Context, teamID int64, amount decimal.Decimal) (domain.Team, error) {
	if !amount.IsPositive() {
		return domain.Team{}, fmt.Errorf("exchange.FundDividendBank: amount %s: %w", amount, domain.ErrInvalidAmount)
	}

	unlock := s.locks.lock(teamID)
	defer unlock()

	var out domain.Team
	err := s.store.WithTx(ctx, func(tx ports.LedgerTx) error {
		team, err := tx.LockTeam(ctx, teamID)
		if err != nil {
			return err
		}
		team.DividendBank = team.DividendBank.Add(amount)
		if err := tx.SetDividendBank(ctx, teamID, team.DividendBank); err != nil {
			return err
		}
		out = team
		return nil
	})
	if err != nil {
		return domain.Team{}, fmt.Errorf("exchange.FundDividendBank: %w", err)
	}
	return out, nil
}
