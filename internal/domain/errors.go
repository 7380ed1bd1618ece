package domain

import "errors"

// Errores de validación y rechazo de trades. Los callers deben usar errors.Is;
// los adapters los envuelven con contexto ("exchange.ExecuteTrade: ...: %w").
var (
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidSide        = errors.New("invalid side")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrMarketClosed       = errors.New("market closed")
	ErrTeamNotFound       = errors.New("team not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
)

// Errores del feed externo. Abortan solo el ciclo de sync en curso.
var (
	ErrFeedUnavailable = errors.New("feed unavailable")
	ErrFeedParse       = errors.New("feed parse error")
	ErrUnknownLeague   = errors.New("unknown league")
)

// IsValidation devuelve true para errores que nunca deben reintentarse.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidSide) ||
		errors.Is(err, ErrTeamNotFound) ||
		errors.Is(err, ErrUserNotFound)
}
