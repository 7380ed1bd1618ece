package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alejandrodnm/teamshares/internal/domain"
)

// errorKinds mapea los errores de dominio a status y código estable.
var errorKinds = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{domain.ErrInvalidSide, http.StatusBadRequest, "invalid_side"},
	{domain.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{domain.ErrUnknownLeague, http.StatusBadRequest, "unknown_league"},
	{domain.ErrInsufficientFunds, http.StatusPaymentRequired, "insufficient_funds"},
	{domain.ErrInsufficientShares, http.StatusConflict, "insufficient_shares"},
	{domain.ErrUserExists, http.StatusConflict, "user_exists"},
	{domain.ErrMarketClosed, http.StatusLocked, "market_closed"},
	{domain.ErrTeamNotFound, http.StatusNotFound, "team_not_found"},
	{domain.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
	{domain.ErrFeedUnavailable, http.StatusBadGateway, "feed_unavailable"},
	{domain.ErrFeedParse, http.StatusBadGateway, "feed_parse_error"},
}

func writeError(c *gin.Context, err error) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			c.JSON(k.status, gin.H{"error": k.code, "message": err.Error()})
			return
		}
	}
	slog.Error("http handler failed", "path", c.FullPath(), "err", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
}
