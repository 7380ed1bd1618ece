package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/teamshares/internal/domain"
)

type teamView struct {
	ID                int64           `json:"id"`
	League            string          `json:"league"`
	Ticker            string          `json:"ticker"`
	Name              string          `json:"name"`
	Record            string          `json:"record"`
	SharesOutstanding int64           `json:"shares_outstanding"`
	SpotPrice         decimal.Decimal `json:"spot_price"`
	MarketCap         decimal.Decimal `json:"market_cap"`
	DividendBank      decimal.Decimal `json:"dividend_bank"`
	YieldPerShare     decimal.Decimal `json:"yield_per_share"`
	NextOpponent      string          `json:"next_opponent,omitempty"`
	NextGameAt        string          `json:"next_game_at,omitempty"`
	Market            *marketView     `json:"market,omitempty"`
}

type marketView struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	GameID string `json:"game_id,omitempty"`
}

func (s *Server) viewTeam(t domain.Team) teamView {
	curve := s.ex.Curve()
	v := teamView{
		ID:                t.ID,
		League:            t.League,
		Ticker:            t.Ticker,
		Name:              t.Name,
		Record:            t.Record().String(),
		SharesOutstanding: t.SharesOutstanding,
		SpotPrice:         curve.SpotPrice(t.SharesOutstanding),
		MarketCap:         curve.MarketCap(t.SharesOutstanding),
		DividendBank:      t.DividendBank,
		YieldPerShare:     domain.YieldPerShare(t.DividendBank, t.SharesOutstanding),
		NextOpponent:      t.NextOpponent,
	}
	if t.NextGameAt != nil {
		v.NextGameAt = t.NextGameAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	return v
}

func viewMarket(m domain.MarketState) *marketView {
	return &marketView{Status: string(m.Status), Reason: m.Reason, GameID: m.GameID}
}

func (s *Server) listTeams(c *gin.Context) {
	teams, err := s.ex.Teams(c.Request.Context(), c.Query("league"))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]teamView, 0, len(teams))
	for _, t := range teams {
		out = append(out, s.viewTeam(t))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getTeam(c *gin.Context) {
	id, ok := teamID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	t, err := s.ex.Team(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	m, err := s.ex.MarketState(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	v := s.viewTeam(t)
	v.Market = viewMarket(m)
	c.JSON(http.StatusOK, v)
}

func (s *Server) getQuote(c *gin.Context) {
	id, ok := teamID(c)
	if !ok {
		return
	}
	side, err := domain.ParseSide(c.DefaultQuery("side", "BUY"))
	if err != nil {
		writeError(c, err)
		return
	}
	qty, err := strconv.ParseInt(c.Query("qty"), 10, 64)
	if err != nil {
		writeError(c, domain.ErrInvalidQuantity)
		return
	}
	q, err := s.ex.Quote(c.Request.Context(), id, side, qty)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"side":         q.Side,
		"qty":          q.Qty,
		"total":        q.Total,
		"avg_price":    q.AvgPrice,
		"start_supply": q.StartSupply,
		"end_supply":   q.EndSupply,
	})
}

func (s *Server) getMarket(c *gin.Context) {
	id, ok := teamID(c)
	if !ok {
		return
	}
	m, err := s.ex.MarketState(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewMarket(m))
}

func (s *Server) getSummary(c *gin.Context) {
	sum, err := s.ex.Summary(c.Request.Context(), c.Param("league"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

type tradeRequest struct {
	UserID string `json:"user_id" binding:"required"`
	TeamID int64  `json:"team_id" binding:"required"`
	Side   string `json:"side" binding:"required"`
	Qty    int64  `json:"qty"`
}

func (s *Server) postTrade(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
		return
	}
	side, err := domain.ParseSide(req.Side)
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := s.ex.ExecuteTrade(c.Request.Context(), req.UserID, req.TeamID, side, req.Qty)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transaction_id": res.TransactionID,
		"side":           res.Side,
		"qty":            res.Qty,
		"total":          res.Total,
		"avg_price":      res.AvgPrice,
		"new_supply":     res.NewSupply,
		"new_spot_price": res.NewSpotPrice,
		"new_balance":    res.NewBalance,
	})
}

type userRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) postUser(c *gin.Context) {
	var req userRequest
	// body vacío es válido: se genera el id
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
			return
		}
	}
	u, err := s.ex.CreateUser(c.Request.Context(), req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewUser(u))
}

func (s *Server) getUser(c *gin.Context) {
	u, err := s.ex.User(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewUser(u))
}

func (s *Server) getTransactions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	txs, err := s.ex.Transactions(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(txs))
	for _, t := range txs {
		out = append(out, gin.H{
			"id":              t.ID,
			"team_id":         t.TeamID,
			"side":            t.Side,
			"shares_amount":   t.SharesAmount,
			"usd_amount":      t.USDAmount,
			"avg_share_price": t.AvgSharePrice,
			"created_at":      t.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) postDeposit(c *gin.Context)  { s.moveFunds(c, true) }
func (s *Server) postWithdraw(c *gin.Context) { s.moveFunds(c, false) }

func (s *Server) moveFunds(c *gin.Context, deposit bool) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, domain.ErrInvalidAmount)
		return
	}
	if !req.Amount.IsPositive() {
		writeError(c, domain.ErrInvalidAmount)
		return
	}
	var (
		u   domain.User
		err error
	)
	if deposit {
		u, err = s.ex.Credit(c.Request.Context(), c.Param("id"), req.Amount)
	} else {
		u, err = s.ex.Debit(c.Request.Context(), c.Param("id"), req.Amount)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewUser(u))
}

func viewUser(u domain.User) gin.H {
	return gin.H{"id": u.ID, "usd_balance": u.USDBalance, "created_at": u.CreatedAt}
}

// requireCronSecret exige "Authorization: Bearer <secret>".
func (s *Server) requireCronSecret() gin.HandlerFunc {
	return func(c *gin.Context) {
		want := "Bearer " + s.cfg.CronSecret
		got := c.GetHeader("Authorization")
		if s.cfg.CronSecret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Server) postSync(c *gin.Context) {
	if s.sync == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "sync disabled"})
		return
	}
	r, err := s.sync.Run(c.Request.Context(), strings.ToUpper(c.Param("league")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"league":          r.League,
		"skipped":         r.Skipped,
		"teams_updated":   r.TeamsUpdated,
		"games_processed": r.GamesProcessed,
		"payouts_issued":  r.PayoutsIssued,
		"games_skipped":   r.GamesSkipped,
		"locked_teams":    r.LockedTeams,
		"errors":          r.Errors,
		"duration_ms":     r.Duration.Milliseconds(),
	})
}

func teamID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, domain.ErrTeamNotFound)
		return 0, false
	}
	return id, true
}
