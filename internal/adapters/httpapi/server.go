package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/teamshares/internal/domain"
)

// Exchange es lo que la API necesita del servicio de trading.
type Exchange interface {
	Curve() domain.Curve
	Team(ctx context.Context, teamID int64) (domain.Team, error)
	Teams(ctx context.Context, league string) ([]domain.Team, error)
	Quote(ctx context.Context, teamID int64, side domain.Side, qty int64) (domain.Quote, error)
	MarketState(ctx context.Context, teamID int64) (domain.MarketState, error)
	Summary(ctx context.Context, league string) (domain.MarketSummary, error)
	ExecuteTrade(ctx context.Context, userID string, teamID int64, side domain.Side, qty int64) (domain.TradeResult, error)
	CreateUser(ctx context.Context, userID string) (domain.User, error)
	User(ctx context.Context, userID string) (domain.User, error)
	Transactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error)
	Credit(ctx context.Context, userID string, amount decimal.Decimal) (domain.User, error)
	Debit(ctx context.Context, userID string, amount decimal.Decimal) (domain.User, error)
}

// SyncRunner dispara un ciclo de settlement sync.
type SyncRunner interface {
	Run(ctx context.Context, league string) (domain.SyncReport, error)
}

// Config contiene la configuración del servidor HTTP.
type Config struct {
	Addr       string
	CronSecret string // vacío deshabilita /api/cron
}

// Server es la superficie HTTP del exchange.
type Server struct {
	cfg    Config
	ex     Exchange
	sync   SyncRunner
	engine *gin.Engine
}

// New monta el router. sync puede ser nil (sin endpoint de cron).
func New(cfg Config, ex Exchange, sync SyncRunner) *Server {
	s := &Server{cfg: cfg, ex: ex, sync: sync, engine: gin.New()}
	s.engine.Use(gin.Recovery(), requestLogger())
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.engine.Group("/api")
	{
		api.GET("/teams", s.listTeams)
		api.GET("/teams/:id", s.getTeam)
		api.GET("/teams/:id/quote", s.getQuote)
		api.GET("/teams/:id/market", s.getMarket)
		api.GET("/markets/:league/summary", s.getSummary)

		api.POST("/trades", s.postTrade)

		api.POST("/users", s.postUser)
		api.GET("/users/:id", s.getUser)
		api.GET("/users/:id/transactions", s.getTransactions)
		api.POST("/users/:id/deposit", s.postDeposit)
		api.POST("/users/:id/withdraw", s.postWithdraw)

		api.POST("/cron/sync/:league", s.requireCronSecret(), s.postSync)
	}
	s.engine.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
}

// Handler expone el router (tests y embedding).
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run sirve hasta que ctx se cancele y luego hace shutdown ordenado.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http api listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("httpapi.Run: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("httpapi.Run: shutdown: %w", err)
		}
		slog.Info("http api stopped")
		return nil
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start).Round(time.Microsecond),
		)
	}
}
