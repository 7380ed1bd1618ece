package espn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/teamshares/internal/domain"
	"github.com/alejandrodnm/teamshares/internal/ports"
)

const (
	defaultBaseURL = "https://site.api.espn.com/apis"

	// La API pública no documenta límites; 5/s con burst 5 no ha dado 429 nunca.
	defaultRatePerSec = 5

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// DefaultSports mapea liga → path de deporte en la API.
var DefaultSports = map[string]string{
	"NHL": "hockey/nhl",
	"NFL": "football/nfl",
	"NBA": "basketball/nba",
	"MLB": "baseball/mlb",
}

// Client es el HTTP client del site API de ESPN con rate limiting y retries.
type Client struct {
	http    *http.Client
	baseURL string
	sports  map[string]string
	limiter *rate.Limiter
}

var _ ports.FeedProvider = (*Client)(nil)

// NewClient crea un Client. baseURL vacío usa producción; sports nil usa
// DefaultSports; ratePerSec <= 0 usa el default.
func NewClient(baseURL string, sports map[string]string, ratePerSec float64) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if sports == nil {
		sports = DefaultSports
	}
	if ratePerSec <= 0 {
		ratePerSec = defaultRatePerSec
	}
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		sports:  sports,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), 5),
	}
}

func (c *Client) sportPath(league string) (string, error) {
	p, ok := c.sports[strings.ToUpper(league)]
	if !ok {
		return "", fmt.Errorf("league %q: %w", league, domain.ErrUnknownLeague)
	}
	return p, nil
}

// get hace un GET con rate limiting y retries y decodifica el JSON en out.
func (c *Client) get(ctx context.Context, url string, out any) error {
	return c.doWithRetry(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	}, out)
}

// doWithRetry ejecuta la función con backoff exponencial.
// Transporte, 5xx y 4xx → ErrFeedUnavailable; body indecodificable → ErrFeedParse.
func (c *Client) doWithRetry(ctx context.Context, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w: %w", domain.ErrFeedUnavailable, err)
		}

		resp, err := fn()
		if err != nil {
			if ctx.Err() != nil || attempt == maxRetries {
				return fmt.Errorf("request failed after %d attempts: %w: %w", attempt+1, domain.ErrFeedUnavailable, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("rate limited by feed", "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries: %w", resp.StatusCode, maxRetries, domain.ErrFeedUnavailable)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s: %w", resp.StatusCode, string(body), domain.ErrFeedUnavailable)
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) {
				return fmt.Errorf("read response: %w: %w", domain.ErrFeedUnavailable, err)
			}
			return fmt.Errorf("decode response: %w: %w", domain.ErrFeedParse, err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries: %w", maxRetries, domain.ErrFeedUnavailable)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
