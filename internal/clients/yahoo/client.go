// Package yahoo provides a Yahoo Finance client for daily price history and quotes.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/aristath/qtop/internal/domain"
)

const (
	DefaultBaseURL   = "https://query1.finance.yahoo.com"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
)

// Client is a Yahoo Finance API client.
// It implements domain.PriceHistoryProvider and domain.MarketCapProvider.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
	now        func() time.Time
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithRateLimit sets the outbound request rate. Values <= 0 disable limiting.
func WithRateLimit(requestsPerSecond float64) ClientOption {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new Yahoo Finance client
func NewClient(log zerolog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		log:     log.With().Str("client", "yahoo").Logger(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is a non-success answer from Yahoo.
// It unwraps to domain.ErrSymbolNotFound or domain.ErrProviderUnavailable.
type APIError struct {
	StatusCode int
	Message    string
	Symbol     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Yahoo Finance API error: %s (status: %d, symbol: %s)", e.Message, e.StatusCode, e.Symbol)
}

// Unwrap classifies the error for callers
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return domain.ErrSymbolNotFound
	}
	return domain.ErrProviderUnavailable
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol    string   `json:"symbol"`
			MarketCap *float64 `json:"marketCap"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"quoteResponse"`
}

// FetchHistory returns daily closes covering the last period.
// Missing closes are skipped and each calendar day appears once, so dates are strictly increasing.
func (c *Client) FetchHistory(ctx context.Context, symbol string, period time.Duration) (domain.PriceSeries, error) {
	now := c.now()
	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("period1", strconv.FormatInt(now.Add(-period).Unix(), 10))
	params.Set("period2", strconv.FormatInt(now.Unix(), 10))

	var resp chartResponse
	if err := c.get(ctx, symbol, "/v8/finance/chart/"+url.PathEscape(symbol), params, &resp); err != nil {
		return domain.PriceSeries{}, err
	}

	if resp.Chart.Error != nil {
		status := http.StatusBadGateway
		if resp.Chart.Error.Code == "Not Found" {
			status = http.StatusNotFound
		}
		return domain.PriceSeries{}, &APIError{StatusCode: status, Message: resp.Chart.Error.Description, Symbol: symbol}
	}

	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		c.log.Warn().Str("symbol", symbol).Msg("No historical data returned")
		return domain.PriceSeries{}, fmt.Errorf("%w: no historical data for %s", domain.ErrSymbolNotFound, symbol)
	}

	chart := resp.Chart.Result[0]
	closes := chart.Indicators.Quote[0].Close

	series := domain.PriceSeries{Symbol: symbol, Points: make([]domain.PricePoint, 0, len(chart.Timestamp))}
	for i, ts := range chart.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		date := time.Unix(ts, 0).UTC().Truncate(24 * time.Hour)
		point := domain.PricePoint{Date: date, Close: *closes[i]}

		n := len(series.Points)
		switch {
		case n > 0 && series.Points[n-1].Date.Equal(date):
			// Intraday snapshot of the last session replaces the earlier bar
			series.Points[n-1] = point
		case n > 0 && date.Before(series.Points[n-1].Date):
			continue
		default:
			series.Points = append(series.Points, point)
		}
	}

	c.log.Debug().Str("symbol", symbol).Int("points", series.Len()).Msg("Fetched price history")
	return series, nil
}

// FetchMarketCap returns the market capitalisation, nil when Yahoo has none
func (c *Client) FetchMarketCap(ctx context.Context, symbol string) (*float64, error) {
	params := url.Values{}
	params.Set("symbols", symbol)
	params.Set("fields", "symbol,marketCap")

	var resp quoteResponse
	if err := c.get(ctx, symbol, "/v7/finance/quote", params, &resp); err != nil {
		return nil, err
	}

	if resp.QuoteResponse.Error != nil {
		return nil, &APIError{StatusCode: http.StatusBadGateway, Message: fmt.Sprint(resp.QuoteResponse.Error), Symbol: symbol}
	}

	for _, q := range resp.QuoteResponse.Result {
		if strings.EqualFold(q.Symbol, symbol) {
			return q.MarketCap, nil
		}
	}

	return nil, nil
}

// get performs a rate-limited GET request and decodes the JSON body into result
func (c *Client) get(ctx context.Context, symbol, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limit wait: %v", domain.ErrProviderUnavailable, err)
	}

	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request for %s failed: %v", domain.ErrProviderUnavailable, symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %v", domain.ErrProviderUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg, Symbol: symbol}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("%w: failed to parse response: %v", domain.ErrProviderUnavailable, err)
	}

	return nil
}
