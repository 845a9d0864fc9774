// Package oanda is a small client for the OANDA v3 REST candles
// endpoint, used to pull the daily history ATR is computed from.
package oanda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rustyeddy/pipcalc/market"
)

const (
	// PracticeURL is the URL for OANDA's practice/demo environment
	PracticeURL = "https://api-fxpractice.oanda.com"
	// LiveURL is the URL for OANDA's live trading environment
	LiveURL = "https://api-fxtrade.oanda.com"

	// MaxCount is the largest count OANDA accepts per candles request.
	MaxCount = 5000
)

// ErrMissingToken is returned when a request is attempted without an API token.
var ErrMissingToken = errors.New("oanda: missing token")

// Granularity represents the time frame for candles
type Granularity string

const (
	M1  Granularity = "M1"  // 1 minute
	M5  Granularity = "M5"  // 5 minutes
	M15 Granularity = "M15" // 15 minutes
	M30 Granularity = "M30" // 30 minutes
	H1  Granularity = "H1"  // 1 hour
	H4  Granularity = "H4"  // 4 hours
	D   Granularity = "D"   // 1 day
	W   Granularity = "W"   // 1 week
)

// PriceComponent represents the price component for candles
type PriceComponent string

const (
	MidPrice PriceComponent = "M" // Midpoint candles
	BidPrice PriceComponent = "B" // Bid candles
	AskPrice PriceComponent = "A" // Ask candles
)

// Client represents an OANDA API client
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client

	maxTries      uint
	retryInterval time.Duration
	notify        backoff.Notify
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another server, mostly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the default 30s timeout client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithRetry sets how many attempts a request gets and the first
// backoff interval.
func WithRetry(maxTries uint, interval time.Duration) Option {
	return func(c *Client) {
		c.maxTries = maxTries
		c.retryInterval = interval
	}
}

// WithNotify is called before every retry with the error and the wait.
func WithNotify(n backoff.Notify) Option {
	return func(c *Client) { c.notify = n }
}

// NewClient creates a new OANDA API client
func NewClient(token string, practice bool, opts ...Option) *Client {
	baseURL := LiveURL
	if practice {
		baseURL = PracticeURL
	}

	c := &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxTries:      3,
		retryInterval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CandlesRequest represents parameters for fetching historical candles
type CandlesRequest struct {
	Instrument  string         // Required, e.g. "EUR_USD"
	Price       PriceComponent // default MidPrice
	Granularity Granularity    // default D
	Count       int            // max 5000, mutually exclusive with From/To
	From        *time.Time
	To          *time.Time
}

type candleData struct {
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
}

type apiCandle struct {
	Complete bool        `json:"complete"`
	Volume   int         `json:"volume"`
	Time     string      `json:"time"`
	Mid      *candleData `json:"mid,omitempty"`
	Bid      *candleData `json:"bid,omitempty"`
	Ask      *candleData `json:"ask,omitempty"`
}

type candlesResponse struct {
	Instrument  string      `json:"instrument"`
	Granularity string      `json:"granularity"`
	Candles     []apiCandle `json:"candles"`
}

// StatusError is a non-200 reply from OANDA.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("oanda: API error (status %d): %s", e.Code, e.Body)
}

// GetCandles fetches complete historical candles from OANDA. Transport
// errors and 5xx replies are retried with exponential backoff; other
// failures are returned straight away.
func (c *Client) GetCandles(ctx context.Context, req CandlesRequest) ([]market.Candle, error) {
	if c.token == "" {
		return nil, ErrMissingToken
	}
	if req.Instrument == "" {
		return nil, fmt.Errorf("instrument is required")
	}
	if req.Count > MaxCount {
		return nil, fmt.Errorf("count cannot exceed %d", MaxCount)
	}
	if req.Price == "" {
		req.Price = MidPrice
	}
	if req.Granularity == "" {
		req.Granularity = D
	}

	apiURL, err := c.candlesURL(req)
	if err != nil {
		return nil, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval
	policy.MaxInterval = c.retryInterval * 10

	opts := []backoff.RetryOption{
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.maxTries),
	}
	if c.notify != nil {
		opts = append(opts, backoff.WithNotify(c.notify))
	}

	apiResp, err := backoff.Retry(ctx, func() (*candlesResponse, error) {
		return c.fetch(ctx, apiURL)
	}, opts...)
	if err != nil {
		return nil, err
	}

	return toCandles(apiResp, req.Price)
}

func (c *Client) candlesURL(req CandlesRequest) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	u.Path = fmt.Sprintf("/v3/instruments/%s/candles", req.Instrument)

	params := url.Values{}
	params.Set("price", string(req.Price))
	params.Set("granularity", string(req.Granularity))
	if req.Count > 0 {
		params.Set("count", strconv.Itoa(req.Count))
	} else {
		if req.From != nil {
			params.Set("from", req.From.UTC().Format(time.RFC3339))
		}
		if req.To != nil {
			params.Set("to", req.To.UTC().Format(time.RFC3339))
		}
	}
	u.RawQuery = params.Encode()
	return u.String(), nil
}

func (c *Client) fetch(ctx context.Context, apiURL string) (*candlesResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Accept-Datetime-Format", "RFC3339")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		serr := &StatusError{Code: resp.StatusCode, Body: string(body)}
		if resp.StatusCode >= 500 {
			return nil, serr
		}
		return nil, backoff.Permanent(serr)
	}

	var apiResp candlesResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return &apiResp, nil
}

func toCandles(apiResp *candlesResponse, price PriceComponent) ([]market.Candle, error) {
	candles := make([]market.Candle, 0, len(apiResp.Candles))
	for _, ac := range apiResp.Candles {
		// the still-forming candle would understate the range
		if !ac.Complete {
			continue
		}

		t, err := time.Parse(time.RFC3339, ac.Time)
		if err != nil {
			return nil, fmt.Errorf("parse time %s: %w", ac.Time, err)
		}

		var pd *candleData
		switch price {
		case BidPrice:
			pd = ac.Bid
		case AskPrice:
			pd = ac.Ask
		default:
			pd = ac.Mid
		}
		if pd == nil {
			return nil, fmt.Errorf("candle %s has no %s prices", ac.Time, price)
		}

		var ohlc [4]float64
		for i, s := range []string{pd.O, pd.H, pd.L, pd.C} {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("parse price %q: %w", s, err)
			}
			ohlc[i] = v
		}

		candles = append(candles, market.Candle{
			Instrument: apiResp.Instrument,
			Time:       t,
			Open:       ohlc[0],
			High:       ohlc[1],
			Low:        ohlc[2],
			Close:      ohlc[3],
			Volume:     float64(ac.Volume),
			Complete:   true,
		})
	}

	return candles, nil
}
