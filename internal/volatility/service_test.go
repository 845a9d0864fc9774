package volatility

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rustyeddy/pipcalc/indicators"
	"github.com/rustyeddy/pipcalc/market"
	"github.com/rustyeddy/pipcalc/oanda"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu      sync.Mutex
	calls   map[string]int
	last    oanda.CandlesRequest
	candles map[string][]market.Candle
	err     error
}

func (f *fakeSource) GetCandles(ctx context.Context, req oanda.CandlesRequest) ([]market.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[req.Instrument]++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return f.candles[req.Instrument], nil
}

func (f *fakeSource) count(instrument string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[instrument]
}

// flatCandles returns n candles whose true range is always rng.
func flatCandles(n int, base, rng float64) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		out[i] = market.Candle{Open: base, High: base + rng/2, Low: base - rng/2, Close: base}
	}
	return out
}

// gatedSource holds every fetch until release is closed.
type gatedSource struct {
	fakeSource
	started chan context.Context
	release chan struct{}
}

func newGatedSource(candles map[string][]market.Candle) *gatedSource {
	return &gatedSource{
		fakeSource: fakeSource{candles: candles},
		started:    make(chan context.Context, 16),
		release:    make(chan struct{}),
	}
}

func (g *gatedSource) GetCandles(ctx context.Context, req oanda.CandlesRequest) ([]market.Candle, error) {
	g.started <- ctx
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.fakeSource.GetCandles(ctx, req)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestATRPips(t *testing.T) {
	t.Parallel()

	src := &fakeSource{candles: map[string][]market.Candle{
		"EUR_USD": flatCandles(20, 1.08, 0.0070),
		"USD_JPY": flatCandles(20, 150, 0.90),
	}}
	svc := New(src, Options{Period: 14, Count: 20})

	r, err := svc.ATRPips(context.Background(), "EUR/USD")
	require.NoError(t, err)
	assert.Equal(t, "EUR/USD", r.Pair)
	assert.Equal(t, "EUR_USD", r.Instrument)
	assert.InDelta(t, 0.0070, r.ATRPrice, 1e-12)
	assert.InDelta(t, 70.0, r.ATRPips, 1e-6)
	assert.Equal(t, 20, r.Candles)

	assert.Equal(t, oanda.D, src.last.Granularity)
	assert.Equal(t, 20, src.last.Count)

	r, err = svc.ATRPips(context.Background(), "usdjpy")
	require.NoError(t, err)
	assert.InDelta(t, 90.0, r.ATRPips, 1e-6)
	assert.InDelta(t, 0.01, r.PipSize, 1e-12)
}

func TestATRPips_CacheTTL(t *testing.T) {
	t.Parallel()

	clk := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	src := &fakeSource{candles: map[string][]market.Candle{
		"EUR_USD": flatCandles(20, 1.08, 0.0070),
	}}
	svc := New(src, Options{Period: 14, Count: 20, TTL: 30 * time.Minute, Now: clk.now})

	ctx := context.Background()
	_, err := svc.ATRPips(ctx, "EUR/USD")
	require.NoError(t, err)
	_, err = svc.ATRPips(ctx, "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, 1, src.count("EUR_USD"), "second call served from cache")

	clk.t = clk.t.Add(29 * time.Minute)
	_, err = svc.ATRPips(ctx, "EUR/USD")
	require.NoError(t, err)
	assert.Equal(t, 1, src.count("EUR_USD"))

	clk.t = clk.t.Add(time.Minute)
	_, err = svc.ATRPips(ctx, "EUR/USD")
	require.NoError(t, err)
	assert.Equal(t, 2, src.count("EUR_USD"), "expired entry refetched")

	svc.Invalidate("EUR/USD")
	_, err = svc.ATRPips(ctx, "EUR/USD")
	require.NoError(t, err)
	assert.Equal(t, 3, src.count("EUR_USD"))
}

func TestATRPips_WilderMethod(t *testing.T) {
	t.Parallel()

	candles := []market.Candle{
		{High: 1.1010, Low: 1.0990, Close: 1.1000},
		{High: 1.1030, Low: 1.1000, Close: 1.1020},
		{High: 1.1025, Low: 1.1005, Close: 1.1010},
		{High: 1.1060, Low: 1.1020, Close: 1.1050},
	}
	src := &fakeSource{candles: map[string][]market.Candle{"EUR_USD": candles}}

	r, err := New(src, Options{Period: 2, Count: 4}).ATRPips(context.Background(), "EUR/USD")
	require.NoError(t, err)
	assert.Equal(t, "simple", r.Method)
	assert.InDelta(t, 35.0, r.ATRPips, 1e-6)

	r, err = New(src, Options{Period: 2, Count: 4, Method: indicators.WilderMethod}).ATRPips(context.Background(), "EUR/USD")
	require.NoError(t, err)
	assert.Equal(t, "wilder", r.Method)
	assert.InDelta(t, 37.5, r.ATRPips, 1e-6)
}

func TestATRPips_SharedFetch(t *testing.T) {
	t.Parallel()

	src := newGatedSource(map[string][]market.Candle{
		"EUR_USD": flatCandles(20, 1.08, 0.0070),
	})
	svc := New(src, Options{Period: 14, TTL: 30 * time.Minute})

	ctx := context.Background()
	first := make(chan error, 1)
	go func() {
		_, err := svc.ATRPips(ctx, "EUR/USD")
		first <- err
	}()
	<-src.started

	// The fetch is parked on release, so every caller below either joins
	// it or, if it arrives late, reads the cached result.
	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := svc.ATRPips(ctx, "EURUSD")
			if err == nil {
				assert.InDelta(t, 70.0, r.ATRPips, 1e-6)
			}
			errs <- err
		}()
	}

	close(src.release)
	require.NoError(t, <-first)
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, src.count("EUR_USD"))
}

func TestATRPips_CallerCancelDoesNotAbortSharedFetch(t *testing.T) {
	t.Parallel()

	src := newGatedSource(map[string][]market.Candle{
		"EUR_USD": flatCandles(20, 1.08, 0.0070),
	})
	svc := New(src, Options{Period: 14})

	ctx1, cancel1 := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := svc.ATRPips(ctx1, "EUR/USD")
		first <- err
	}()
	fetchCtx := <-src.started

	second := make(chan error, 1)
	go func() {
		_, err := svc.ATRPips(context.Background(), "EUR/USD")
		second <- err
	}()

	cancel1()
	assert.ErrorIs(t, <-first, context.Canceled)
	assert.NoError(t, fetchCtx.Err(), "fetch outlives the caller that started it")
	_, hasDeadline := fetchCtx.Deadline()
	assert.True(t, hasDeadline)

	close(src.release)
	assert.NoError(t, <-second)
}

func TestATRPips_NoCacheWithoutTTL(t *testing.T) {
	t.Parallel()

	src := &fakeSource{candles: map[string][]market.Candle{
		"EUR_USD": flatCandles(20, 1.08, 0.0070),
	}}
	svc := New(src, Options{Period: 14})

	for i := 0; i < 3; i++ {
		_, err := svc.ATRPips(context.Background(), "EUR/USD")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, src.count("EUR_USD"))
	assert.Equal(t, 70, src.last.Count, "count defaults to five periods")
}

func TestATRPips_Errors(t *testing.T) {
	t.Parallel()

	src := &fakeSource{candles: map[string][]market.Candle{
		"EUR_USD": flatCandles(5, 1.08, 0.0070),
	}}
	svc := New(src, Options{Period: 14})

	_, err := svc.ATRPips(context.Background(), "GBP/USD")
	assert.ErrorIs(t, err, ErrNoData)

	_, err = svc.ATRPips(context.Background(), "EUR/USD")
	assert.ErrorIs(t, err, ErrNoData, "too few candles for the period")

	boom := errors.New("boom")
	src.err = boom
	_, err = svc.ATRPips(context.Background(), "EUR/USD")
	assert.ErrorIs(t, err, boom)
}

func TestMany(t *testing.T) {
	t.Parallel()

	src := &fakeSource{candles: map[string][]market.Candle{
		"EUR_USD": flatCandles(20, 1.08, 0.0070),
		"GBP_USD": flatCandles(20, 1.27, 0.0100),
		"USD_JPY": flatCandles(20, 150, 0.90),
	}}
	svc := New(src, Options{Period: 14, Parallel: 2})

	rs, err := svc.Many(context.Background(), []string{"USD/JPY", "EUR/USD", "GBP/USD"})
	require.NoError(t, err)
	require.Len(t, rs, 3)
	assert.Equal(t, "USD/JPY", rs[0].Pair)
	assert.Equal(t, "EUR/USD", rs[1].Pair)
	assert.Equal(t, "GBP/USD", rs[2].Pair)
	assert.InDelta(t, 100.0, rs[2].ATRPips, 1e-6)

	_, err = svc.Many(context.Background(), []string{"EUR/USD", "AUD/USD"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoData)
	assert.Contains(t, err.Error(), "AUD/USD")
}
