// Package volatility turns daily OANDA candles into an ATR measured in
// pips and caches the result per instrument.
package volatility

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/rustyeddy/pipcalc/indicators"
	"github.com/rustyeddy/pipcalc/market"
	"github.com/rustyeddy/pipcalc/oanda"
)

// ErrNoData is returned when the source has no usable candles.
var ErrNoData = errors.New("could not fetch market data")

// CandleSource is anything that can return candles, normally *oanda.Client.
type CandleSource interface {
	GetCandles(ctx context.Context, req oanda.CandlesRequest) ([]market.Candle, error)
}

// Reading is the ATR of one instrument at a point in time.
type Reading struct {
	Pair       string    `json:"pair"`
	Instrument string    `json:"instrument"`
	ATRPrice   float64   `json:"atr_price"`
	ATRPips    float64   `json:"atr_pips"`
	PipSize    float64   `json:"pip_size"`
	Method     string    `json:"method"`
	Candles    int       `json:"candles"`
	AsOf       time.Time `json:"as_of"`
}

type Options struct {
	Period       int
	Method       indicators.ATRMethod
	Count        int
	Granularity  oanda.Granularity
	TTL          time.Duration
	FetchTimeout time.Duration // bounds a shared fetch, default 30s
	Parallel     int           // bounds Many, 0 means no limit
	Logger       *zap.Logger
	Now          func() time.Time // cache clock
}

type Service struct {
	src  CandleSource
	opts Options
	log  *zap.Logger

	group singleflight.Group

	mu    sync.Mutex
	cache map[string]Reading
}

func New(src CandleSource, opts Options) *Service {
	if opts.Period <= 0 {
		opts.Period = 14
	}
	if opts.Count <= opts.Period {
		opts.Count = opts.Period * 5
	}
	if opts.Method == "" {
		opts.Method = indicators.SimpleMethod
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	if opts.Granularity == "" {
		opts.Granularity = oanda.D
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		src:   src,
		opts:  opts,
		log:   log,
		cache: make(map[string]Reading),
	}
}

// ATRPips returns the current ATR for pair in pips. A cached value is
// reused until it is older than the TTL.
//
// Concurrent callers for one instrument share a single fetch. The fetch
// is detached from the caller that started it, so one caller giving up
// only ends its own wait.
func (s *Service) ATRPips(ctx context.Context, pair string) (Reading, error) {
	instrument := market.NormalizePair(pair)

	if r, ok := s.cached(instrument); ok {
		s.log.Debug("atr cache hit", zap.String("instrument", instrument))
		r.Pair = pair
		return r, nil
	}

	ch := s.group.DoChan(instrument, func() (any, error) {
		// a flight that just finished may have filled the cache
		if r, ok := s.cached(instrument); ok {
			return r, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.FetchTimeout)
		defer cancel()
		return s.fetch(fctx, instrument)
	})

	select {
	case <-ctx.Done():
		return Reading{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Reading{}, res.Err
		}
		r := res.Val.(Reading)
		r.Pair = pair
		return r, nil
	}
}

// Many fetches several pairs concurrently. Results keep the order of
// pairs; the first error cancels the rest.
func (s *Service) Many(ctx context.Context, pairs []string) ([]Reading, error) {
	out := make([]Reading, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	if s.opts.Parallel > 0 {
		g.SetLimit(s.opts.Parallel)
	}
	for i, p := range pairs {
		g.Go(func() error {
			r, err := s.ATRPips(gctx, p)
			if err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Invalidate drops any cached reading for pair.
func (s *Service) Invalidate(pair string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, market.NormalizePair(pair))
}

func (s *Service) cached(instrument string) (Reading, bool) {
	if s.opts.TTL <= 0 {
		return Reading{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.cache[instrument]
	if !ok {
		return Reading{}, false
	}
	if s.opts.Now().Sub(r.AsOf) >= s.opts.TTL {
		delete(s.cache, instrument)
		return Reading{}, false
	}
	return r, true
}

func (s *Service) fetch(ctx context.Context, instrument string) (Reading, error) {
	start := s.opts.Now()
	candles, err := s.src.GetCandles(ctx, oanda.CandlesRequest{
		Instrument:  instrument,
		Granularity: s.opts.Granularity,
		Count:       s.opts.Count,
	})
	if err != nil {
		s.log.Warn("candles fetch failed", zap.String("instrument", instrument), zap.Error(err))
		return Reading{}, fmt.Errorf("fetch candles: %w", err)
	}
	if len(candles) == 0 {
		return Reading{}, ErrNoData
	}

	atr, err := s.opts.Method.Compute(candles, s.opts.Period)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: %v", ErrNoData, err)
	}

	pip := market.PipSize(instrument)
	r := Reading{
		Instrument: instrument,
		ATRPrice:   atr,
		ATRPips:    atr / pip,
		PipSize:    pip,
		Method:     string(s.opts.Method),
		Candles:    len(candles),
		AsOf:       s.opts.Now(),
	}

	s.log.Info("atr updated",
		zap.String("instrument", instrument),
		zap.Float64("atr_pips", r.ATRPips),
		zap.String("method", r.Method),
		zap.Int("candles", r.Candles),
		zap.Duration("took", r.AsOf.Sub(start)),
	)

	if s.opts.TTL > 0 {
		s.mu.Lock()
		s.cache[instrument] = r
		s.mu.Unlock()
	}
	return r, nil
}
