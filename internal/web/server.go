// Package web is the browser and JSON front end for the take profit
// calculator.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rustyeddy/pipcalc/config"
	"github.com/rustyeddy/pipcalc/internal/volatility"
	"github.com/rustyeddy/pipcalc/journal"
	"github.com/rustyeddy/pipcalc/risk"
)

//go:embed templates/*.html
var templates embed.FS

// ATRSource supplies a live ATR in pips, normally *volatility.Service.
type ATRSource interface {
	ATRPips(ctx context.Context, pair string) (volatility.Reading, error)
	Invalidate(pair string)
}

type Server struct {
	defaults config.CalculatorConfig
	atr      ATRSource
	journal  journal.Journal
	log      *zap.Logger
	engine   *gin.Engine
}

// New wires the routes. atr may be nil when no market data token is
// configured; the /api/atr route then answers 503.
func New(defaults config.CalculatorConfig, atr ATRSource, j journal.Journal, log *zap.Logger) *Server {
	if j == nil {
		j = journal.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))
	r.SetHTMLTemplate(template.Must(template.ParseFS(templates, "templates/*.html")))

	s := &Server{
		defaults: defaults,
		atr:      atr,
		journal:  j,
		log:      log,
		engine:   r,
	}
	s.registerRoutes(r)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes(r *gin.Engine) {
	r.GET("/", s.index)
	r.POST("/", s.calculate)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.GET("/tp", s.apiTP)
	api.GET("/atr/:pair", s.apiATR)
}

type page struct {
	Pair   string
	ATR    string
	TP     string
	Result string
	Error  string
}

func (s *Server) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", page{
		Pair: s.defaults.Pair,
		TP:   strconv.FormatFloat(s.defaults.TPPercent, 'f', -1, 64),
	})
}

func (s *Server) calculate(c *gin.Context) {
	p := page{
		Pair: c.PostForm("pair"),
		ATR:  c.PostForm("atr"),
		TP:   c.PostForm("tp"),
	}

	tp, err := s.compute(c, "web", p.Pair, p.ATR, p.TP)
	if err != nil {
		p.Error = risk.InvalidInputMessage
		c.HTML(http.StatusUnprocessableEntity, "index.html", p)
		return
	}

	p.Result = tp.String()
	c.HTML(http.StatusOK, "index.html", p)
}

type tpResponse struct {
	risk.TakeProfit
	Display string `json:"display"`
}

func (s *Server) apiTP(c *gin.Context) {
	pair := c.DefaultQuery("pair", s.defaults.Pair)
	tpText := c.DefaultQuery("tp", strconv.FormatFloat(s.defaults.TPPercent, 'f', -1, 64))

	tp, err := s.compute(c, "api", pair, c.Query("atr"), tpText)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": risk.InvalidInputMessage})
		return
	}
	c.JSON(http.StatusOK, tpResponse{TakeProfit: tp, Display: tp.String()})
}

type atrResponse struct {
	volatility.Reading
	Distances risk.Distances `json:"distances"`
	RR        float64        `json:"rr"`
}

func (s *Server) apiATR(c *gin.Context) {
	if s.atr == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "market data is not configured"})
		return
	}

	slMult, err1 := queryFloat(c, "sl", s.defaults.SLMultiplier)
	tpMult, err2 := queryFloat(c, "tp", s.defaults.TPPercent)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sl and tp must be numbers"})
		return
	}
	refresh := false
	if v := c.Query("refresh"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "refresh must be a boolean"})
			return
		}
		refresh = b
	}

	pair := c.Param("pair")
	if refresh {
		s.atr.Invalidate(pair)
	}
	reading, err := s.atr.ATRPips(c.Request.Context(), pair)
	if err != nil {
		s.log.Error("atr lookup failed", zap.String("pair", pair), zap.Error(err))
		status := http.StatusBadGateway
		if errors.Is(err, volatility.ErrNoData) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	d, err := risk.NewDistances(pair, reading.ATRPips, slMult, tpMult)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, atrResponse{Reading: reading, Distances: d, RR: d.RR()})
}

// compute parses, computes and journals one calculation.
func (s *Server) compute(c *gin.Context, source, pair, atrText, tpText string) (risk.TakeProfit, error) {
	atr, tpPct, err := risk.ParseInputs(atrText, tpText)
	if err != nil {
		s.log.Debug("invalid input", zap.String("atr", atrText), zap.String("tp", tpText))
		return risk.TakeProfit{}, err
	}
	tp, err := risk.Compute(pair, atr, tpPct)
	if err != nil {
		return risk.TakeProfit{}, err
	}

	if err := s.journal.Record(c.Request.Context(), journal.NewRecord(source, atr, tpPct, tp)); err != nil {
		s.log.Warn("journal record failed", zap.Error(err))
	}
	return tp, nil
}

func queryFloat(c *gin.Context, key string, def float64) (float64, error) {
	v, ok := c.GetQuery(key)
	if !ok || v == "" {
		return def, nil
	}
	return strconv.ParseFloat(v, 64)
}

// ListenAndServe runs the server until ctx is cancelled, then shuts it
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}
