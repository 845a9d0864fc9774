// Package cli holds the pipcalc cobra commands.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/pipcalc/config"
	"github.com/rustyeddy/pipcalc/indicators"
	"github.com/rustyeddy/pipcalc/internal/logger"
	"github.com/rustyeddy/pipcalc/internal/volatility"
	"github.com/rustyeddy/pipcalc/journal"
	"github.com/rustyeddy/pipcalc/oanda"
)

const version = "1.0.0"

// rootConfig is shared by every subcommand; it is filled in by the
// persistent flags and PersistentPreRunE.
type rootConfig struct {
	ConfigPath string
	LogLevel   string

	cfg *config.Config
	log *zap.Logger
}

func NewRootCmd() *cobra.Command {
	rc := &rootConfig{}

	cmd := &cobra.Command{
		Use:   "pipcalc",
		Short: "ATR based stop loss and take profit distances in pips",
		Long: `pipcalc converts an Average True Range into take profit (and stop loss)
distances expressed in pips.

It provides:
  - tp       one-off take profit calculation from an ATR and TP %
  - atr      live daily ATR from OANDA with SL/TP distances
  - serve    the calculator as a web page and JSON API
  - journal  history of past calculations`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&rc.ConfigPath, "config", "", "Path to config file (optional)")
	cmd.PersistentFlags().StringVar(&rc.LogLevel, "log-level", "", "Log level: debug|info|warn|error (overrides config)")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(rc.ConfigPath)
		if err != nil {
			return err
		}
		if rc.LogLevel != "" {
			cfg.Log.Level = rc.LogLevel
		}
		log, err := logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Development)
		if err != nil {
			return err
		}
		rc.cfg = cfg
		rc.log = log
		return nil
	}
	cmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if rc.log != nil {
			_ = rc.log.Sync()
		}
	}

	cmd.AddCommand(
		newTPCmd(rc),
		newATRCmd(rc),
		newServeCmd(rc),
		newConfigCmd(rc),
		newJournalCmd(rc),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "pipcalc version %s\n", version)
			},
		},
	)

	return cmd
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// volatilityService builds the OANDA backed ATR service from config.
func (rc *rootConfig) volatilityService() (*volatility.Service, error) {
	oc := rc.cfg.OANDA
	if oc.Token == "" {
		return nil, fmt.Errorf("OANDA token required (set oanda.token or %s_OANDA_TOKEN)", config.EnvPrefix)
	}

	opts := []oanda.Option{
		oanda.WithRetry(oc.Retries, 500*time.Millisecond),
		oanda.WithNotify(func(err error, wait time.Duration) {
			rc.log.Warn("retrying OANDA request", zap.Error(err), zap.Duration("backoff", wait))
		}),
	}
	if oc.BaseURL != "" {
		opts = append(opts, oanda.WithBaseURL(oc.BaseURL))
	}
	client := oanda.NewClient(oc.Token, oc.Practice, opts...)

	ttl, err := rc.cfg.Cache.ParseTTL()
	if err != nil {
		return nil, err
	}
	method, err := indicators.ParseATRMethod(rc.cfg.Calculator.ATRMethod)
	if err != nil {
		return nil, err
	}

	return volatility.New(client, volatility.Options{
		Period:      rc.cfg.Calculator.ATRPeriod,
		Method:      method,
		Count:       oc.Count,
		Granularity: oanda.Granularity(oc.Granularity),
		TTL:         ttl,
		Parallel:    4,
		Logger:      rc.log,
	}), nil
}

func (rc *rootConfig) openJournal() (journal.Journal, error) {
	j, err := journal.Open(rc.cfg.Journal)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return j, nil
}
