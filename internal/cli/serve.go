package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/pipcalc/internal/web"
)

func newServeCmd(rc *rootConfig) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the calculator page and JSON API",
		Long: `Start the web calculator.

Routes:
  GET  /                 calculator form
  POST /                 form submit
  GET  /api/tp           ?pair=&atr=&tp=
  GET  /api/atr/:pair    ?sl=&tp=  (needs an OANDA token)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = rc.cfg.Server.Addr
			}

			var atr web.ATRSource
			if svc, err := rc.volatilityService(); err != nil {
				rc.log.Warn("live ATR disabled", zap.Error(err))
			} else {
				atr = svc
			}

			j, err := rc.openJournal()
			if err != nil {
				return err
			}
			defer j.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return web.New(rc.cfg.Calculator, atr, j, rc.log).ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}

