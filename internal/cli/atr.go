package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/pipcalc/risk"
)

func newATRCmd(rc *rootConfig) *cobra.Command {
	var (
		slMult float64
		tpMult float64
	)

	cmd := &cobra.Command{
		Use:   "atr [pairs...]",
		Short: "Daily ATR in pips with stop loss and take profit distances",
		Long: `Download daily candles from OANDA, compute the ATR over the configured
period and print it in pips together with the SL and TP distances.

Examples:
  pipcalc atr EUR/USD USD/JPY
  pipcalc atr GBP_USD --sl 0.75 --tp 1.5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{rc.cfg.Calculator.Pair}
			}
			if !cmd.Flags().Changed("sl") {
				slMult = rc.cfg.Calculator.SLMultiplier
			}
			if !cmd.Flags().Changed("tp") {
				tpMult = rc.cfg.Calculator.TPPercent
			}

			svc, err := rc.volatilityService()
			if err != nil {
				return err
			}
			readings, err := svc.Many(cmd.Context(), args)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PAIR\tATR (pips)\tSL (pips)\tTP (pips)\tRR")
			for _, r := range readings {
				d, err := risk.NewDistances(r.Pair, r.ATRPips, slMult, tpMult)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%.1f\t%.1f\t%.1f\t%.2f\n", d.Pair, d.ATRPips, d.StopPips, d.TPPips, d.RR())
			}
			return w.Flush()
		},
	}

	cmd.Flags().Float64Var(&slMult, "sl", 0, "SL multiplier (default from config)")
	cmd.Flags().Float64Var(&tpMult, "tp", 0, "TP multiplier (default from config)")

	return cmd
}
