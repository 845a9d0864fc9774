package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/pipcalc/journal"
	"github.com/rustyeddy/pipcalc/risk"
)

func newTPCmd(rc *rootConfig) *cobra.Command {
	var (
		pair   string
		atr    string
		tp     string
		record bool
	)

	cmd := &cobra.Command{
		Use:   "tp",
		Short: "Take profit distance in pips from an ATR and TP %",
		Long: `Compute round(atr * 10000 * tp, 1) and print it.

Example:
  pipcalc tp --pair EURUSD --atr 0.0025 --tp 0.5
  EURUSD TP: 12.5 pips`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("pair") {
				pair = rc.cfg.Calculator.Pair
			}
			if !cmd.Flags().Changed("tp") {
				tp = strconv.FormatFloat(rc.cfg.Calculator.TPPercent, 'f', -1, 64)
			}

			atrV, tpV, err := risk.ParseInputs(atr, tp)
			if err != nil {
				return err
			}
			res, err := risk.Compute(pair, atrV, tpV)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), res.String())

			if !record {
				return nil
			}
			j, err := rc.openJournal()
			if err != nil {
				rc.log.Warn("journal unavailable, calculation not recorded", zap.Error(err))
				return nil
			}
			defer j.Close()
			if err := j.Record(cmd.Context(), journal.NewRecord("cli", atrV, tpV, res)); err != nil {
				rc.log.Warn("journal record failed", zap.Error(err))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pair, "pair", "", "Currency pair label (default from config)")
	cmd.Flags().StringVar(&atr, "atr", "", "ATR in price units, e.g. 0.0072 (required)")
	cmd.Flags().StringVar(&tp, "tp", "", "TP multiplier applied to the ATR (default from config)")
	cmd.Flags().BoolVar(&record, "record", true, "Record the calculation in the journal")
	_ = cmd.MarkFlagRequired("atr")

	return cmd
}
