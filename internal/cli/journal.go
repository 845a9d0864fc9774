package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/pipcalc/risk"
)

func newJournalCmd(rc *rootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect recorded calculations",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent calculations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := rc.openJournal()
			if err != nil {
				return err
			}
			defer j.Close()

			recs, err := j.List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list journal: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTIME\tSOURCE\tPAIR\tATR\tTP%\tTP (pips)")
			for _, r := range recs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%g\t%g\t%s\n",
					r.ID, r.Time.Format(time.RFC3339), r.Source, r.Pair, r.ATR, r.TPPercent, risk.FormatPips(r.TPPips))
			}
			return w.Flush()
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum records to show (0 for all)")

	cmd.AddCommand(listCmd)
	return cmd
}
