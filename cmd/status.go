package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/beekeep/internal/monitoring"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show apiary health: overdue hives and the unresolved backlog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		days, _ := cmd.Flags().GetInt("overdue-days")
		if days == 0 {
			days = cfg.Monitoring.OverdueDays
		}

		snap, err := monitoring.NewCollector(st).Collect(ctx, days)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}
		formatStatus(cmd.OutOrStdout(), snap)
		return nil
	},
}

func formatStatus(w io.Writer, snap *monitoring.MetricsSnapshot) {
	fmt.Fprintf(w, "Active hives:            %d\n", snap.ActiveHives)
	fmt.Fprintf(w, "Never inspected:         %d\n", snap.HivesNeverInspected)
	fmt.Fprintf(w, "Overdue (>%d days):      %d\n", snap.OverdueDays, snap.HivesOverdue)
	fmt.Fprintf(w, "Inspections:             %d\n", snap.InspectionsTotal)
	fmt.Fprintf(w, "Unconfirmed:             %d\n", snap.UnconfirmedInspections)
	fmt.Fprintf(w, "Unresolved backlog:      %d in %d session(s)\n", snap.UnresolvedBacklog, snap.SessionsWithUnresolved)
}

func init() {
	statusCmd.Flags().Int("overdue-days", 0, "days without inspection before a hive is overdue (default from config)")
	statusCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(statusCmd)
}
