package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/beekeep/internal/ingest"
)

var assignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Assign unresolved records of a session to hives",
	Long: `Creates confirmed inspections from records the resolver could not match.
--index and --hive are paired in order; indices refer to the session's
unresolved list as shown by "beekeep sessions show".`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		sessionID, _ := cmd.Flags().GetString("session")
		indices, _ := cmd.Flags().GetIntSlice("index")
		hiveIDs, _ := cmd.Flags().GetStringSlice("hive")

		assignments, err := pairAssignments(indices, hiveIDs)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Pipeline.AssignUnresolved(ctx, sessionID, assignments)
		if err != nil {
			return eris.Wrap(err, "assign")
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Created %d inspection(s).\n", len(res.Created))
		if res.Dropped > 0 {
			fmt.Fprintf(out, "Dropped %d assignment(s) naming unknown or retired hives.\n", res.Dropped)
		}
		if len(res.Remaining) > 0 {
			fmt.Fprintf(out, "\n%d record(s) still unresolved:\n", len(res.Remaining))
			formatUnresolved(out, res.Remaining)
		}
		return nil
	},
}

// pairAssignments zips index and hive flags into assignments.
func pairAssignments(indices []int, hiveIDs []string) ([]ingest.IndexAssignment, error) {
	if len(indices) == 0 {
		return nil, eris.New("at least one --index is required")
	}
	if len(indices) != len(hiveIDs) {
		return nil, eris.Errorf("got %d --index and %d --hive values; they must pair up", len(indices), len(hiveIDs))
	}
	out := make([]ingest.IndexAssignment, len(indices))
	for i := range indices {
		out[i] = ingest.IndexAssignment{Index: indices[i], HiveID: hiveIDs[i]}
	}
	return out, nil
}

func init() {
	assignCmd.Flags().String("session", "", "session ID (required)")
	assignCmd.Flags().IntSlice("index", nil, "unresolved record index (repeatable)")
	assignCmd.Flags().StringSlice("hive", nil, "hive ID for the matching --index (repeatable)")
	_ = assignCmd.MarkFlagRequired("session")
	rootCmd.AddCommand(assignCmd)
}
