package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/beekeep/internal/model"
	"github.com/sells-group/beekeep/internal/store"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect recording sessions",
}

// -- sessions list --

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sessions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		unresolved, _ := cmd.Flags().GetBool("unresolved")
		limit, _ := cmd.Flags().GetInt("limit")

		sessions, err := st.ListSessions(ctx, store.SessionFilter{
			WithUnresolved: unresolved,
			Limit:          limit,
		})
		if err != nil {
			return eris.Wrap(err, "sessions list")
		}
		if len(sessions) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No sessions found.")
			return nil
		}
		formatSessionsList(cmd.OutOrStdout(), sessions)
		return nil
	},
}

// -- sessions show --

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session with its inspections and unresolved records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sess, err := st.GetSession(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "sessions show")
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(sess)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Session:     %s\n", sess.ID)
		fmt.Fprintf(out, "Source:      %s\n", sess.Source)
		fmt.Fprintf(out, "Created:     %s\n", sess.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		if sess.RecordingURL != "" {
			fmt.Fprintf(out, "Recording:   %s\n", sess.RecordingURL)
		}
		fmt.Fprintf(out, "Inspections: %d\n", len(sess.InspectionIDs))
		for _, id := range sess.InspectionIDs {
			fmt.Fprintf(out, "  %s\n", id)
		}
		if len(sess.Unresolved) > 0 {
			fmt.Fprintf(out, "\nUnresolved:  %d\n", len(sess.Unresolved))
			formatUnresolved(out, sess.Unresolved)
		}
		return nil
	},
}

// formatSessionsList writes a tabular list of sessions to w.
func formatSessionsList(out io.Writer, sessions []model.Session) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSOURCE\tCREATED\tINSPECTIONS\tUNRESOLVED")
	_, _ = fmt.Fprintln(w, "--\t------\t-------\t-----------\t----------")

	for _, s := range sessions {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
			truncateID(s.ID),
			s.Source,
			s.CreatedAt.Local().Format("2006-01-02 15:04"),
			len(s.InspectionIDs),
			len(s.Unresolved),
		)
	}
	_ = w.Flush()
}

func init() {
	sessionsListCmd.Flags().Bool("unresolved", false, "only sessions with unresolved records")
	sessionsListCmd.Flags().Int("limit", 20, "max sessions to show")
	sessionsShowCmd.Flags().Bool("json", false, "output as JSON")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	rootCmd.AddCommand(sessionsCmd)
}
