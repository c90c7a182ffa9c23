package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/beekeep/internal/ingest"
	"github.com/sells-group/beekeep/internal/model"
	"github.com/sells-group/beekeep/internal/salvage"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Reconcile a saved extraction response against the hive registry",
	Long: `Reads a language-model extraction response (fenced or bare JSON) and
creates inspection records for every hive it can resolve. Records that
name no registered hive are kept on the session for "beekeep assign".`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		file, _ := cmd.Flags().GetString("file")
		transcriptPath, _ := cmd.Flags().GetString("transcript")
		source, _ := cmd.Flags().GetString("source")

		raw, err := readInput(cmd, file)
		if err != nil {
			return err
		}
		var transcript string
		if transcriptPath != "" {
			data, err := os.ReadFile(transcriptPath)
			if err != nil {
				return eris.Wrapf(err, "read transcript %s", transcriptPath)
			}
			transcript = string(data)
		}

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		out, err := env.Pipeline.ProcessText(ctx, ingest.IngestRequest{
			Source:     model.SessionSource(source),
			Transcript: transcript,
			Raw:        raw,
		})
		if err != nil {
			reportExtractionError(cmd.ErrOrStderr(), out, err)
			return err
		}

		formatOutcome(cmd.OutOrStdout(), out)
		return nil
	},
}

// readInput reads path, or stdin when path is "-" or empty.
func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", eris.Wrap(err, "read stdin")
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "read %s", path)
	}
	return string(data), nil
}

// reportExtractionError prints what a human needs to re-enter an unusable
// extraction by hand.
func reportExtractionError(w io.Writer, out *ingest.Outcome, err error) {
	if out != nil && out.Session != nil {
		fmt.Fprintf(w, "Session %s recorded without inspections.\n", out.Session.ID)
	}
	var me *salvage.MalformedError
	switch {
	case errors.As(err, &me):
		fmt.Fprintln(w, "The extraction could not be parsed as JSON.")
		fmt.Fprintf(w, "\n--- original ---\n%s\n", me.Original)
		fmt.Fprintf(w, "\n--- after repair ---\n%s\n", me.Repaired)
	case errors.Is(err, salvage.ErrEmptyExtraction):
		fmt.Fprintln(w, "The extraction was empty.")
	}
}

// formatOutcome writes a summary of an ingestion run.
func formatOutcome(w io.Writer, out *ingest.Outcome) {
	fmt.Fprintf(w, "Session:     %s\n", out.Session.ID)
	fmt.Fprintf(w, "Created:     %d\n", len(out.Created))
	fmt.Fprintf(w, "Unresolved:  %d\n", len(out.Unresolved))
	if out.Skipped > 0 {
		fmt.Fprintf(w, "Skipped:     %d (no hive reference)\n", out.Skipped)
	}
	if out.NonObjects > 0 {
		fmt.Fprintf(w, "Non-objects: %d\n", out.NonObjects)
	}
	if out.Repaired {
		fmt.Fprintln(w, "Repaired:    yes")
	}

	if len(out.Created) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "INSPECTION\tHIVE\tDATE\tCONFIRMED")
		_, _ = fmt.Fprintln(tw, "----------\t----\t----\t---------")
		for _, rec := range out.Created {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n",
				truncateID(rec.ID), rec.HiveName, rec.Date, rec.Confirmed)
		}
		_ = tw.Flush()
	}

	if len(out.Unresolved) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Unresolved (assign with: beekeep assign --session "+out.Session.ID+" --index N --hive ID):")
		formatUnresolved(w, out.Unresolved)
	}

	if len(out.Rules) > 0 {
		rules := make([]string, 0, len(out.Rules))
		for r := range out.Rules {
			rules = append(rules, r)
		}
		sort.Strings(rules)
		fmt.Fprintln(w)
		for _, r := range rules {
			fmt.Fprintf(w, "  matched by %-16s %d\n", r+":", out.Rules[r])
		}
	}
}

func formatUnresolved(w io.Writer, recs []model.ExtractionRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "INDEX\tSPOKEN HIVE\tAPIARY")
	_, _ = fmt.Fprintln(tw, "-----\t-----------\t------")
	for i, rec := range recs {
		apiary := ""
		if rec.Apiary != nil {
			apiary = *rec.Apiary
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\n", i, rec.Hive, apiary)
	}
	_ = tw.Flush()
}

func init() {
	ingestCmd.Flags().String("file", "-", "extraction response file (- for stdin)")
	ingestCmd.Flags().String("transcript", "", "transcript file to keep on the session")
	ingestCmd.Flags().String("source", string(model.SessionCLI), "session source: cli, upload or webhook")
	rootCmd.AddCommand(ingestCmd)
}
