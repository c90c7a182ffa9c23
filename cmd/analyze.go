package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/beekeep/internal/ingest"
	"github.com/sells-group/beekeep/internal/model"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Extract inspections from transcripts with the language model",
	Long: `Sends each transcript to the language model for structured extraction
and reconciles the result. Every transcript file becomes its own session.
With --dir, all *.txt files in the directory are processed concurrently.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		file, _ := cmd.Flags().GetString("transcript")
		dir, _ := cmd.Flags().GetString("dir")
		if (file == "") == (dir == "") {
			return eris.New("exactly one of --transcript or --dir is required")
		}

		paths := []string{file}
		if dir != "" {
			matches, err := filepath.Glob(filepath.Join(dir, "*.txt"))
			if err != nil {
				return eris.Wrapf(err, "list %s", dir)
			}
			sort.Strings(matches)
			paths = matches
		}
		if len(paths) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No transcripts found.")
			return nil
		}

		env, err := initEnv(ctx, true)
		if err != nil {
			return err
		}
		defer env.Close()

		results := analyzeFiles(ctx, env, paths, cfg.Analyze.Concurrency)

		if len(results) == 1 && results[0].Err == nil {
			formatOutcome(cmd.OutOrStdout(), results[0].Outcome)
			return nil
		}
		return formatAnalyzeResults(cmd, results)
	},
}

// analyzeResult is the outcome of one transcript file.
type analyzeResult struct {
	Path    string
	Outcome *ingest.Outcome
	Err     error
}

// analyzeFiles extracts and ingests each file with at most concurrency
// files in flight. A failing file does not stop the others.
func analyzeFiles(ctx context.Context, env *appEnv, paths []string, concurrency int) []analyzeResult {
	results := make([]analyzeResult, len(paths))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for i, path := range paths {
		g.Go(func() error {
			out, err := analyzeFile(gctx, env, path)
			if err != nil {
				zap.L().Error("analyze: transcript failed",
					zap.String("path", path),
					zap.Error(err),
				)
			}
			mu.Lock()
			results[i] = analyzeResult{Path: path, Outcome: out, Err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func analyzeFile(ctx context.Context, env *appEnv, path string) (*ingest.Outcome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	transcript := string(data)

	raw, err := env.Analyzer.Extract(ctx, transcript)
	if err != nil {
		return nil, eris.Wrapf(err, "extract %s", filepath.Base(path))
	}

	return env.Pipeline.ProcessText(ctx, ingest.IngestRequest{
		Source:     model.SessionUpload,
		Transcript: transcript,
		Raw:        raw,
	})
}

func formatAnalyzeResults(cmd *cobra.Command, results []analyzeResult) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FILE\tSESSION\tCREATED\tUNRESOLVED\tERROR")
	_, _ = fmt.Fprintln(w, "----\t-------\t-------\t----------\t-----")

	failed := 0
	for _, r := range results {
		session, created, unresolved, errText := "-", 0, 0, ""
		if r.Outcome != nil {
			if r.Outcome.Session != nil {
				session = truncateID(r.Outcome.Session.ID)
			}
			created, unresolved = len(r.Outcome.Created), len(r.Outcome.Unresolved)
		}
		if r.Err != nil {
			failed++
			errText = r.Err.Error()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			filepath.Base(r.Path), session, created, unresolved, errText)
	}
	_ = w.Flush()

	if failed > 0 {
		return eris.Errorf("%d of %d transcripts failed", failed, len(results))
	}
	return nil
}

func init() {
	analyzeCmd.Flags().String("transcript", "", "transcript file to analyze")
	analyzeCmd.Flags().String("dir", "", "directory of *.txt transcripts to analyze")
	rootCmd.AddCommand(analyzeCmd)
}
