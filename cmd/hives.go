package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/beekeep/internal/hivefile"
	"github.com/sells-group/beekeep/internal/model"
	"github.com/sells-group/beekeep/internal/store"
)

var hivesCmd = &cobra.Command{
	Use:   "hives",
	Short: "Manage the hive registry",
	Long:  "Commands for adding, listing, importing and retiring hives. Registry order decides positional references such as \"hive 2\".",
}

// -- hives add --

var hivesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a hive",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		name, _ := cmd.Flags().GetString("name")
		location, _ := cmd.Flags().GetString("location")
		notes, _ := cmd.Flags().GetString("notes")
		color, _ := cmd.Flags().GetString("color")

		h := &model.Hive{Name: name, Location: location, Notes: notes, Color: color}
		if err := st.CreateHive(ctx, h); err != nil {
			return eris.Wrap(err, "hives add")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added hive %s (%s)\n", h.Name, h.ID)
		return nil
	},
}

// -- hives list --

var hivesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List hives in registry order",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		all, _ := cmd.Flags().GetBool("all")
		hives, err := st.ListHives(ctx, store.HiveFilter{IncludeInactive: all})
		if err != nil {
			return eris.Wrap(err, "hives list")
		}
		if len(hives) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No hives registered.")
			return nil
		}
		formatHivesList(cmd.OutOrStdout(), hives)
		return nil
	},
}

// -- hives remove --

var hivesRemoveCmd = &cobra.Command{
	Use:   "remove <hive-id>",
	Short: "Retire a hive; its inspections are kept",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeactivateHive(ctx, args[0]); err != nil {
			return eris.Wrap(err, "hives remove")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Retired hive %s\n", args[0])
		return nil
	},
}

// -- hives import --

var hivesImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Register every hive listed in a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		hives, err := hivefile.Load(args[0])
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := importHives(ctx, st, hives)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d hive(s), skipped %d already registered.\n", n, len(hives)-n)
		return nil
	},
}

// importHives creates the hives whose names are not yet registered,
// keeping file order. It returns how many were created.
func importHives(ctx context.Context, st store.Store, hives []model.Hive) (int, error) {
	existing, err := st.ListHives(ctx, store.HiveFilter{IncludeInactive: true})
	if err != nil {
		return 0, eris.Wrap(err, "hives import")
	}
	names := make(map[string]bool, len(existing))
	for _, h := range existing {
		names[h.Name] = true
	}

	created := 0
	for i := range hives {
		if names[hives[i].Name] {
			continue
		}
		if err := st.CreateHive(ctx, &hives[i]); err != nil {
			return created, eris.Wrapf(err, "hives import: %s", hives[i].Name)
		}
		names[hives[i].Name] = true
		created++
	}
	return created, nil
}

// formatHivesList writes a tabular list of hives to w.
func formatHivesList(out io.Writer, hives []model.Hive) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tID\tNAME\tLOCATION\tLAST INSPECTED\tACTIVE")
	_, _ = fmt.Fprintln(w, "-\t--\t----\t--------\t--------------\t------")

	for i, h := range hives {
		last := "never"
		if h.LastInspectedAt != nil {
			last = h.LastInspectedAt.Local().Format("2006-01-02 15:04")
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%t\n",
			i+1,
			truncateID(h.ID),
			h.Name,
			h.Location,
			last,
			h.Active,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	hivesAddCmd.Flags().String("name", "", "hive name (required)")
	hivesAddCmd.Flags().String("location", "", "apiary or location")
	hivesAddCmd.Flags().String("notes", "", "free-text notes")
	hivesAddCmd.Flags().String("color", "", "display color (default "+model.DefaultHiveColor+")")
	_ = hivesAddCmd.MarkFlagRequired("name")

	hivesListCmd.Flags().Bool("all", false, "include retired hives")

	hivesCmd.AddCommand(hivesAddCmd)
	hivesCmd.AddCommand(hivesListCmd)
	hivesCmd.AddCommand(hivesRemoveCmd)
	hivesCmd.AddCommand(hivesImportCmd)
	rootCmd.AddCommand(hivesCmd)
}
