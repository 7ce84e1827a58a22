package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/niruguard/niruguard/internal/model"
	"github.com/niruguard/niruguard/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect feature build history",
	Long:  "Commands for listing and viewing build runs recorded in the sqlite or postgres store.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List build runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openRunStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		filter := store.RunFilter{}
		if raw, _ := cmd.Flags().GetString("version"); raw != "" {
			if filter.Version, err = model.ParseVersion(raw); err != nil {
				return err
			}
		}
		status, _ := cmd.Flags().GetString("status")
		filter.Status = model.RunStatus(status)
		filter.Limit, _ = cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openRunStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		return writeJSON(os.Stdout, run)
	},
}

func openRunStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("read"); err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Store, cfg.Output.Dir)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, eris.Errorf("runs: store.driver %q keeps no run history (use sqlite or postgres)", cfg.Store.Driver)
	}
	return st, nil
}

func formatRunsList(w io.Writer, runs []model.Run) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tVERSION\tSTATUS\tROWS\tHIGH RISK\tCREATED\tDURATION")
	for _, r := range runs {
		var rows, high int
		if r.Result != nil {
			rows = r.Result.ContractsLinked
			high = r.Result.HighRisk
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.ID,
			r.Version,
			r.Status,
			rows,
			high,
			r.CreatedAt.Format(time.DateTime),
			r.UpdatedAt.Sub(r.CreatedAt).Round(time.Millisecond),
		)
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	runsListCmd.Flags().String("version", "", "filter by version (v1, v2, v3)")
	runsListCmd.Flags().String("status", "", "filter by run status (queued, loading, complete, failed, ...)")
	runsListCmd.Flags().Int("limit", store.DefaultRunLimit, "max number of runs to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
