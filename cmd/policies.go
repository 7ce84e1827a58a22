package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/niruguard/niruguard/internal/scorer"
)

var policiesCmd = &cobra.Command{
	Use:   "policies",
	Short: "Print the scoring weights and threshold of every version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		pols := scorer.Policies()

		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "json":
			return writeJSON(os.Stdout, pols)
		case "yaml":
			enc := yaml.NewEncoder(os.Stdout)
			defer enc.Close() //nolint:errcheck
			return enc.Encode(pols)
		}
		formatPolicies(os.Stdout, pols)
		return nil
	},
}

func formatPolicies(w io.Writer, pols []scorer.Policy) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tDIRECT\tROUND\tMISSING ANY\tTIMING\tNEW SUPPLIER DIRECT\tTHRESHOLD")
	for _, p := range pols {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%.1f\n",
			p.Version,
			weight(p.Weights.Direct),
			weight(p.Weights.Round),
			weight(p.Weights.MissingAny),
			weight(p.Weights.Timing),
			weight(p.Weights.NewSupplierDirect),
			p.Threshold,
		)
	}
	tw.Flush() //nolint:errcheck
}

func weight(w float64) string {
	if w == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f", w)
}

func init() {
	policiesCmd.Flags().String("format", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(policiesCmd)
}
