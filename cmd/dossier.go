package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/niruguard/niruguard/internal/dossier"
)

var dossierCmd = &cobra.Command{
	Use:   "dossier",
	Short: "Search suppliers or show the risk dossier of one supplier",
	Long:  "Reads the v3 feature table and the party directory. With --id prints the dossier of that supplier; otherwise lists suppliers matching --search.",
	Example: `  niruguard dossier --search acme
  niruguard dossier --id KE-PPRA-83297 --format json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("read"); err != nil {
			return err
		}

		id, _ := cmd.Flags().GetString("id")
		query, _ := cmd.Flags().GetString("search")
		limit, _ := cmd.Flags().GetInt("limit")
		format, _ := cmd.Flags().GetString("format")
		if format != "table" && format != "json" {
			return eris.Errorf("dossier: unknown format %q (valid: table, json)", format)
		}

		snap, err := dossier.Load(ctx, dossier.Options{
			OutputDir:   cfg.Output.Dir,
			PartiesPath: cfg.Sources.Path(cfg.Sources.Parties),
			Charset:     cfg.Sources.Charset,
		})
		if err != nil {
			return err
		}

		if id == "" {
			sups := snap.Search(query, limit)
			if format == "json" {
				return writeJSON(os.Stdout, sups)
			}
			if len(sups) == 0 {
				fmt.Fprintln(os.Stderr, "No suppliers found.")
				return nil
			}
			formatSupplierList(os.Stdout, sups)
			return nil
		}

		d, err := snap.Get(id)
		if err != nil {
			return err
		}
		if format == "json" {
			return writeJSON(os.Stdout, d)
		}
		formatDossier(os.Stdout, d)
		return nil
	},
}

func formatSupplierList(w io.Writer, sups []dossier.Supplier) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCONTRACTS\tHIGH RISK")
	for _, s := range sups {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", s.ID, truncate(s.Name, 50), s.Contracts, s.HighRisk)
	}
	tw.Flush() //nolint:errcheck
}

func formatDossier(w io.Writer, d *dossier.Dossier) {
	fmt.Fprintf(w, "Supplier:        %s\n\n", d.Supplier.Display)
	fmt.Fprintf(w, "Total contracts: %d\n", d.KPIs.TotalContracts)
	fmt.Fprintf(w, "Total value:     %s\n", formatAmount(d.KPIs.TotalValue))
	fmt.Fprintf(w, "High-risk:       %d\n", d.KPIs.HighRiskCount)
	fmt.Fprintf(w, "High-risk value: %s\n", formatAmount(d.KPIs.HighRiskValue))

	fmt.Fprintln(w, "\nRisk breakdown:")
	for _, b := range d.RiskBreakdown {
		fmt.Fprintf(w, "  %-10s %d\n", b.Label, b.Count)
	}
	fmt.Fprintln(w, "\nProcurement method:")
	for _, b := range d.MethodBreakdown {
		fmt.Fprintf(w, "  %-10s %d\n", b.Label, b.Count)
	}

	if len(d.HighRisk) == 0 {
		fmt.Fprintln(w, "\nNo high-risk contracts.")
		return
	}
	fmt.Fprintln(w, "\nHigh-risk contracts:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "AMOUNT\tDIRECT\tROUND\tTIMING\tNEW SUPPLIER DIRECT\tSCORE")
	for _, c := range d.HighRisk {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%.1f\n",
			formatAmount(c.Amount),
			c.IsDirectProcurement,
			c.IsRoundAmount,
			c.SuspiciousTiming,
			c.NewSupplierDirectDeal,
			c.RiskScore,
		)
	}
	tw.Flush() //nolint:errcheck
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	dossierCmd.Flags().String("id", "", "supplier id to show")
	dossierCmd.Flags().String("search", "", "search suppliers by id prefix or name")
	dossierCmd.Flags().Int("limit", 50, "max suppliers to list")
	dossierCmd.Flags().String("format", "table", "output format: table or json")
	dossierCmd.MarkFlagsMutuallyExclusive("id", "search")
	rootCmd.AddCommand(dossierCmd)
}
