package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/niruguard/niruguard/internal/artifact"
	"github.com/niruguard/niruguard/internal/features"
	"github.com/niruguard/niruguard/internal/model"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score a single contract with the heuristic policy and trained model",
	Example: `  niruguard analyze --amount 5000000 --method direct --award-count 1 --suspicious-timing
  niruguard analyze --amount 12000 --method open --version v1 --missing 2`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("read"); err != nil {
			return err
		}

		versionFlag, _ := cmd.Flags().GetString("version")
		if versionFlag == "" {
			versionFlag = cfg.Pipeline.Version
		}
		v, err := model.ParseVersion(versionFlag)
		if err != nil {
			return err
		}

		in := features.Input{}
		in.Amount, _ = cmd.Flags().GetFloat64("amount")
		in.Method, _ = cmd.Flags().GetString("method")
		in.SupplierAwardCount, _ = cmd.Flags().GetInt("award-count")
		in.SuspiciousTiming, _ = cmd.Flags().GetBool("suspicious-timing")
		in.MissingDataCount, _ = cmd.Flags().GetInt("missing")
		if in.Method == "" {
			return eris.New("analyze: --method is required")
		}

		a, err := artifact.NewAnalyzer(cfg.Model.Dir, v, nil)
		if err != nil {
			return eris.Wrap(err, "analyze: load model")
		}
		res, err := a.Analyze(in)
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			return writeJSON(os.Stdout, res)
		}
		formatAnalysis(os.Stdout, res)
		return nil
	},
}

func formatAnalysis(w io.Writer, res *artifact.Analysis) {
	fmt.Fprintf(w, "Version: %s\n\n", res.Version)

	fmt.Fprintln(w, "Features:")
	for _, name := range model.FinalFeatures(res.Version) {
		fmt.Fprintf(w, "  %-26s %g\n", name, res.Features[name])
	}

	fmt.Fprintln(w, "\nModel prediction:")
	switch res.Prediction.State {
	case artifact.StateScored:
		verdict := "LOW RISK"
		if res.Prediction.Label == 1 {
			verdict = "HIGH RISK"
		}
		fmt.Fprintf(w, "  %s (confidence %.1f%%)\n", verdict, res.Prediction.Confidence*100)
	default:
		fmt.Fprintf(w, "  unavailable: %s\n", res.Prediction.Reason)
	}

	h := res.Heuristic
	fmt.Fprintf(w, "\nRed-flag score: %.1f (threshold %.1f, label %d)\n", h.Score, h.Threshold, h.Label)
	for _, c := range h.Breakdown {
		mark := " "
		if c.Value == 1 {
			mark = "x"
		}
		fmt.Fprintf(w, "  [%s] %-26s +%.1f\n", mark, c.Indicator, c.Points)
	}
}

func init() {
	analyzeCmd.Flags().Float64("amount", 0, "contract amount in KES")
	analyzeCmd.Flags().String("method", "", "procurement method (direct, open, ...)")
	analyzeCmd.Flags().Int("award-count", 0, "prior awards of the supplier (0 = unknown, treated as new)")
	analyzeCmd.Flags().Bool("suspicious-timing", false, "contract signed before its period start")
	analyzeCmd.Flags().Int("missing", 0, "missing key fields (v1 only)")
	analyzeCmd.Flags().String("version", "", "policy and model version (default from config)")
	analyzeCmd.Flags().String("format", "table", "output format: table or json")
	rootCmd.AddCommand(analyzeCmd)
}
