package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/niruguard/niruguard/internal/metrics"
	"github.com/niruguard/niruguard/internal/model"
	"github.com/niruguard/niruguard/internal/pipeline"
	"github.com/niruguard/niruguard/internal/store"
)

var buildVersion string

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build versioned feature tables from the raw procurement exports",
	Example: `  niruguard build
  niruguard build --version v2
  niruguard build --version all`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if buildVersion != "" {
			cfg.Pipeline.Version = buildVersion
		}
		if err := cfg.Validate("build"); err != nil {
			return err
		}
		versions, err := parseVersions(cfg.Pipeline.Version)
		if err != nil {
			return err
		}

		mirror, err := store.Open(ctx, cfg.Store, cfg.Output.Dir)
		if err != nil {
			return eris.Wrap(err, "build: open store")
		}
		if mirror != nil {
			defer mirror.Close() //nolint:errcheck
		}

		m := metrics.New()
		p := pipeline.New(cfg, mirror, m)

		results, runErr := p.RunAll(ctx, versions)

		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			zap.L().Warn("build: write metrics textfile", zap.String("path", cfg.Metrics.Textfile), zap.Error(err))
		}
		if runErr != nil {
			return eris.Wrap(runErr, "build")
		}

		formatBuildResults(os.Stdout, results)
		return nil
	},
}

// parseVersions expands "all" into every version; anything else must name
// exactly one.
func parseVersions(s string) ([]model.Version, error) {
	if strings.EqualFold(strings.TrimSpace(s), "all") {
		return model.Versions(), nil
	}
	v, err := model.ParseVersion(s)
	if err != nil {
		return nil, err
	}
	return []model.Version{v}, nil
}

func formatBuildResults(w io.Writer, results []*pipeline.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tROWS\tHIGH RISK\tDROPPED\tUNRESOLVED\tLABELS\tOUTPUT")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			r.Run.Version,
			r.Labels.Total,
			r.Labels.HighRisk,
			r.Linkage.DroppedNoAward,
			r.Report.UnresolvedSuppliers,
			r.Labels,
			r.OutputPath,
		)
	}
	tw.Flush() //nolint:errcheck

	for _, r := range results {
		if len(r.Report.Degraded) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s degraded cells:\n", r.Run.Version)
		for _, field := range sortedKeys(r.Report.Degraded) {
			fmt.Fprintf(w, "  %-20s %d\n", field, r.Report.Degraded[field])
		}
	}
}

func init() {
	buildCmd.Flags().StringVar(&buildVersion, "version", "", "pipeline version to build: v1, v2, v3 or all (default from config)")
	rootCmd.AddCommand(buildCmd)
}
