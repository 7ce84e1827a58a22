package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/niruguard/niruguard/internal/api"
	"github.com/niruguard/niruguard/internal/artifact"
	"github.com/niruguard/niruguard/internal/dossier"
	"github.com/niruguard/niruguard/internal/metrics"
	"github.com/niruguard/niruguard/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve supplier dossiers and contract analysis over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		srv, err := initServer(ctx)
		if err != nil {
			return err
		}

		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           srv.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// initServer loads the v3 snapshot and one analyzer per version. A missing
// feature table leaves the supplier routes unavailable instead of failing.
func initServer(ctx context.Context) (*api.Server, error) {
	snap, err := dossier.Load(ctx, dossier.Options{
		OutputDir:   cfg.Output.Dir,
		PartiesPath: cfg.Sources.Path(cfg.Sources.Parties),
		Charset:     cfg.Sources.Charset,
	})
	if err != nil {
		zap.L().Warn("serve: supplier dossiers unavailable", zap.Error(err))
		snap = nil
	}

	m := metrics.New()
	analyzers := make(map[model.Version]*artifact.Analyzer, len(model.Versions()))
	for _, v := range model.Versions() {
		a, err := artifact.NewAnalyzer(cfg.Model.Dir, v, m)
		if err != nil {
			return nil, eris.Wrapf(err, "serve: load %s model", v)
		}
		analyzers[v] = a
	}

	def, err := model.ParseVersion(cfg.Pipeline.Version)
	if err != nil {
		def = model.V3
	}

	return api.New(api.Options{
		Snapshot:       snap,
		Analyzers:      analyzers,
		DefaultVersion: def,
		Metrics:        m,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}), nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
