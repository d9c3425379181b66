package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrich/internal/monitoring"
	"github.com/sells-group/lead-enrich/internal/pipeline"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the background enrichment queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics := pipeline.NewMetrics(reg)

		env, err := initPipeline(ctx, "serve", metrics)
		if err != nil {
			return err
		}
		defer env.Close()

		runner := pipeline.NewRunner(env.Pipeline, env.Store, cfg.Queue.Workers, cfg.Queue.Capacity, metrics)
		runner.Start(ctx)
		if n, err := runner.ResumeInterrupted(ctx); err != nil {
			zap.L().Warn("could not resume interrupted lists", zap.Error(err))
		} else if n > 0 {
			zap.L().Info("resumed interrupted lists", zap.Int("count", n))
		}

		collector := monitoring.NewCollector(env.Store, env.Caches)
		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(collector,
				monitoring.NewAlerter(cfg.Monitoring),
				monitoring.NewGauges(reg),
				cfg.Monitoring,
			)
			go checker.Run(ctx)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newServer(env.Store, runner, collector, cfg.Server.UploadDir, reg).routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			stop()
			_ = runner.Wait()
			return eris.Wrap(err, "server listen")
		}

		// Running lists see the cancelled context and checkpoint on the way out.
		if err := runner.Wait(); err != nil {
			return eris.Wrap(err, "wait for workers")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
