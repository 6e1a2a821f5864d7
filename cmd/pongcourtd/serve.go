package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/decred/slog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vgmr/pongcourt/ponggame"
	"github.com/vgmr/pongcourt/server"
	"github.com/vgmr/pongcourt/server/statsdb"
)

var flagMetricsAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the game core",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagMetricsAddr, "metrics", "127.0.0.1:6060", "Metrics/health listen address (localhost only by default)")
}

func runServe(_ *cobra.Command, _ []string) error {
	backend := slog.NewBackend(os.Stdout)
	log := backend.Logger("PONG")
	if lvl, ok := slog.LevelFromString(flagDebugLevel); ok {
		log.SetLevel(lvl)
	}

	base, err := ponggame.LoadBaseConfig(flagConfig)
	if err != nil {
		return err
	}

	var db statsdb.StatsDB
	if flagDBPath != "" {
		sqldb, err := statsdb.OpenSQLite(flagDBPath)
		if err != nil {
			return fmt.Errorf("opening stats db: %w", err)
		}
		defer sqldb.Close()
		db = sqldb
	}

	cfg := server.DefaultConfig()
	cfg.Game = base
	srv := server.New(cfg, db, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infof("game core running (tick %dms, field %.0fx%.0f)",
			base.TickMs, base.FieldWidth, base.FieldHeight)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		})
		httpSrv := &http.Server{Addr: flagMetricsAddr, Handler: mux}

		go func() {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()

		log.Infof("metrics listening on %s", flagMetricsAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	log.Info("shutdown complete")
	return nil
}
