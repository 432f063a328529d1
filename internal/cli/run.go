package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"streamgen/internal/config"
	"streamgen/pkg/api"
)

func newRunCmd() *cobra.Command {
	var (
		configPath string
		noAPI      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the producer from a configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := setupLogging(app.Log); err != nil {
				return err
			}
			return runProducer(cmd.Context(), app, noAPI)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	cmd.Flags().BoolVar(&noAPI, "no-api", false, "run without the HTTP API")
	cmd.MarkFlagRequired("config")
	return cmd
}

// runProducer builds the producer from config and drives it until a signal
// arrives: controller, quarantine sweeper, and optionally the API server.
func runProducer(ctx context.Context, app *config.AppConfig, noAPI bool) error {
	ctrl, quar, gatherer, err := buildController(app)
	if err != nil {
		return err
	}
	defer quar.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go quar.RunSweeper(ctx, app.ErrorLog.SweepInterval.Std(), quarantineMaxAge(app.ErrorLog))

	var srv *api.Server
	if !noAPI {
		srv = api.NewServer(ctrl, api.Config{
			Addr:      fmt.Sprintf("%s:%d", app.API.Host, app.API.Port),
			Token:     app.API.Token,
			RateLimit: app.API.RateLimit,
			Burst:     app.API.Burst,
			Gatherer:  gatherer,
		})
		go func() {
			if err := srv.ListenAndServe(); err != nil {
				log.WithError(err).Error("api server failed")
			}
		}()
	}

	if err := ctrl.Run(ctx); err != nil {
		return err
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("api server shutdown failed")
		}
	}

	status := ctrl.Status()
	log.WithFields(log.Fields{
		"produced":   status.ProducedCount,
		"dispatched": status.DispatchedCount,
		"dropped":    status.DroppedCount,
		"skipped":    status.SkippedTicks,
	}).Info("producer finished")
	return nil
}
