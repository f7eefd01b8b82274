package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"krom-analysis/database"
	"krom-analysis/handlers"
	"krom-analysis/repository"
	"krom-analysis/services/screenshot"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard and API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	db := database.GetDB()

	capturer := screenshot.NewRodCapturer(cfg.Screenshot.ChromeBin, cfg.Screenshot.Width,
		cfg.Screenshot.Height, cfg.ScreenshotTimeout())
	defer capturer.Close()

	h := handlers.New(handlers.Handler{
		Calls:       a.calls,
		Stats:       repository.NewStats(db),
		Discovery:   a.discovery,
		Projects:    repository.NewProjects(db),
		Pricing:     a.pricing,
		Analysis:    a.analysis,
		Dex:         a.dex,
		Previews:    screenshot.NewPreviewer(cfg.Screenshot.MicrolinkBaseURL, cfg.Screenshot.PlaceholderURL, cfg.ScreenshotTimeout()),
		Screenshots: screenshot.NewStore(capturer, cfg.Server.ScreenshotDir, "/screenshots"),
		Cron: handlers.CronLimits{
			PriceBatch:   cfg.Cron.PriceBatch,
			AnalyzeBatch: cfg.Cron.AnalyzeBatch,
			XBatch:       cfg.Cron.XBatch,
		},
		XConfigured: xConfigured(cfg),
	})

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Cron.Secret == "" {
		log.Warn("cron secret is empty, /api/cron endpoints will reject every request")
	}
	r, err := handlers.NewRouter(h, handlers.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		CronSecret:     cfg.Cron.Secret,
		ScreenshotDir:  cfg.Server.ScreenshotDir,
		Log:            log,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{Addr: cfg.Addr(), Handler: r}
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", cfg.Addr()),
			zap.String("dashboard", "http://"+cfg.Addr()+"/dashboard"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
