package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ytakahashi/crew-calendar/internal/config"
	"github.com/ytakahashi/crew-calendar/internal/dashboard"
	"github.com/ytakahashi/crew-calendar/internal/handlers"
	"github.com/ytakahashi/crew-calendar/internal/metrics"
	"github.com/ytakahashi/crew-calendar/internal/notify"
	"github.com/ytakahashi/crew-calendar/internal/scheduler"
	"github.com/ytakahashi/crew-calendar/internal/services"
)

var serveMemory bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API and LINE webhook",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMemory, "memory", false, "use the in-memory store instead of Firestore")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveMemory {
		// Applied before Load so validation skips the Firestore project check.
		if err := os.Setenv("CREWCAL_STORE", string(config.StoreMemory)); err != nil {
			return err
		}
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	m := metrics.New()
	svc := services.NewService(store, log, m)
	if cfg.Store == config.StoreMemory {
		if _, err := svc.SeedTemplates(ctx); err != nil {
			return err
		}
	}

	var bot *messaging_api.MessagingApiAPI
	if cfg.Line.Enabled() {
		bot, err = messaging_api.NewMessagingApiAPI(cfg.Line.ChannelToken)
		if err != nil {
			return err
		}
	} else {
		log.Info("LINE channel not configured; webhook and pushes disabled")
	}

	sessions := dashboard.NewSessions(dashboard.Deps{
		Service:  svc,
		Log:      log,
		Metrics:  m,
		Pusher:   notify.NewLinePusher(linePusher(bot), log),
		Calendar: calendarConfig(cfg),
		ToastTTL: cfg.Calendar.ToastTTL,
	}, cfg.Session.IdleTimeout)
	defer sessions.Close()
	go sessions.Run(ctx)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	handlers.NewAPIHandler(sessions, log, m).Register(e)
	if bot != nil {
		webhookHandler := handlers.NewWebhookHandler(bot, sessions, cfg.Line.ChannelSecret, log)
		e.POST("/webhook", webhookHandler.HandleWebhook)
	}

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      e,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", cfg.Addr()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-sigCh:
	case err := <-errCh:
		return err
	}
	log.Info("shutting down", zap.Int("sessions", sessions.Count()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// linePusher avoids handing a typed nil client to the pusher.
func linePusher(bot *messaging_api.MessagingApiAPI) notify.Pusher {
	if bot == nil {
		return nil
	}
	return bot
}

func calendarConfig(cfg *config.Config) scheduler.Config {
	c := scheduler.DefaultConfig()
	c.MaxVisiblePerCell = cfg.Calendar.MaxVisiblePerCell
	c.AutoScroll.Threshold = cfg.Calendar.AutoScrollThresholdPx
	c.AutoScroll.Step = cfg.Calendar.AutoScrollStepPx
	c.AutoScroll.Tick = cfg.Calendar.AutoScrollTick
	return c
}
