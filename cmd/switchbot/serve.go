package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/aretw0/switchbot"
	"github.com/aretw0/switchbot/internal/adapters/redis"
	"github.com/aretw0/switchbot/internal/adapters/serial"
	"github.com/aretw0/switchbot/internal/adapters/video"
	"github.com/aretw0/switchbot/internal/adapters/ws"
	"github.com/aretw0/switchbot/internal/config"
	"github.com/aretw0/switchbot/internal/presentation/tui"
	"github.com/aretw0/switchbot/pkg/observability"
	"github.com/aretw0/switchbot/pkg/program"
	"github.com/aretw0/switchbot/pkg/session"
	"github.com/aretw0/switchbot/programs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the WebSocket server",
	Long: `Starts the program runner and exposes it over WebSocket on /ws, together
with /health, /info, /programs and /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)
		slog.SetDefault(logger)

		quiet, _ := cmd.Flags().GetBool("quiet")
		if !quiet {
			tui.PrintBanner(cmd.OutOrStdout(), switchbot.Version, cfg.Server.Addr())
		}
		return serve(cmd.Context(), cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "", "Address to listen on")
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on")
	serveCmd.Flags().String("serial", "", "Serial port to connect to on startup")
	serveCmd.Flags().BoolP("quiet", "q", false, "Do not print the banner")
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	hub := ws.NewHub(ws.WithHubLogger(logger.With("component", "hub")), ws.WithHubMetrics(metrics))

	// Program logs go to the process log and, formatted, to every client.
	history := observability.NewBroadcastHandler(
		observability.NewLogBuffer(cfg.Programs.LogHistory), hub, slog.LevelInfo)
	programLogger := slog.New(observability.NewFanoutHandler(logger.Handler(), history))
	loggerFor := func(name string) *slog.Logger {
		return programLogger.With(observability.ProgramKey, name)
	}

	serialConn := serial.NewConnector(
		serial.WithLogger(logger.With("component", "serial")),
		serial.WithBaudRate(cfg.Serial.BaudRate),
		serial.WithReadTimeout(cfg.Serial.ReadTimeout),
		serial.WithMetrics(metrics),
	)
	if cfg.Serial.Port != "" {
		if err := serialConn.Connect(cfg.Serial.Port); err != nil {
			logger.Warn("Could not connect to serial port", "port", cfg.Serial.Port, "err", err)
		}
	}
	defer serialConn.Disconnect()

	videoConn := video.NewConnector(video.WithLogger(logger.With("component", "video")))
	defer videoConn.Disconnect()

	catalog := program.NewCatalog()
	if err := programs.Register(catalog, programs.Config{OutputDir: cfg.Programs.OutputDir}); err != nil {
		return fmt.Errorf("registering programs: %w", err)
	}

	opts := []session.Option{
		session.WithLogger(logger.With("component", "session")),
		session.WithProgramLogger(loggerFor),
		session.WithBroadcaster(hub),
		session.WithMetrics(metrics),
		session.WithDisplaceTimeout(cfg.Programs.DisplaceTimeout),
	}
	if cfg.Redis.Enabled() {
		client := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer client.Close()

		locker := redis.NewLocker(client, cfg.Redis.Prefix, redis.WithLogger(logger.With("component", "lease")))
		if err := locker.Ping(ctx); err != nil {
			return fmt.Errorf("connecting to redis at %s: %w", cfg.Redis.Addr, err)
		}
		opts = append(opts, session.WithLocker(locker, "", cfg.Redis.LeaseTTL))
		logger.Info("Console lease enabled", "redis", cfg.Redis.Addr)
	}

	bot := &switchbot.Bot{Controller: serialConn, Frames: videoConn, Display: hub}
	manager, err := session.NewManager(catalog, bot, opts...)
	if err != nil {
		return err
	}

	server := ws.NewServer(hub, ws.Deps{
		Sessions: manager,
		Serial:   serialConn,
		Video:    videoConn,
		History:  history,
	},
		ws.WithLogger(logger.With("component", "ws")),
		ws.WithMetrics(metrics, registry),
		ws.WithVersion(switchbot.Version),
		ws.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		ws.WithClientBuffer(cfg.Server.ClientBuffer),
		ws.WithPingInterval(cfg.Server.PingInterval),
		ws.WithFrameRate(cfg.Server.FrameRate),
	)
	go server.StreamFrames(ctx)

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: server.Handler(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "addr", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer cancel()

	if err := manager.Close(shutdownCtx); err != nil {
		logger.Warn("Program did not stop in time", "err", err)
	}
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Graceful shutdown did not complete", "grace", cfg.Server.ShutdownGrace, "err", err)
		if err := srv.Close(); err != nil {
			logger.Error("Error killing server", "err", err)
		}
	}
	logger.Info("Server stopped")
	return nil
}
