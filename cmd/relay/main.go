package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpapi "github.com/immxrtalbeast/meshrelay/internal/api/http"
	"github.com/immxrtalbeast/meshrelay/internal/config"
	"github.com/immxrtalbeast/meshrelay/internal/repository"
	"github.com/immxrtalbeast/meshrelay/internal/service"
	"github.com/immxrtalbeast/meshrelay/lib/logger/sl"
	"github.com/immxrtalbeast/meshrelay/lib/logger/slogpretty"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	registry := repository.NewInMemoryRoomRegistry()
	relay := service.NewRelayService(registry, service.RelayOptions{
		QueueSize:     cfg.Relay.QueueSize,
		IncludeSender: cfg.Chat.IncludeSender,
	}, log)

	var signalController *httpapi.SignalController
	if cfg.TransportEnabled(config.TransportWebSocket) {
		signalController = httpapi.NewSignalController(relay, cfg.HTTP.CORSOrigins, log)
	}
	var pollController *httpapi.PollController
	if cfg.TransportEnabled(config.TransportPolling) {
		pollController = httpapi.NewPollController(relay, cfg.Relay.PollWait, log)
	}
	roomController := httpapi.NewRoomController(relay)

	router := httpapi.SetupRouter(httpapi.RouterOptions{CORSOrigins: cfg.HTTP.CORSOrigins}, signalController, pollController, roomController)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if pollController != nil {
		go relay.RunReaper(ctx, cfg.Relay.PollIdleTimeout/2, cfg.Relay.PollIdleTimeout)
	}

	srv := &http.Server{
		Addr:    cfg.Address(),
		Handler: router,
	}

	go func() {
		log.Info("starting relay",
			slog.String("addr", srv.Addr),
			slog.Any("transports", cfg.HTTP.Transports),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped", sl.Err(err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", sl.Err(err))
	}
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog()
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
