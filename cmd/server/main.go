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
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"basegraph.app/nudge/common/id"
	"basegraph.app/nudge/core/bootstrap"
	"basegraph.app/nudge/core/config"
	"basegraph.app/nudge/internal/http/middleware"
	httprouter "basegraph.app/nudge/internal/http/router"
	"basegraph.app/nudge/internal/queue"
	"basegraph.app/nudge/internal/service"
	"basegraph.app/nudge/internal/service/notifier"
)

func main() {
	os.Exit(run())
}

func run() int {
	fmt.Printf("%s\n", banner)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Start(ctx, config.ServiceTypeServer, id.NodeServer)
	if err != nil {
		slog.ErrorContext(ctx, "startup failed", "error", err)
		return 1
	}
	defer rt.Close()
	cfg := rt.Config

	if err := rt.OpenDatabase(ctx); err != nil {
		slog.ErrorContext(ctx, "startup failed", "error", err)
		return 1
	}
	if err := rt.OpenRedis(ctx); err != nil {
		slog.ErrorContext(ctx, "startup failed", "error", err)
		return 1
	}

	producer := queue.NewRedisProducer(rt.Redis, cfg.Pipeline.RedisStream, slog.Default())

	// Synchronous runs need Slack; without a token the server only enqueues.
	var auditor service.Auditor
	if cfg.Slack.Enabled() {
		if auditor, err = service.NewSlackAuditor(cfg); err != nil {
			slog.ErrorContext(ctx, "failed to create auditor", "error", err)
			return 1
		}
	}

	services := service.NewServices(service.ServicesConfig{
		Targets:  service.NewTargetStore(rt.DB, cfg),
		Auditor:  auditor,
		Notifier: notifier.NewWebhookNotifier(cfg.Slack.HTTPTimeout),
		Producer: producer,
		Defaults: service.DefaultsFromConfig(cfg),
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           setupRouter(cfg, services),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute, // synchronous audits wait on Slack
		IdleTimeout:       2 * time.Minute,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "http server listening", "port", cfg.Port)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.ErrorContext(ctx, "http server error", "error", err)
			return 1
		}
	case <-ctx.Done():
	}

	slog.InfoContext(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
		return 1
	}
	return 0
}

func setupRouter(cfg config.Config, services *service.Services) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span, Recovery catches panics, Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger("/health"))

	httprouter.SetupRoutes(router, services, httprouter.RouterConfig{
		TraceHeaderName: cfg.Pipeline.TraceHeaderName,
	})

	return router
}

const banner = `
███╗   ██╗██╗   ██╗██████╗  ██████╗ ███████╗    ███████╗███████╗██████╗ ██╗   ██╗███████╗██████╗
████╗  ██║██║   ██║██╔══██╗██╔════╝ ██╔════╝    ██╔════╝██╔════╝██╔══██╗██║   ██║██╔════╝██╔══██╗
██╔██╗ ██║██║   ██║██║  ██║██║  ███╗█████╗      ███████╗█████╗  ██████╔╝██║   ██║█████╗  ██████╔╝
██║╚██╗██║██║   ██║██║  ██║██║   ██║██╔══╝      ╚════██║██╔══╝  ██╔══██╗╚██╗ ██╔╝██╔══╝  ██╔══██╗
██║ ╚████║╚██████╔╝██████╔╝╚██████╔╝███████╗    ███████║███████╗██║  ██║ ╚████╔╝ ███████╗██║  ██║
╚═╝  ╚═══╝ ╚═════╝ ╚═════╝  ╚═════╝ ╚══════╝    ╚══════╝╚══════╝╚═╝  ╚═╝  ╚═══╝  ╚══════╝╚═╝  ╚═╝
`
