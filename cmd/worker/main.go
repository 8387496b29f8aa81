package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"basegraph.app/nudge/common/id"
	"basegraph.app/nudge/core/bootstrap"
	"basegraph.app/nudge/core/config"
	"basegraph.app/nudge/internal/queue"
	"basegraph.app/nudge/internal/service"
	"basegraph.app/nudge/internal/service/notifier"
	"basegraph.app/nudge/internal/worker"
)

func main() {
	os.Exit(run())
}

func run() int {
	fmt.Printf("%s\n", banner)

	// work is cancelled only when graceful shutdown runs out of time, so an
	// in-flight audit gets to finish and settle its task.
	work, abort := context.WithCancel(context.Background())
	defer abort()
	sig, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Start(work, config.ServiceTypeWorker, id.NodeWorker)
	if err != nil {
		slog.ErrorContext(work, "startup failed", "error", err)
		return 1
	}
	defer rt.Close()
	cfg := rt.Config

	if err := rt.OpenDatabase(work); err != nil {
		slog.ErrorContext(work, "startup failed", "error", err)
		return 1
	}
	if err := rt.OpenRedis(work); err != nil {
		slog.ErrorContext(work, "startup failed", "error", err)
		return 1
	}

	consumer, err := queue.NewRedisConsumer(work, rt.Redis, queue.ConsumerConfig{
		Stream:       cfg.Pipeline.RedisStream,
		Group:        cfg.Pipeline.RedisGroup,
		Consumer:     cfg.Pipeline.RedisConsumer,
		DLQStream:    cfg.Pipeline.RedisDLQStream,
		BatchSize:    1, // one audit at a time
		Block:        5 * time.Second,
		RequeueDelay: time.Second,
	})
	if err != nil {
		slog.ErrorContext(work, "failed to create consumer", "error", err)
		return 1
	}

	auditor, err := service.NewSlackAuditor(cfg)
	if err != nil {
		slog.ErrorContext(work, "failed to create auditor", "error", err)
		return 1
	}

	services := service.NewServices(service.ServicesConfig{
		Targets:  service.NewTargetStore(rt.DB, cfg),
		Auditor:  auditor,
		Notifier: notifier.NewWebhookNotifier(cfg.Slack.HTTPTimeout),
		Defaults: service.DefaultsFromConfig(cfg),
	})

	w := worker.New(consumer, services.Audits(), worker.Config{MaxAttempts: 3})
	reclaimer := worker.NewReclaimer(consumer, w.Handle, worker.ReclaimerConfig{
		MinIdle:   5 * time.Minute,
		Interval:  time.Minute,
		BatchSize: 10,
	})

	runErr := make(chan error, 1)
	go func() { runErr <- w.Run(work) }()
	go reclaimer.Run(work)

	slog.InfoContext(work, "worker running",
		"consumer_group", cfg.Pipeline.RedisGroup,
		"consumer_name", cfg.Pipeline.RedisConsumer)

	code := 0
	select {
	case err := <-runErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.ErrorContext(work, "worker stopped", "error", err)
			code = 1
		}
	case <-sig.Done():
	}

	slog.InfoContext(work, "shutting down worker")
	reclaimer.Stop()

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(30 * time.Second):
		slog.WarnContext(work, "shutdown timeout exceeded, cancelling in-flight audit")
		abort()
		<-stopped
	}

	slog.InfoContext(work, "worker shutdown complete")
	return code
}

const banner = `
███╗   ██╗██╗   ██╗██████╗  ██████╗ ███████╗    ██╗    ██╗ ██████╗ ██████╗ ██╗  ██╗███████╗██████╗
████╗  ██║██║   ██║██╔══██╗██╔════╝ ██╔════╝    ██║    ██║██╔═══██╗██╔══██╗██║ ██╔╝██╔════╝██╔══██╗
██╔██╗ ██║██║   ██║██║  ██║██║  ███╗█████╗      ██║ █╗ ██║██║   ██║██████╔╝█████╔╝ █████╗  ██████╔╝
██║╚██╗██║██║   ██║██║  ██║██║   ██║██╔══╝      ██║███╗██║██║   ██║██╔══██╗██╔═██╗ ██╔══╝  ██╔══██╗
██║ ╚████║╚██████╔╝██████╔╝╚██████╔╝███████╗    ╚███╔███╔╝╚██████╔╝██║  ██║██║  ██╗███████╗██║  ██║
╚═╝  ╚═══╝ ╚═════╝ ╚═════╝  ╚═════╝ ╚══════╝     ╚══╝╚══╝  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝
`
