// Command nudge audits the configured channels once and exits. It is meant
// to be run from cron.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"basegraph.app/nudge/common/id"
	"basegraph.app/nudge/core/bootstrap"
	"basegraph.app/nudge/core/config"
	"basegraph.app/nudge/internal/audit"
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

	// Close flushes spans and the link failure counter before the process exits.
	rt, err := bootstrap.Start(ctx, config.ServiceTypeCLI, id.NodeCLI)
	if err != nil {
		slog.ErrorContext(ctx, "startup failed", "error", err)
		return 1
	}
	defer rt.Close()
	cfg := rt.Config

	// Fail on a bad TARGET_DATE before touching the network.
	if _, err := audit.ParseReferenceDate(cfg.Audit.ReferenceDate); err != nil {
		slog.ErrorContext(ctx, "invalid TARGET_DATE", "error", err, "value", cfg.Audit.ReferenceDate)
		return 1
	}

	if err := rt.OpenDatabase(ctx); err != nil {
		slog.ErrorContext(ctx, "startup failed", "error", err)
		return 1
	}

	auditor, err := service.NewSlackAuditor(cfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create auditor", "error", err)
		return 1
	}

	services := service.NewServices(service.ServicesConfig{
		Targets:  service.NewTargetStore(rt.DB, cfg),
		Auditor:  auditor,
		Notifier: notifier.NewWebhookNotifier(cfg.Slack.HTTPTimeout),
		Defaults: service.DefaultsFromConfig(cfg),
	})

	runs, err := services.Audits().RunAll(ctx, cfg.Audit.ReferenceDate)
	for _, r := range runs {
		slog.InfoContext(ctx, "channel audited",
			"run_id", r.ID,
			"channel_id", r.ChannelID,
			"unresolved", r.Unresolved,
			"resolved", r.Resolved,
			"failed", r.Failed,
			"sent", r.Sent,
			"skipped_reason", r.SkippedReason)
	}
	if err != nil {
		slog.ErrorContext(ctx, "audit run finished with errors", "error", err)
		return 1
	}

	return 0
}

const banner = `
███╗   ██╗██╗   ██╗██████╗  ██████╗ ███████╗
████╗  ██║██║   ██║██╔══██╗██╔════╝ ██╔════╝
██╔██╗ ██║██║   ██║██║  ██║██║  ███╗█████╗
██║╚██╗██║██║   ██║██║  ██║██║   ██║██╔══╝
██║ ╚████║╚██████╔╝██████╔╝╚██████╔╝███████╗
╚═╝  ╚═══╝ ╚═════╝ ╚═════╝  ╚═════╝ ╚══════╝
`
