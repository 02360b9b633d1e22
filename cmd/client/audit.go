package main

import (
    "context"
    "errors"
    "os"
    "os/signal"
    "syscall"

    "github.com/spf13/cobra"

    "github.com/aswinmurali/servicehub/internal/config"
    "github.com/aswinmurali/servicehub/internal/logging"
    "github.com/aswinmurali/servicehub/internal/queue"
)

var auditCmd = &cobra.Command{
    Use:   "audit-consumer",
    Short: "Append session events from RabbitMQ to the audit log",
    RunE: func(cmd *cobra.Command, args []string) error {
        ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
        defer stop()

        logger := logging.New(config.LoadLogConfig())
        cfg := config.LoadAuditConfig()
        if dir, _ := cmd.Flags().GetString("log-dir"); dir != "" {
            cfg.LogDir = dir
        }
        logger.Info("audit consumer starting", "queue", cfg.Queue, "dir", cfg.LogDir)
        err := queue.StartAuditConsumer(ctx, cfg, logger)
        if errors.Is(err, context.Canceled) {
            return nil
        }
        return err
    },
}

func init() {
    auditCmd.Flags().String("log-dir", "", "directory of auth.log (env: AUDIT_LOG_DIR)")
}
