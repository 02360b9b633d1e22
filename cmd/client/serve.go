package main

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "log/slog"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/spf13/cobra"

    "github.com/aswinmurali/servicehub/internal/config"
    "github.com/aswinmurali/servicehub/internal/database"
    "github.com/aswinmurali/servicehub/internal/events"
    "github.com/aswinmurali/servicehub/internal/identity"
    "github.com/aswinmurali/servicehub/internal/logging"
    "github.com/aswinmurali/servicehub/internal/repository"
    "github.com/aswinmurali/servicehub/internal/rolecache"
    "github.com/aswinmurali/servicehub/internal/router"
    "github.com/aswinmurali/servicehub/internal/service"
    "github.com/aswinmurali/servicehub/internal/session"
    "github.com/aswinmurali/servicehub/internal/storage"
)

var serveCmd = &cobra.Command{
    Use:   "serve",
    Short: "Start the client shell",
    RunE: func(cmd *cobra.Command, args []string) error {
        ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
        defer stop()
        return serve(ctx)
    },
}

func serve(ctx context.Context) error {
    cfg := config.Load()
    logger := logging.New(config.LoadLogConfig())
    slog.SetDefault(logger)

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        return fmt.Errorf("open database: %w", err)
    }
    defer db.Close()
    if cfg.DBAutoMigrate {
        if err := database.Migrate(ctx, db); err != nil {
            return fmt.Errorf("migrate: %w", err)
        }
        logger.Info("schema migrated")
    }

    rdb := config.NewRedisClient()
    var store storage.Store
    if rdb != nil {
        defer rdb.Close()
        store = storage.NewRedis(rdb, cfg.StatePrefix)
    } else {
        logger.Warn("redis unavailable, keeping local state in memory; rate limiting disabled")
        store = storage.NewMemory()
    }
    local := storage.NewLocal(store)
    cache := rolecache.New(local)

    bus := events.New()
    audit := config.LoadAuditConfig()
    if audit.Enabled {
        pub := &service.AMQPPublisher{URL: audit.URL, Queue: audit.Queue, Logger: logger}
        if err := service.Attach(bus, pub, logger); err != nil {
            return fmt.Errorf("attach audit publisher: %w", err)
        }
    }

    provider := newProvider(cfg, db, bus, local, logger)
    notices := &session.Notices{}
    mgr := session.New(session.Deps{
        Provider: provider,
        Roles:    repository.NewRoleRepo(db),
        Local:    local,
        Cache:    cache,
        Bus:      bus,
        Notices:  notices,
        Logger:   logger,
        SiteURL:  cfg.SiteURL,
    })
    mgr.Initialize(ctx)
    defer mgr.Close()

    e := echo.New()
    e.HideBanner = true
    router.Register(e, router.Deps{
        Sessions:  mgr,
        Notices:   notices,
        Local:     local,
        Cache:     cache,
        Guard:     config.LoadGuardConfig(),
        RateLimit: config.LoadRateLimitConfig(),
        Redis:     rdb,
        Logger:    logger,
    })

    addr := ":" + cfg.Port
    logger.Info("listening", "addr", addr, "env", cfg.Env, "identity", cfg.IdentityMode)
    errCh := make(chan error, 1)
    go func() { errCh <- e.Start(addr) }()

    select {
    case err := <-errCh:
        if errors.Is(err, http.ErrServerClosed) {
            return nil
        }
        return err
    case <-ctx.Done():
    }

    shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    if err := e.Shutdown(shutdownCtx); err != nil {
        return err
    }
    bus.Wait()
    return nil
}

func newProvider(cfg config.Config, db *sql.DB, bus *events.Bus, local *storage.Local, logger *slog.Logger) identity.Provider {
    if cfg.IdentityMode == config.ModeOAuth {
        return identity.NewOAuthProvider(identity.OAuthConfig{
            ClientID:     cfg.OAuthClientID,
            ClientSecret: cfg.OAuthClientSecret,
            AuthURL:      cfg.OAuthAuthURL,
            TokenURL:     cfg.OAuthTokenURL,
            APIURL:       cfg.OAuthAPIURL,
            Scopes:       cfg.OAuthScopes,
            JWTSecret:    cfg.JWTSecret,
        }, local, logger)
    }
    return identity.NewLocalProvider(identity.LocalConfig{
        JWTSecret:      cfg.JWTSecret,
        AccessTTLMin:   cfg.AccessTTLMin,
        RefreshTTLDays: cfg.RefreshTTLDays,
        BcryptCost:     cfg.BcryptCost,
    }, repository.NewUserRepo(db), repository.NewTokenRepo(db), service.ResetLinks{Bus: bus}, local, logger)
}

