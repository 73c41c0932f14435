// Command devblocker runs one devblocker service: blocker, solution,
// comment, notification, or user. All five share this binary; the
// DEVBLOCKER_SERVICE environment variable selects which routes and event
// consumers the process hosts.
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

	"github.com/joho/godotenv"

	"github.com/devblocker/devblocker/internal/auth"
	"github.com/devblocker/devblocker/internal/bus"
	"github.com/devblocker/devblocker/internal/client"
	"github.com/devblocker/devblocker/internal/config"
	"github.com/devblocker/devblocker/internal/event"
	"github.com/devblocker/devblocker/internal/publish"
	"github.com/devblocker/devblocker/internal/server"
	blockersvc "github.com/devblocker/devblocker/internal/service/blocker"
	commentsvc "github.com/devblocker/devblocker/internal/service/comment"
	notificationsvc "github.com/devblocker/devblocker/internal/service/notification"
	solutionsvc "github.com/devblocker/devblocker/internal/service/solution"
	usersvc "github.com/devblocker/devblocker/internal/service/user"
	"github.com/devblocker/devblocker/internal/storage"
	"github.com/devblocker/devblocker/internal/telemetry"
	"github.com/devblocker/devblocker/migrations"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("DEVBLOCKER_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("devblocker starting", "service", cfg.Service, "version", version, "port", cfg.Port)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint,
		cfg.ServiceName+"-"+cfg.Service, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	// Connect to database. The notify connection carries the event bus.
	db, err := storage.New(ctx, cfg.DatabaseURL, cfg.NotifyURL, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer db.Close(ctx)

	// Migrations are embedded and tracked in schema_migrations, so reruns
	// are no-ops.
	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTExpiration)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	// Event bus over LISTEN/NOTIFY, with the commit gate in front of it.
	channel := bus.NewPgChannel(db, event.DefaultTopology(), logger)
	go channel.Start(ctx)
	gate := publish.NewGate(channel, logger)

	// Peer service clients for the synchronous call paths.
	var blockerClient *client.BlockerClient
	var userClient *client.UserClient
	if cfg.BlockerServiceURL != "" {
		blockerClient, err = client.NewBlockerClient(client.Config{
			BaseURL: cfg.BlockerServiceURL,
			Token:   cfg.ServiceToken,
		})
		if err != nil {
			return fmt.Errorf("blocker client: %w", err)
		}
	}
	if cfg.UserServiceURL != "" {
		userClient, err = client.NewUserClient(client.Config{
			BaseURL: cfg.UserServiceURL,
			Token:   cfg.ServiceToken,
		})
		if err != nil {
			return fmt.Errorf("user client: %w", err)
		}
	}

	srvCfg := server.ServerConfig{
		DB:                  db,
		JWTMgr:              jwtMgr,
		Logger:              logger,
		Service:             cfg.Service,
		ServiceToken:        cfg.ServiceToken,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	}

	var consumers []bus.Consumer
	switch cfg.Service {
	case "blocker":
		svc := blockersvc.New(db, gate, userClient, logger)
		srvCfg.BlockerSvc = svc
		consumers = svc.Consumers()
	case "solution":
		srvCfg.SolutionSvc = solutionsvc.New(db, gate, blockerClient, logger)
	case "comment":
		srvCfg.CommentSvc = commentsvc.New(db, gate, blockerClient, logger)
	case "notification":
		svc := notificationsvc.New(db, userClient, blockerClient, logger)
		srvCfg.NotificationSvc = svc
		consumers = svc.Consumers()
	case "user":
		svc := usersvc.New(db, jwtMgr, gate, logger)
		srvCfg.UserSvc = svc
		consumers = svc.Consumers()
	}

	for i := range consumers {
		consumers[i].Workers = cfg.ConsumerWorkers
	}

	srv := server.New(srvCfg)

	errCh := make(chan error, 2)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	if len(consumers) > 0 {
		go func() {
			if err := bus.Run(ctx, channel, logger, consumers...); err != nil && ctx.Err() == nil {
				errCh <- fmt.Errorf("consumers: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("devblocker shutting down", "service", cfg.Service)

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	slog.Info("devblocker stopped", "service", cfg.Service)
	return nil
}
