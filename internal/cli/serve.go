package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/repair-portal/internal/api/http"
	"github.com/spec-kit/repair-portal/internal/api/http/handlers"
	"github.com/spec-kit/repair-portal/internal/auth"
	"github.com/spec-kit/repair-portal/internal/config"
	"github.com/spec-kit/repair-portal/internal/events"
	"github.com/spec-kit/repair-portal/internal/lock"
	"github.com/spec-kit/repair-portal/internal/notify"
	"github.com/spec-kit/repair-portal/internal/observability"
	"github.com/spec-kit/repair-portal/internal/persistence"
	"github.com/spec-kit/repair-portal/internal/repository"
	"github.com/spec-kit/repair-portal/internal/repository/memory"
	"github.com/spec-kit/repair-portal/internal/service"
	"github.com/spec-kit/repair-portal/internal/worker"
)

const shutdownGrace = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck
		return serve(cmd.Context(), cfg, logger)
	},
}

type storage struct {
	tickets repository.TicketRepository
	users   repository.UserRepository
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	metrics := observability.NewMetrics()
	health := map[string]handlers.Pinger{"postgres": nil, "redis": nil}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	store, err := openStorage(ctx, cfg, pg, logger)
	if err != nil {
		return err
	}
	if pg.Enabled() {
		health["postgres"] = pg
	}

	var locker lock.Locker = lock.NewMemoryLocker()
	if cfg.Redis.Enabled {
		rdb, err := persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb.Client, cfg.Lock.TTL(), cfg.Lock.RetryInterval(), logger)
		health["redis"] = rdb
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	forwarder := events.NewKafkaForwarder(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	forwarder.Register(dispatcher)
	defer func() {
		if err := forwarder.Close(); err != nil {
			logger.Warn("close kafka writer", zap.Error(err))
		}
	}()

	var sender notify.Sender = notify.NewLogSender(cfg.Notification.EmailFrom, logger)
	if cfg.Notification.WebhookURL != "" {
		sender = notify.NewWebhookSender(cfg.Notification.WebhookURL, cfg.Notification.Timeout())
	}
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher: dispatcher,
		UserRepo:   store.users,
		Sender:     sender,
		Config:     cfg.Notification,
		Logger:     logger,
		Metrics:    metrics,
	})
	stopNotifications := worker.StartNotificationWorker(notificationService, shutdownGrace, logger)
	defer stopNotifications()

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo: store.users,
		Logger:   logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: store.tickets,
		UserRepo:   store.users,
		Locker:     locker,
		Dispatcher: dispatcher,
		Policy:     cfg.Policy,
		LockWait:   cfg.Lock.WaitTimeout(),
		Logger:     logger,
		Metrics:    metrics,
	})

	app := httptransport.NewApp(cfg.App.Name, logger, metrics, cfg.App.RequestTimeout(), httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, health),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		StaffTickets:   handlers.NewStaffTicketsHandler(ticketService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), store.users),
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("http listen: %w", err)
	case sig := <-shutdownSignal():
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("shutting down", zap.Error(ctx.Err()))
	}

	if err := app.ShutdownWithTimeout(shutdownGrace); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	return nil
}

// openStorage picks Postgres when a pool is configured and in-memory
// repositories otherwise.
func openStorage(ctx context.Context, cfg *config.Config, pg *persistence.Postgres, logger *zap.Logger) (storage, error) {
	if !pg.Enabled() {
		return storage{tickets: memory.NewTicketRepository(), users: memory.NewUserRepository()}, nil
	}
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			return storage{}, fmt.Errorf("run migrations: %w", err)
		}
	}
	return storage{
		tickets: repository.NewTicketRepository(pg.Pool),
		users:   repository.NewUserRepository(pg.Pool),
	}, nil
}

func shutdownSignal() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return sigCh
}
