package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/supportdesk/server/internal/api/http"
	"github.com/supportdesk/server/internal/api/http/handlers"
	"github.com/supportdesk/server/internal/auth"
	"github.com/supportdesk/server/internal/config"
	"github.com/supportdesk/server/internal/events"
	"github.com/supportdesk/server/internal/mailer"
	"github.com/supportdesk/server/internal/observability"
	"github.com/supportdesk/server/internal/persistence"
	"github.com/supportdesk/server/internal/realtime"
	"github.com/supportdesk/server/internal/repository"
	"github.com/supportdesk/server/internal/service"
	"github.com/supportdesk/server/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	dbPool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(dbPool)
	ticketRepo := repository.NewTicketRepository(dbPool)
	noteRepo := repository.NewNoteRepository(dbPool)
	notificationRepo := repository.NewNotificationRepository(dbPool)

	fanoutPool := worker.NewPool(cfg.Fanout.Workers, cfg.Fanout.QueueSize, logger)
	dispatcher := events.NewAsyncDispatcher(fanoutPool, logger)
	hub := realtime.NewHub(logger)
	mail := mailer.NewSMTPMailer(cfg.SMTP, logger)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(userRepo, tokenManager, cfg.Auth.BcryptCost)
	authMiddleware := auth.NewAuthMiddleware(tokenManager, userRepo)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		NoteRepo:   noteRepo,
		UserRepo:   userRepo,
		Dispatcher: dispatcher,
	})
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		NotificationRepo: notificationRepo,
		UserRepo:         userRepo,
		Broadcaster:      hub,
		Mailer:           mail,
		Pool:             fanoutPool,
		Cache:            redis,
		Logger:           logger,
	})
	notificationService.RegisterHandlers(dispatcher)

	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
		AuthMiddleware: authMiddleware,
		Hub:            hub,
		Logger:         logger,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()

	// let queued notification effects finish before exiting
	drainCtx, drainCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer drainCancel()
	fanoutPool.Shutdown(drainCtx)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
