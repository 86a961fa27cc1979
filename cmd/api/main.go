package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/cafeluna/api/internal/di"
	"github.com/cafeluna/api/internal/handlers"
	"github.com/cafeluna/api/internal/notifications"
	"github.com/cafeluna/api/internal/platform/config"
	pfirestore "github.com/cafeluna/api/internal/platform/firestore"
	"github.com/cafeluna/api/internal/platform/idempotency"
	"github.com/cafeluna/api/internal/platform/observability"
	"github.com/cafeluna/api/internal/repositories"
	fsrepo "github.com/cafeluna/api/internal/repositories/firestore"
)

const shutdownGrace = 20 * time.Second

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger); err != nil {
		logger.Fatal("api terminated", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Info("configuration loaded",
		zap.String("environment", cfg.Security.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("firestore_project", cfg.Firestore.ProjectID),
	)

	provider := pfirestore.NewProvider(cfg.Firestore)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Close(closeCtx); err != nil {
			logger.Warn("firestore provider close failed", zap.Error(err))
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("create pubsub client: %w", err)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}()
	orderTopic := pubsubClient.Topic(cfg.PubSub.OrderEventTopic)
	defer orderTopic.Stop()

	health, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
		{Name: "firestore", Check: firestoreCheck(provider)},
		{Name: "pubsub", Check: pubsubCheck(orderTopic)},
	}, time.Now)
	if err != nil {
		return fmt.Errorf("build health repository: %w", err)
	}

	registry, err := fsrepo.NewRegistry(provider, health)
	if err != nil {
		return fmt.Errorf("build repository registry: %w", err)
	}

	publisher, err := notifications.NewOrderEventPublisher(orderTopic)
	if err != nil {
		return fmt.Errorf("build order event publisher: %w", err)
	}

	container, err := di.NewContainer(cfg, registry,
		di.WithLogger(logger),
		di.WithEventPublisher(publisher),
	)
	if err != nil {
		return fmt.Errorf("build container: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close failed", zap.Error(err))
		}
	}()

	createGuard, err := buildCreateOrderGuard(ctx, provider, logger)
	if err != nil {
		return fmt.Errorf("build idempotency guard: %w", err)
	}

	router := buildRouter(cfg, container, createGuard, logger)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("api listening", zap.String("addr", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received; draining requests")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			return fmt.Errorf("graceful shutdown: %w", err)
		}
	}

	logger.Info("api stopped")
	return nil
}

func buildRouter(cfg config.Config, container *di.Container, createGuard func(http.Handler) http.Handler, logger *zap.Logger) http.Handler {
	authn := container.Authenticator
	svc := container.Services

	var orderOpts []handlers.OrderOption
	if createGuard != nil {
		orderOpts = append(orderOpts, handlers.WithCreateGuard(createGuard))
	}

	return handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(cfg.Firestore.ProjectID),
			observability.RequestLoggerMiddleware(cfg.Firestore.ProjectID),
			observability.RecoveryMiddleware(logger),
		),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(svc.System)),
		handlers.WithAuthRoutes(handlers.NewAccountHandlers(svc.Users).Routes),
		handlers.WithMenuRoutes(handlers.NewMenuHandlers(svc.Catalog).Routes),
		handlers.WithMeRoutes(handlers.NewMeHandlers(authn, svc.Users).Routes),
		handlers.WithCartRoutes(handlers.NewCartHandlers(authn, svc.Carts).Routes),
		handlers.WithOrderRoutes(handlers.NewOrderHandlers(authn, svc.Orders, orderOpts...).Routes),
		handlers.WithKitchenRoutes(handlers.NewKitchenHandlers(authn, svc.Orders).Routes),
		handlers.WithAdminRoutes(handlers.NewAdminHandlers(authn, svc.Catalog, svc.Stats).Routes),
	)
}

// buildCreateOrderGuard protects order creation with an Idempotency-Key check
// backed by Firestore, so a retried submission replays the stored response
// instead of creating a second order.
func buildCreateOrderGuard(ctx context.Context, provider *pfirestore.Provider, logger *zap.Logger) (func(http.Handler) http.Handler, error) {
	client, err := provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	store := idempotency.NewFirestoreStore(client)
	return idempotency.Guard(store, idempotency.WithLogger(logger)), nil
}

func firestoreCheck(provider *pfirestore.Provider) func(context.Context) error {
	return func(ctx context.Context) error {
		client, err := provider.Client(ctx)
		if err != nil {
			return err
		}
		if _, err := client.Collections(ctx).Next(); err != nil && err != iterator.Done {
			return err
		}
		return nil
	}
}

func pubsubCheck(topic *pubsub.Topic) func(context.Context) error {
	return func(ctx context.Context) error {
		exists, err := topic.Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("pubsub topic %q not found", topic.ID())
		}
		return nil
	}
}
