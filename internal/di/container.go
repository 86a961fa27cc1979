package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/cafeluna/api/internal/notifications"
	"github.com/cafeluna/api/internal/platform/auth"
	"github.com/cafeluna/api/internal/platform/config"
	"github.com/cafeluna/api/internal/repositories"
	"github.com/cafeluna/api/internal/services"
)

const notificationIDPrefix = "ntf_"

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Orders  services.OrderService
	Carts   services.CartService
	Catalog services.CatalogService
	Users   services.UserService
	Stats   services.StatsService
	System  services.SystemService
}

// Container wires repositories, services, session auth, and the status
// notifier for runtime use.
type Container struct {
	Config        config.Config
	Repositories  repositories.Registry
	Tokens        *auth.TokenService
	Authenticator *auth.Authenticator
	Notifier      *notifications.Notifier
	Services      Services
}

// Option customises container construction.
type Option func(*containerOptions)

type containerOptions struct {
	logger    *zap.Logger
	publisher *notifications.OrderEventPublisher
	clock     func() time.Time
}

// WithLogger supplies the logger shared by the notifier and services.
func WithLogger(logger *zap.Logger) Option {
	return func(o *containerOptions) {
		o.logger = logger
	}
}

// WithEventPublisher registers the Pub/Sub forwarding listener on the notifier.
func WithEventPublisher(publisher *notifications.OrderEventPublisher) Option {
	return func(o *containerOptions) {
		o.publisher = publisher
	}
}

// WithClock overrides the time source used by services and listeners.
func WithClock(clock func() time.Time) Option {
	return func(o *containerOptions) {
		o.clock = clock
	}
}

// NewContainer constructs the runtime dependencies from the registry. The
// registry owns all persistence; everything else is assembled here.
func NewContainer(cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	options := containerOptions{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	logger := options.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("build token service: %w", err)
	}
	authenticator := auth.NewAuthenticator(tokens)

	notifier, err := buildNotifier(reg, logger, options)
	if err != nil {
		return nil, err
	}

	svc, err := buildServices(cfg, reg, notifier, tokens, logger, options.clock)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:        cfg,
		Repositories:  reg,
		Tokens:        tokens,
		Authenticator: authenticator,
		Notifier:      notifier,
		Services:      svc,
	}, nil
}

// Close releases resources such as repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildNotifier(reg repositories.Registry, logger *zap.Logger, options containerOptions) (*notifications.Notifier, error) {
	notifier := notifications.NewNotifier(logger)
	notifier.Register(notifications.NewKitchenListener(logger))

	customer, err := notifications.NewCustomerListener(
		reg.Notifications(),
		func() string { return notificationIDPrefix + ulid.Make().String() },
		options.clock,
	)
	if err != nil {
		return nil, fmt.Errorf("build customer listener: %w", err)
	}
	notifier.Register(customer)

	if options.publisher != nil {
		forwarder, err := notifications.NewEventPublisherListener(options.publisher)
		if err != nil {
			return nil, fmt.Errorf("build event publisher listener: %w", err)
		}
		notifier.Register(forwarder)
	}
	return notifier, nil
}

func buildServices(
	cfg config.Config,
	reg repositories.Registry,
	notifier *notifications.Notifier,
	tokens *auth.TokenService,
	logger *zap.Logger,
	clock func() time.Time,
) (Services, error) {
	var svc Services

	userSvc, err := services.NewUserService(services.UserServiceDeps{
		Users:         reg.Users(),
		Notifications: reg.Notifications(),
		Tokens:        tokens,
		PointsPerReal: cfg.Orders.LoyaltyPointsPerReal,
		Clock:         clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build user service: %w", err)
	}
	svc.Users = userSvc

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Carts:     reg.Carts(),
		Beverages: reg.Beverages(),
		AddOns:    reg.AddOns(),
		Clock:     clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Carts = cartSvc

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Beverages: reg.Beverages(),
		AddOns:    reg.AddOns(),
		Clock:     clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	statsSvc, err := services.NewStatsService(services.StatsServiceDeps{
		Orders: reg.Orders(),
		Clock:  clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build stats service: %w", err)
	}
	svc.Stats = statsSvc

	systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
		Health:      reg.Health(),
		Environment: cfg.Security.Environment,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build system service: %w", err)
	}
	svc.System = systemSvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     reg.Orders(),
		Carts:      reg.Carts(),
		Counters:   reg.Counters(),
		UnitOfWork: reg,
		Dispatcher: notifier,
		Loyalty:    userSvc,
		Currency:   cfg.Orders.Currency,
		Clock:      clock,
		Logger:     zapEventLogger(logger),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	return svc, nil
}

func zapEventLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zapFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		logger.Info(event, zapFields...)
	}
}
