package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/appetiteclub/apt"
	aptevents "github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/apt/middleware"
	"github.com/appetiteclub/ordering/internal/cart"
	"github.com/appetiteclub/ordering/internal/catalog"
	"github.com/appetiteclub/ordering/internal/health"
	"github.com/appetiteclub/ordering/internal/kitchen"
	"github.com/appetiteclub/ordering/internal/kitchenstream"
	"github.com/appetiteclub/ordering/internal/mongo"
	"github.com/appetiteclub/ordering/internal/order"
	"github.com/appetiteclub/ordering/internal/printer"
	"github.com/appetiteclub/ordering/internal/promo"
	"github.com/appetiteclub/ordering/internal/seeding"
	"github.com/appetiteclub/ordering/internal/tenant"
	"github.com/appetiteclub/ordering/internal/ticketstream"
	"github.com/appetiteclub/ordering/pkg"
	"github.com/appetiteclub/ordering/pkg/event"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	drivermongo "go.mongodb.org/mongo-driver/mongo"
)

const (
	AppName    = "ordering"
	AppVersion = "0.1.0"
)

// App encapsulates the ordering service application
type App struct {
	config   *apt.Config
	logger   apt.Logger
	settings settings
	micro    *apt.Micro

	backend tenant.Backend
	mongo   *mongo.Backend
	hub     *ticketstream.Hub
	queue   *kitchen.Queue
	devices *kitchen.DeviceRegistry
	carts   *cart.Service
	orders  *order.Service
	worker  *printer.Worker
	relay   *kitchenstream.Relay
	health  *health.Server

	routes     *tenantRoutes
	lifecycles []interface{}
}

func New(config *apt.Config, logger apt.Logger) (*App, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &App{
		config:   config,
		logger:   logger,
		settings: loadSettings(config),
	}, nil
}

// Initialize sets up all dependencies and components
func (a *App) Initialize(ctx context.Context) error {
	if err := a.build(ctx); err != nil {
		return err
	}

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:         a.logger,
		DisableCORS:    true,
		DisableTimeout: true,
	})
	if a.settings.SigningKey == "" {
		// The tenant header is only trustworthy from inside the network.
		stack = append(stack, middleware.InternalOnly())
	}

	options := []apt.Option{
		apt.WithConfig(a.config),
		apt.WithLogger(a.logger),
		apt.WithHTTPMiddleware(stack...),
		apt.WithHTTPServerModules("web.port", a.routes),
		apt.WithGRPCServerModules("grpc.port", a.health),
		apt.WithLifecycle(a.lifecycles...),
		apt.WithHealthChecks(AppName),
	}

	a.micro = apt.NewMicro(options...)
	return nil
}

// build wires the domain. It opens no network connections for the memory
// backend with events disabled.
func (a *App) build(ctx context.Context) error {
	s := a.settings

	switch s.DBBackend {
	case BackendMemory:
		a.backend = tenant.NewMemoryBackend()
	case BackendMongo:
		a.mongo = mongo.NewBackend(a.config, a.logger)
		a.backend = a.mongo
		a.lifecycles = append(a.lifecycles, a.mongo)
	default:
		return fmt.Errorf("unknown db.backend %q", s.DBBackend)
	}

	lookup, err := a.buildCatalog()
	if err != nil {
		return err
	}

	a.hub = ticketstream.NewHub(a.logger)
	a.devices = kitchen.NewDeviceRegistry(a.backend)
	a.queue = kitchen.NewQueue(a.backend, a.devices, a.hub, a.logger)

	summaries := cart.NewSummaryBuilder(lookup, promo.NewEvaluator(promo.DefaultDefinitions), s.Pricing)
	a.carts = cart.NewService(cart.NewStoreRepository(a.backend), summaries, a.logger)
	a.orders = order.NewService(order.NewStoreRepository(a.backend), a.carts, summaries, a.queue, a.logger)

	if s.DemoSeed {
		a.lifecycles = append(a.lifecycles, apt.LifecycleHooks{
			OnStart: func(ctx context.Context) error {
				if err := seeding.ApplyDemo(ctx, a.backend, a.mongoDatabase(), seeding.DemoTenant, a.logger); err != nil {
					a.logger.Errorf("Demo seeding failed (non-fatal): %v", err)
				}
				return nil
			},
		})
	}

	if err := a.buildRelay(ctx); err != nil {
		return err
	}

	a.worker = printer.NewWorker(a.queue, a.devices, a.hub, printer.NewLogPrinter(a.logger), s.Printer, a.logger)
	a.health = health.NewServer(a.logger, AppName)
	a.lifecycles = append(a.lifecycles, a.worker, a.health)

	a.routes = &tenantRoutes{
		resolver: tenant.NewKeyedResolver([]byte(s.SigningKey), a.logger),
		timeout:  requestTimeout,
		modules: []routeModule{
			cart.NewHandler(a.carts, a.config, a.logger),
			order.NewHandler(a.orders, a.config, a.logger),
			kitchen.NewHandler(a.queue, a.devices, a.config, a.logger),
		},
		streams: []routeModule{
			kitchenstream.NewSSEHandler(a.hub, a.queue, a.logger),
		},
	}
	return nil
}

func (a *App) mongoDatabase() *drivermongo.Database {
	if a.mongo == nil {
		return nil
	}
	return a.mongo.GetDatabase()
}

func (a *App) buildCatalog() (catalog.Lookup, error) {
	s := a.settings

	var lookup catalog.Lookup
	switch s.CatalogBackend {
	case CatalogStore:
		lookup = catalog.NewStoreLookup(a.backend)
	case CatalogHTTP:
		lookup = catalog.NewHTTPLookup(apt.NewServiceClient(s.MenuURL), s.Pricing.Currency, a.logger)
	default:
		return nil, fmt.Errorf("unknown catalog.backend %q", s.CatalogBackend)
	}

	if s.RedisAddr == "" {
		return lookup, nil
	}

	client := redis.NewClient(&redis.Options{Addr: s.RedisAddr})
	a.lifecycles = append(a.lifecycles, apt.LifecycleHooks{
		OnStop: func(context.Context) error { return client.Close() },
	})
	a.logger.Info("catalog cache enabled", "addr", s.RedisAddr, "ttl", s.RedisTTL.String())
	return catalog.NewRedisCache(client, s.RedisTTL, lookup, a.logger), nil
}

// buildRelay connects the hub to the configured broker.
func (a *App) buildRelay(ctx context.Context) error {
	s := a.settings
	instance := instanceID()

	var publisher aptevents.Publisher
	var subscriber aptevents.Subscriber
	var closers []func() error

	switch s.EventsBackend {
	case EventsNone, "":
		return nil

	case EventsNATS:
		pub, err := pkg.NewNATSPublisher(s.NATSURL)
		if err != nil {
			return err
		}
		sub, err := pkg.NewNATSSubscriber(s.NATSURL, a.logger)
		if err != nil {
			_ = pub.Close()
			return err
		}
		publisher, subscriber = pub, sub
		closers = append(closers, sub.Close, pub.Close)

	case EventsNATSStream:
		stream, err := pkg.NewNATSStream(ctx, pkg.NATSStreamConfig{
			URL:          s.NATSURL,
			StreamName:   "KITCHEN_TICKETS",
			Topic:        event.KitchenTicketsTopic,
			ConsumerName: "ordering-" + instance,
			MaxAge:       24 * time.Hour,
		})
		if err != nil {
			return err
		}
		a.logger.Info("NATS stream initialized for ticket relay")
		publisher, subscriber = stream, stream
		closers = append(closers, stream.Close)

	case EventsKafka:
		pub := pkg.NewKafkaPublisher(s.KafkaBrokers, s.KafkaTopic)
		sub := pkg.NewKafkaSubscriber(s.KafkaBrokers, "ordering-"+instance, a.logger)
		publisher, subscriber = pub, sub
		closers = append(closers, sub.Close, pub.Close)

	default:
		return fmt.Errorf("unknown events.backend %q", s.EventsBackend)
	}

	topic := event.KitchenTicketsTopic
	if s.EventsBackend == EventsKafka {
		topic = s.KafkaTopic
	}
	a.relay = kitchenstream.NewRelay(a.hub, publisher, subscriber, topic, a.logger)
	a.lifecycles = append(a.lifecycles, a.relay, apt.LifecycleHooks{
		OnStop: func(context.Context) error {
			for _, c := range closers {
				if err := c(); err != nil {
					a.logger.Error("cannot close event connection", "error", err)
				}
			}
			return nil
		},
	})
	return nil
}

func instanceID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host + "-" + uuid.NewString()[:8]
	}
	return uuid.NewString()
}

// Run starts the application
func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("Starting %s(%s)", AppName, AppVersion)
	if err := a.micro.Run(ctx); err != nil {
		return err
	}
	a.logger.Infof("%s(%s) stopped", AppName, AppVersion)
	return nil
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	// Lifecycle cleanup is handled by apt.Micro
	return nil
}
