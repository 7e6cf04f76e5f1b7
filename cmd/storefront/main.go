package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/fjod/bakery-storefront/internal/address"
	"github.com/fjod/bakery-storefront/internal/cart"
	"github.com/fjod/bakery-storefront/internal/cart/cache"
	"github.com/fjod/bakery-storefront/internal/cart/consumer"
	"github.com/fjod/bakery-storefront/internal/cart/repository"
	"github.com/fjod/bakery-storefront/internal/catalog"
	"github.com/fjod/bakery-storefront/internal/checkout"
	"github.com/fjod/bakery-storefront/internal/config"
	"github.com/fjod/bakery-storefront/internal/events"
	h "github.com/fjod/bakery-storefront/internal/http"
	"github.com/fjod/bakery-storefront/internal/orders"
	"github.com/fjod/bakery-storefront/pkg/logger"
)

const serviceName = "storefront"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	l, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = l.Sync() }()

	// trace context flows through otelhttp into outbound calls
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	instanceID := uuid.NewString()
	var checks []func(context.Context) error

	// Cart storage
	var cartRepo repository.CartRepository
	if cfg.Mongo.URI != "" {
		mongoDB, err := repository.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			l.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer func() { _ = mongoDB.Client().Disconnect(context.Background()) }()

		mongoRepo := repository.NewMongoRepository(mongoDB)
		if err := mongoRepo.CreateIndexes(ctx); err != nil {
			l.Fatal("Failed to create cart indexes", zap.Error(err))
		}
		cartRepo = mongoRepo
		checks = append(checks, func(ctx context.Context) error { return mongoDB.Client().Ping(ctx, nil) })
		l.Info("Connected to MongoDB", zap.String("database", cfg.Mongo.Database))
	} else {
		l.Warn("MONGO_URI not set, carts are kept in memory")
		cartRepo = repository.NewMemoryRepository()
	}

	// Caches
	var cartCache cache.CartCache = cache.Noop{}
	var addressCache address.Cache
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       0,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			l.Warn("Redis ping failed, running without shared cache", zap.Error(err))
		} else {
			cartCache = cache.NewRedisCache(redisClient)
			addressCache = address.NewRedisCache(redisClient, serviceName)
			l.Info("Redis ping succeeded", zap.String("addr", cfg.Redis.Addr))
		}
	}
	if addressCache == nil {
		memoryCache := address.NewMemoryCache(serviceName)
		go memoryCache.Start()
		defer memoryCache.Close()
		addressCache = memoryCache
	}

	// Events
	bus := events.NewBus(l)
	var publisher events.Publisher = bus
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka.Brokers...)
		defer kafkaPublisher.Close()
		publisher = events.Fanout{bus, kafkaPublisher}

		relay := events.NewRelay(instanceID, bus, l, cfg.Kafka.Brokers...)
		defer relay.Close()
		go relay.Run(ctx)
	}

	// Catalog
	var products catalog.Catalog
	if cfg.Catalog.APIURL != "" {
		products = catalog.NewClient(cfg.Catalog.APIURL, cfg.RequestTimeout, l)
	} else {
		sqliteCatalog, err := catalog.NewSQLiteCatalog(cfg.Catalog.SQLitePath)
		if err != nil {
			l.Fatal("Failed to open catalog database", zap.Error(err))
		}
		defer sqliteCatalog.Close()
		if err := sqliteCatalog.RunMigrations(); err != nil {
			l.Fatal("Failed to migrate catalog database", zap.Error(err))
		}
		products = sqliteCatalog
	}

	store := cart.NewStore(cartRepo, cartCache, publisher, products, l, cart.WithSource(instanceID))

	if len(cfg.Kafka.Brokers) > 0 {
		cartConsumer := consumer.NewConsumer(store, l, cfg.Kafka.Brokers...)
		defer cartConsumer.Close()
		go cartConsumer.Run(ctx)
	} else {
		bus.OnOrderPlaced(cart.ClearOnOrderPlaced(store))
	}

	addresses := address.NewClient(cfg.Address.APIURL, cfg.RequestTimeout, addressCache, cfg.Address.CacheTTL, l)

	// Orders
	var submitter orders.Submitter
	var orderService h.OrderService
	var checkoutOpts []checkout.Option
	orderPublisher := checkout.OrderPublisher(publisher)
	if cfg.Orders.APIURL != "" {
		submitter = orders.NewClient(cfg.Orders.APIURL, cfg.RequestTimeout, l)
		l.Info("Submitting orders to remote API", zap.String("url", cfg.Orders.APIURL))
	} else {
		cred := &orders.Credentials{
			Host:              cfg.Postgres.Host,
			Port:              cfg.Postgres.Port,
			User:              cfg.Postgres.User,
			Password:          cfg.Postgres.Password,
			DBName:            cfg.Postgres.DBName,
			MigrationsDirPath: cfg.Postgres.MigrationsDirPath,
		}
		orderRepo, err := orders.NewRepository(cred)
		if err != nil {
			l.Fatal("Failed to connect to Postgres", zap.Error(err))
		}
		defer orderRepo.Close()
		if err := orderRepo.RunMigrations(cred); err != nil {
			l.Fatal("Failed to run order migrations", zap.Error(err))
		}
		intake := orders.NewIntake(orderRepo)
		submitter = intake
		orderService = orders.NewService(orderRepo, l)
		checks = append(checks, orderRepo.Ping)

		// OrderPlaced goes out through the outbox written with each order
		orderPublisher = nil
		checkoutOpts = append(checkoutOpts, checkout.WithOrderLookup(intake))
		go orders.NewOutboxPoller(orderRepo, publisher, l).Run(ctx)
	}

	checkoutService := checkout.NewService(store, cfg.Pricing.Calculator(), addresses, submitter, orderPublisher, l, checkoutOpts...)

	defaultLanguage, err := language.Parse(cfg.DefaultLanguage)
	if err != nil {
		l.Warn("Invalid DEFAULT_LANGUAGE, using vi", zap.String("value", cfg.DefaultLanguage))
		defaultLanguage = language.Vietnamese
	}

	healthCheck := func(ctx context.Context) error {
		var errs []error
		for _, check := range checks {
			errs = append(errs, check(ctx))
		}
		return errors.Join(errs...)
	}

	router := h.NewRouter(h.Deps{
		Catalog:         products,
		Carts:           store,
		Calculator:      cfg.Pricing.Calculator(),
		Events:          bus,
		Addresses:       addresses,
		Checkout:        checkoutService,
		Orders:          orderService,
		Health:          healthCheck,
		Logger:          l,
		JWTSecret:       cfg.Auth.JWTSecret,
		SecureCookies:   cfg.Environment == "production",
		DefaultLanguage: defaultLanguage,
		RequestTimeout:  cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		l.Info("Storefront HTTP server starting", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("server error", zap.Error(err))
		}
	}()

	// gRPC health endpoint for orchestrators
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		l.Fatal("Failed to listen", zap.Error(err))
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	go watchHealth(ctx, healthServer, healthCheck, l)
	go func() {
		l.Info("gRPC health server listening", zap.String("port", cfg.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			l.Error("gRPC server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()

	l.Info("shutting down server...")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error("server forced to shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()

	l.Info("server exited")
}

func watchHealth(ctx context.Context, hs *health.Server, check func(context.Context) error, l *zap.Logger) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := check(checkCtx)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			l.Warn("health check failed", zap.Error(err))
		}
		hs.SetServingStatus("", status)
		hs.SetServingStatus(serviceName, status)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
