/**
 * @description
 * This is the main entry point for the payment-service. It is responsible for
 * initializing all components of the service, including configuration, the
 * database connection, the gateway registry, the message broker, the webhook
 * dedup cache, the core application service, and the HTTP server. It wires
 * everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/app, internal/config, internal/gateway, internal/store.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/fundedlabs/payment-service/internal/api"
	"github.com/fundedlabs/payment-service/internal/app"
	"github.com/fundedlabs/payment-service/internal/config"
	"github.com/fundedlabs/payment-service/internal/gateway"
	"github.com/fundedlabs/payment-service/internal/store"
	rmrabbit "github.com/fundedlabs/payment-service/pkg/rabbitmq"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.FrontendURL) == "" || strings.TrimSpace(cfg.BackendURL) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"callback base urls must be configured\" env=FRONTEND_URL,BACKEND_URL")
	}

	log.Printf("level=info component=bootstrap msg=\"starting payment-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 50
	poolConfig.MinConns = 10
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts behind poolers.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer for lifecycle and reconciliation events.
	// A broker outage at boot degrades to the no-op fallback instead of
	// blocking order intake.
	var producer rmrabbit.Publisher
	rabbitProducer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		producer = &rmrabbit.EventProducerFallback{}
	} else {
		defer rabbitProducer.Close()
		producer = rabbitProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Webhook dedup cache: Redis when configured, in-process map otherwise.
	var dedup app.WebhookDedup
	if cfg.RedisURL == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; webhook dedup is per-process only\" env=REDIS_URL")
		dedup = app.NewMemoryWebhookDedup()
	} else {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; webhook dedup is per-process only\" err=%v", parseErr)
			dedup = app.NewMemoryWebhookDedup()
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelPing()
			if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; webhook dedup is per-process only\" err=%v", pingErr)
				redisClient.Close()
				dedup = app.NewMemoryWebhookDedup()
			} else {
				defer redisClient.Close()
				dedup = app.NewRedisWebhookDedup(redisClient, cfg.RedisDedupPrefix)
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Gateway configuration: config store first, process environment second.
	configProvider := gateway.NewFallbackConfigProvider(
		gateway.ConfigProviderFunc(repository.GetActiveGatewayConfig),
		gateway.NewEnvConfigProvider(),
	)

	urls := gateway.CallbackURLs{
		Frontend: cfg.FrontendURL,
		Backend:  cfg.BackendURL,
	}

	// The registry is closed after this point; no adapters register at runtime.
	registry := gateway.NewRegistry(
		gateway.NewCoinportAdapter(configProvider, urls),
		gateway.NewSwiftUPIAdapter(configProvider, urls),
		gateway.NewBanklineAdapter(configProvider, urls),
	)

	// Initialize the core application service with its dependencies.
	paymentService := app.NewService(
		repository,
		registry,
		producer,
		dedup,
		cfg.PaymentEventExchange,
		time.Duration(cfg.WebhookDedupTTLMinutes)*time.Minute,
	)

	// Initialize the API handlers and router.
	paymentHandlers := api.NewPaymentHandlers(paymentService)
	router := api.PaymentRoutes(paymentHandlers, cfg.JWTSecret)

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
