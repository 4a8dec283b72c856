package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/mesaflow/orders-service/internal/catalog"
	"github.com/mesaflow/orders-service/internal/messaging"
	"github.com/mesaflow/orders-service/internal/orders"
	"github.com/mesaflow/orders-service/internal/payment"
	"github.com/mesaflow/orders-service/internal/tables"
	"github.com/mesaflow/orders-service/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "orders", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("orders", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(context.Background()) }()

	if err := runtime.Start(); err != nil {
		logger.Error("failed to start runtime instrumentation", "error", err)
		os.Exit(1)
	}

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", postgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers == "" {
		logger.Error("KAFKA_BROKERS environment variable is required")
		os.Exit(1)
	}
	brokers := strings.Split(kafkaBrokers, ",")

	catalogServiceURL := os.Getenv("CATALOG_SERVICE_URL")
	if catalogServiceURL == "" {
		logger.Error("CATALOG_SERVICE_URL environment variable is required")
		os.Exit(1)
	}

	paymentServiceURL := os.Getenv("PAYMENT_SERVICE_URL")
	if paymentServiceURL == "" {
		logger.Error("PAYMENT_SERVICE_URL environment variable is required")
		os.Exit(1)
	}

	requestsTopic := envOr("ORDERS_REQUESTS_TOPIC", "orders.requests")
	paymentsTopic := envOr("PAYMENT_EVENTS_TOPIC", "payment.succeeded")
	groupID := envOr("ORDERS_GROUP_ID", "orders-service")

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	repo := orders.NewOrderRepository(db)
	directory := tables.NewDirectory(db)
	catalogClient := catalog.NewClient(catalogServiceURL, httpClient)
	paymentClient := payment.NewClient(paymentServiceURL, httpClient)
	service := orders.NewService(repo, catalogClient, paymentClient, directory, logger)

	producer := messaging.NewProducer(brokers)
	defer func() { _ = producer.Close() }()

	handler := orders.NewHandler(service, directory, producer, logger)

	requestConsumer := messaging.NewConsumer(brokers, requestsTopic, groupID)
	defer func() { _ = requestConsumer.Close() }()

	paymentConsumer := messaging.NewConsumer(brokers, paymentsTopic, groupID+"-payments")
	defer func() { _ = paymentConsumer.Close() }()

	go consume(ctx, logger, "requests", func() error {
		return requestConsumer.Consume(ctx, handler.HandleRequest)
	})
	go consume(ctx, logger, "payment events", func() error {
		return paymentConsumer.Consume(ctx, handler.HandlePaymentSucceeded)
	})

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", telemetry.WithHTTPRoute(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))

	port := envOr("PORT", "8081")
	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "orders",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting orders service", "port", port, "brokers", brokers, "topic", requestsTopic)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

func consume(ctx context.Context, logger *slog.Logger, name string, run func() error) {
	if err := run(); err != nil {
		if ctx.Err() == context.Canceled {
			logger.Info("consumer stopped", "consumer", name)
			return
		}
		logger.Error("consumer error", "consumer", name, "error", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
