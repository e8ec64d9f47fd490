package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/fjod/go_shop/internal/cart"
	"github.com/fjod/go_shop/internal/checkout"
	h "github.com/fjod/go_shop/internal/http"
	"github.com/fjod/go_shop/internal/metrics"
	"github.com/fjod/go_shop/internal/outbox"
	"github.com/fjod/go_shop/internal/payment"
	"github.com/fjod/go_shop/internal/reconciler"
	"github.com/fjod/go_shop/internal/repository"
	"github.com/fjod/go_shop/internal/store"
	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	HTTPPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// newStore connects to Postgres when DB_HOST is set and falls back to the
// in-memory store otherwise, which keeps local development dependency-free.
func newStore() (store.Store, error) {
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		log.Println("DB_HOST not set, using in-memory store")
		return store.NewMemoryStore(), nil
	}

	port, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, err
	}

	creds := &repository.Credentials{
		Host:              dbHost,
		Port:              port,
		User:              getEnv("DB_USER", "postgres"),
		Password:          getEnv("DB_PASSWORD", "postgres"),
		DBName:            getEnv("DB_NAME", "shop"),
		MigrationsDirPath: getEnv("MIGRATIONS_PATH", "./internal/repository/migrations"),
	}

	repo, err := repository.NewRepository(creds)
	if err != nil {
		return nil, err
	}
	if err := repo.RunMigrations(creds); err != nil {
		repo.Close()
		return nil, err
	}
	log.Println("Database migrations completed")
	return repo, nil
}

func newCartStore() cart.Store {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		log.Println("REDIS_ADDR not set, using in-memory cart store")
		return cart.NewMemoryStore()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	return cart.NewRedisStore(client)
}

func main() {
	log.Println("shop service starting...")
	var wg sync.WaitGroup

	cfg := loadConfig()

	st, err := newStore()
	if err != nil {
		log.Fatalf("Failed to set up store: %v", err)
	}
	defer st.Close()

	cartStore := newCartStore()

	stripeClient := payment.NewStripeClient(payment.StripeConfig{
		APIBase:    os.Getenv("STRIPE_API_BASE"),
		SecretKey:  getEnv("STRIPE_SECRET_KEY", "sk_test_dummy"),
		SuccessURL: getEnv("FRONTEND_URL", "http://localhost:3000") + "/checkout/success",
		CancelURL:  getEnv("FRONTEND_URL", "http://localhost:3000") + "/checkout/cancel",
	})
	endpointSecret := getEnv("STRIPE_WEBHOOK_SECRET", "whsec_dummy")

	checkoutService := checkout.NewCheckoutService(st, stripeClient, checkout.Config{
		StrictProducts: os.Getenv("STRICT_PRODUCTS") == "true",
	})
	rec := reconciler.NewReconciler(st)
	shopMetrics := metrics.NewShopMetrics(prometheus.DefaultRegisterer)

	cartHandler := h.NewCartHandler(cartStore, st, cfg.RequestTimeout)
	checkoutHandler := h.NewCheckoutHandler(checkoutService, cartStore, shopMetrics, cfg.RequestTimeout)
	webhookHandler := h.NewWebhookHandler(rec, endpointSecret, shopMetrics)
	ordersHandler := h.NewOrdersHandler(st, checkoutService, cfg.RequestTimeout)

	// Start outbox poller when Kafka is configured
	pollerCtx, pollerCancel := context.WithCancel(context.Background())
	defer pollerCancel()
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		poller := outbox.NewPoller(st, brokers)
		defer poller.Close()
		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Run(pollerCtx)
		}()
		log.Printf("Outbox poller publishing to %s", brokers)
	} else {
		log.Println("KAFKA_BROKERS not set, order events stay queued in the outbox")
	}

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(h.RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// the processor signs its own requests, no user token involved
		r.Post("/payments/webhook", webhookHandler.HandleEvent)

		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware(getEnv("JWT_SECRET", "dev-secret")))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Post("/", cartHandler.AddItem)
				r.Delete("/", cartHandler.RemoveItem)
			})
			r.Post("/checkout", checkoutHandler.InitiateCheckout)
			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordersHandler.ListOrders)
				r.Post("/", ordersHandler.CreateOrder)
			})
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Shop service listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down shop service...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	pollerCancel()
	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()
	select {
	case <-doneChan:
	case <-ctx.Done():
		log.Println("outbox poller didn't stop in time")
	}

	log.Println("shop service stopped")
}
