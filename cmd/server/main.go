package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"barboeuf-be/internal/checkout"
	"barboeuf-be/internal/config"
	"barboeuf-be/internal/db"
	"barboeuf-be/internal/events"
	"barboeuf-be/internal/logger"
	"barboeuf-be/internal/middleware"
	"barboeuf-be/internal/order"
	"barboeuf-be/internal/payment"
	"barboeuf-be/internal/payment/webhook"
	"barboeuf-be/internal/product"
	"barboeuf-be/internal/telemetry"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

var version = "dev"

const shutdownTimeout = 10 * time.Second

var (
	initDBFunc      = db.InitDB
	startServerFunc = listenAndServe
)

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("server exited", zap.Error(err))
	}
}

func run() error {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, version)
	if err != nil {
		log.Warn("tracing disabled", zap.Error(err))
	} else {
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = shutdownTracing(sctx)
		}()
	}

	if err := cfg.CheckoutReady(); err != nil {
		log.Error("checkout will reject requests", zap.Error(err))
	}
	if err := cfg.WebhookReady(); err != nil {
		log.Error("payment webhooks will be rejected", zap.Error(err))
	}

	database := initDBFunc(cfg)
	defer database.Close()

	publisher := events.New(cfg.KafkaTopic, cfg.KafkaBrokers)
	defer publisher.Close()

	handler := newServer(ctx, cfg, database, publisher)

	addr := ":" + cfg.AppPort
	log.Info("server starting", zap.String("addr", addr), zap.String("version", version))
	return startServerFunc(ctx, addr, handler)
}

// newServer wires repositories, services and handlers into the HTTP handler.
func newServer(ctx context.Context, cfg *config.Config, database *sql.DB, publisher events.Publisher) http.Handler {
	productRepo := product.NewRepository(database)
	productSvc := product.NewService(productRepo)

	orderRepo := order.NewRepository(database)
	orderSvc := order.NewService(orderRepo, publisher)

	paymentRepo := payment.NewRepository(database)
	gateway := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)

	checkoutSvc := checkout.NewService(cfg, productRepo, orderRepo, gateway)

	limiter := middleware.NewRateLimiter()
	go limiter.Run(ctx)

	router := setupRouter(routes{
		checkout:      checkout.NewHandler(checkoutSvc),
		webhook:       webhook.NewWebhookHandler(orderSvc, gateway, paymentRepo),
		products:      product.NewHandler(productSvc).List,
		limiter:       limiter,
		allowedOrigin: cfg.AllowedOrigin,
		trustProxy:    cfg.TrustProxyHeaders,
	})

	return otelhttp.NewHandler(router, telemetry.ServiceName)
}

type routes struct {
	checkout      http.Handler
	webhook       http.Handler
	products      http.HandlerFunc
	limiter       *middleware.RateLimiter
	allowedOrigin string
	trustProxy    bool
}

func setupRouter(rt routes) chi.Router {
	r := chi.NewRouter()
	// Forwarding headers are client controlled unless a proxy rewrites them.
	if rt.trustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(logger.RequestIDMiddleware)
	r.Use(logger.LoggingMiddleware)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Provider notifications carry their own signature and are never throttled.
	r.Handle("/webhook/stripe", rt.webhook)

	r.Group(func(r chi.Router) {
		r.Use(middleware.CORS(rt.allowedOrigin))
		if rt.limiter != nil {
			r.Use(rt.limiter.Middleware)
		}
		r.Handle("/checkout", rt.checkout)
		r.Get("/products", rt.products)
		// Registered so the CORS middleware answers the preflight.
		r.Options("/products", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})

	return r
}

func listenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.L().Info("shutting down server")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}
