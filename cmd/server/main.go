package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"campus-ticketing/config"
	"campus-ticketing/internal/cache"
	"campus-ticketing/internal/database"
	"campus-ticketing/internal/handler"
	"campus-ticketing/internal/middleware"
	"campus-ticketing/internal/notify"
	"campus-ticketing/internal/queue"
	"campus-ticketing/internal/repository"
	"campus-ticketing/internal/service"
	"campus-ticketing/internal/worker"
	"campus-ticketing/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()
	logger.SetLevel(cfg.LogLevel)
	log := logger.WithComponent("main")
	defer logger.L.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.InitDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatal("Failed to apply schema", zap.Error(err))
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		log.Fatal("Failed to initialize redis", zap.Error(err))
	}
	defer rdb.Close()

	ledgerOpts := service.LedgerOptionsFromConfig(cfg.Ledger)

	eventRepo := repository.NewEventRepository(pool)
	registrationRepo := repository.NewRegistrationRepository(pool)
	paymentRepo := repository.NewPaymentRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)

	eventCache := cache.NewRedisEventCache(rdb, eventRepo, cfg.Cache.EventTTL)
	eventService := service.NewEventService(eventRepo, eventCache, cfg.Currency, ledgerOpts)
	registrationService := service.NewRegistrationService(registrationRepo, ledgerOpts)
	targets := service.NewRegistrationTargetResolver(registrationRepo, eventService)
	paymentService := service.NewPaymentService(paymentRepo, targets, cfg.Currency, ledgerOpts)
	ticketService := service.NewTicketService(ticketRepo, ledgerOpts)

	publisher, consumerQueue, closePublisher := buildNotificationSink(ctx, cfg.Notify, rdb, log)
	defer closePublisher()
	gateway := notify.NewGateway(publisher, cfg.Notify.Timeout)

	lifecycle := service.NewLifecycleService(eventService, registrationService, paymentService, ticketService, gateway, cfg.Sweep.Batch)

	if consumerQueue != nil {
		var deliverer worker.Deliverer = notify.NewLogDeliverer()
		if cfg.Notify.WebhookURL != "" {
			deliverer = notify.NewWebhookDeliverer(cfg.Notify.WebhookURL, cfg.Notify.Timeout)
		}
		notificationWorker := worker.NewNotificationWorker(consumerQueue, deliverer, cfg.Notify.Timeout)
		go func() {
			if err := notificationWorker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Notification worker stopped", zap.Error(err))
			}
		}()
	}

	sweepWorker := worker.NewSweepWorker(lifecycle, cfg.Sweep.Interval)
	go func() {
		if err := sweepWorker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Sweep worker stopped", zap.Error(err))
		}
	}()

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(logger.WithComponent("http")), middleware.Metrics())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handler.NewHealthHandler(map[string]handler.HealthCheck{
		"postgres": pool.Ping,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}, 0).RegisterRoutes(router)

	api := router.Group("/api/v1", middleware.Auth(middleware.NewTokenVerifier(cfg.Auth)))
	idempotent := middleware.Idempotency(rdb, middleware.DefaultIdempotencyConfig(), logger.WithComponent("idempotency"))

	handler.NewEventHandler(eventService).RegisterRoutes(api)
	handler.NewRegistrationHandler(lifecycle, registrationService).RegisterRoutes(api, idempotent)
	handler.NewPaymentHandler(lifecycle, paymentService).RegisterRoutes(api, idempotent)
	handler.NewTicketHandler(lifecycle, ticketService).RegisterRoutes(api)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
	gateway.Wait()
}

// buildNotificationSink returns the publisher for the gateway and, for sinks this process also drains,
// the queue the notification worker consumes. The kafka sink is drained by a separate consumer.
func buildNotificationSink(ctx context.Context, cfg config.NotifyConfig, rdb *redis.Client, log *zap.Logger) (queue.NotificationPublisher, queue.NotificationQueue, func()) {
	switch cfg.Sink {
	case config.NotifySinkKafka:
		publisher, err := queue.NewKafkaNotificationPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Fatal("Failed to initialize kafka publisher", zap.Error(err))
		}
		return publisher, nil, publisher.Close
	case config.NotifySinkMemory:
		q := queue.NewNotificationQueue(1000)
		return q, q, func() {}
	default:
		hostname, _ := os.Hostname()
		q, err := queue.NewRedisStreamNotificationQueue(ctx, rdb, hostname, nil)
		if err != nil {
			log.Fatal("Failed to initialize notification stream", zap.Error(err))
		}
		return q, q, func() {}
	}
}
