package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/hazeclub/drops-api/internal/app"
	"github.com/hazeclub/drops-api/internal/clock"
	"github.com/hazeclub/drops-api/internal/config"
	"github.com/hazeclub/drops-api/internal/flags"
	"github.com/hazeclub/drops-api/internal/notify"
	"github.com/hazeclub/drops-api/internal/storage/postgres"
	transporthttp "github.com/hazeclub/drops-api/internal/transport/http"
	"github.com/hazeclub/drops-api/migrations"
)

func main() {
	logger := log.Default()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Printf("WARN: load .env: %v", err)
	}
	cfg := config.Parse()

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect to db: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		log.Fatalf("db ping: %v", err)
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.AMQPURL != "" {
		amqpNotifier, err := notify.NewAMQPNotifier(cfg.AMQPURL, logger)
		if err != nil {
			log.Fatalf("connect to amqp: %v", err)
		}
		defer func() { _ = amqpNotifier.Close() }()
		notifier = amqpNotifier
	}

	var flagSrc flags.Source = flags.NewStatic(flags.Defaults())
	runCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = redisClient.Close() }()
		redisSrc := flags.NewRedisSource(redisClient, cfg.RedisFlagKey, clock.NewSystem(), logger)
		if err := redisSrc.Refresh(startupCtx); err != nil {
			logger.Printf("WARN: initial flag refresh: %v", err)
		}
		go redisSrc.Run(runCtx, cfg.FlagRefreshInterval)
		flagSrc = redisSrc
	}

	adminRepo := postgres.NewAdminRepository(pool)
	adminSvc := app.NewAdminService(adminRepo, clock.NewSystem())
	lifecycleRepo := postgres.NewLifecycleRepository(pool)
	lifecycleSvc := app.NewLifecycleService(lifecycleRepo, clock.NewSystem())
	storefrontSvc := app.NewStorefrontService(adminRepo, clock.NewSystem(),
		app.WithStorefrontQueueThreshold(cfg.QueueThreshold))

	queueRepo := postgres.NewQueueRepository(pool)
	queueSvc := app.NewQueueService(queueRepo, clock.NewSystem(), notifier,
		app.WithActiveSlots(cfg.ActiveSlots),
		app.WithPurchaseWindow(cfg.PurchaseWindow),
		app.WithQueueThreshold(cfg.QueueThreshold))

	inventoryRepo := postgres.NewInventoryRepository(pool)
	inventorySvc := app.NewInventoryService(inventoryRepo, clock.NewSystem(), notifier, queueSvc,
		app.WithReservationTTL(cfg.ReservationTTL),
		app.WithInventoryQueueThreshold(cfg.QueueThreshold))

	go runQueueSweep(runCtx, queueSvc, cfg.SweepInterval, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", transporthttp.HealthHandler)
	mux.Handle("/drops/", dispatchDrop(storefrontSvc, queueSvc, flagSrc))
	mux.Handle("/reservations", transporthttp.HandleCreateReservation(inventorySvc, flagSrc))
	mux.Handle("/reservations/", transporthttp.HandleReservation(inventorySvc, flagSrc))
	mux.Handle("/admin/drops", transporthttp.HandleAdminDrops(adminSvc))
	mux.Handle("/admin/drops/", transporthttp.HandleAdminDrop(adminSvc, lifecycleSvc))
	mux.Handle("/", transporthttp.NotFoundHandler())

	handler := transporthttp.RequestLogger(
		transporthttp.CORS(cfg.CORSOrigins,
			transporthttp.Authenticate([]byte(cfg.JWTSecret), mux)),
		logger,
	)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	log.Printf("api listening on :%s", cfg.Port)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
		}
	case <-stopCtx.Done():
		log.Printf("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("server shutdown error: %v", err)
	}
	log.Printf("server stopped")
}

// dispatchDrop routes /drops/{id} to the storefront handler and
// /drops/{id}/queue to the queue handler.
func dispatchDrop(storefront *app.StorefrontService, queue *app.QueueService, flagSrc flags.Source) http.Handler {
	dropHandler := transporthttp.HandleGetDrop(storefront, flagSrc)
	queueHandler := transporthttp.HandleQueue(queue)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/queue") {
			queueHandler.ServeHTTP(w, r)
			return
		}
		dropHandler.ServeHTTP(w, r)
	})
}

// runQueueSweep periodically expires lapsed turns and promotes waiters on
// gated drops. The sweep only bounds idle time; reads already treat lapsed
// entries as expired.
func runQueueSweep(ctx context.Context, queueSvc *app.QueueService, interval time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := queueSvc.Sweep(ctx); err != nil {
				logger.Printf("WARN: queue sweep: %v", err)
			}
		}
	}
}
