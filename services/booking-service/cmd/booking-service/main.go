package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/agendly/agendly/libs/auth"
	"github.com/agendly/agendly/libs/config"
	"github.com/agendly/agendly/libs/db"
	"github.com/agendly/agendly/libs/grpcx"
	"github.com/agendly/agendly/libs/httpx"
	"github.com/agendly/agendly/libs/kafkax"
	otelx "github.com/agendly/agendly/libs/otel"
	"github.com/agendly/agendly/libs/runtime"
	"github.com/agendly/agendly/services/booking-service/internal/booking"
	"github.com/agendly/agendly/services/booking-service/internal/consumer"
	"github.com/agendly/agendly/services/booking-service/internal/handlers"
	"github.com/agendly/agendly/services/booking-service/internal/metrics"
	"github.com/agendly/agendly/services/booking-service/internal/model"
	"github.com/agendly/agendly/services/booking-service/internal/outbox"
	"github.com/agendly/agendly/services/booking-service/internal/profilecache"
	"github.com/agendly/agendly/services/booking-service/internal/storage"
	"github.com/agendly/agendly/services/booking-service/internal/upgrade"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9093")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{
		MaxConns: int32(config.Int("DB_MAX_CONNS", 10, 1)),
		MinConns: int32(config.Int("DB_MIN_CONNS", 1, 0)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	loc, err := time.LoadLocation(config.String("BOOKING_TIMEZONE", "UTC"))
	if err != nil {
		logger.Error("invalid BOOKING_TIMEZONE", "err", err)
		panic(err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bookingMetrics := metrics.NewBookingMetrics(reg)

	redisDeps := openRedis(ctx, logger, config.String("REDIS_URL", ""))
	defer redisDeps.Close()

	repo := storage.NewRepository(pool)
	svc := booking.NewService(booking.NewPostgresStore(repo), redisDeps.locker, bookingMetrics, logger, booking.Config{
		HorizonDays: config.Int("BOOKING_HORIZON_DAYS", 14, 1),
		LockTTL:     config.Duration("BOOKING_LOCK_TTL", 10*time.Second),
		Location:    loc,
	})

	profiles := profilecache.New[string, model.Professional](config.Duration("PROFILE_CACHE_TTL", 5*time.Minute), nil)
	go purgeLoop(ctx, profiles, time.Minute)

	linker := upgrade.NewStripeLinker(upgrade.StripeConfig{
		SecretKey:  config.String("STRIPE_SECRET_KEY", ""),
		PriceID:    config.String("STRIPE_PRO_PRICE_ID", ""),
		SuccessURL: config.String("STRIPE_SUCCESS_URL", ""),
		CancelURL:  config.String("STRIPE_CANCEL_URL", ""),
	})
	if !linker.Enabled() {
		logger.Warn("stripe upgrade links disabled (missing STRIPE_* configuration)")
	}

	brokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50, 1),
	})
	go outboxPublisher.Run(ctx)

	if len(kafkax.SplitBrokers(brokers)) > 0 {
		reader := consumer.NewReader(consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "booking-service"),
		})
		go consumer.New(reader, consumer.NewPostgresStore(repo), logger, bookingMetrics).Run(ctx)
	} else {
		logger.Warn("entitlement consumer disabled (no kafka brokers configured)")
	}

	verifier, err := newVerifier()
	if err != nil {
		panic(err)
	}

	grpcServer, healthServer := grpcx.NewServer(logger)
	grpcLis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		logger.Error("grpc listen failed", "err", err)
		panic(err)
	}
	go func() {
		logger.Info("grpc server starting", "addr", grpcLis.Addr().String())
		if err := grpcServer.Serve(grpcLis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()
	healthServer.SetServingStatus(service, healthpb.HealthCheckResponse_SERVING)

	checks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Optional: true, Check: kafkax.ReadyCheck(brokers, consumer.EventSubscriptionActivated, consumer.EventSubscriptionCanceled)},
	}
	selfConn, err := grpcx.Dial(ctx, "127.0.0.1:"+grpcPort, grpcx.DialOptions{Timeout: 2 * time.Second})
	if err != nil {
		logger.Warn("grpc self-check dial failed", "err", err)
	} else {
		defer selfConn.Close()
		checks = append(checks, runtime.ReadyCheck{Name: "grpc", Optional: true, Check: grpcx.HealthReadyCheck(selfConn, service)})
	}
	if redisDeps.ready != nil {
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Optional: true, Check: redisDeps.ready})
	}
	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	bookingHandler := handlers.NewBookingHandler(svc, profilecache.NewResolver(repo, profiles), linker, logger)
	bookingHandler.Register(mux, auth.RequireBearer(verifier))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id"},
			ExposedHeaders: []string{"X-Request-Id", "Retry-After"},
			MaxAge:         10 * time.Minute,
		}),
		redisDeps.rateLimit(logger,
			config.Int("RATE_LIMIT_REQUESTS", 120, 1),
			config.Duration("RATE_LIMIT_WINDOW", time.Minute),
			config.Bool("RATE_LIMIT_FAIL_OPEN", true),
		),
		httpx.WithBodyLimit(int64(config.Int("HTTP_BODY_LIMIT_BYTES", 1<<20, 1024))),
		httpx.WithTimeout(config.Duration("HTTP_HANDLER_TIMEOUT", 15*time.Second)),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	grpcServer.GracefulStop()
	logger.Info("servers stopped")
}

func purgeLoop(ctx context.Context, cache *profilecache.Cache[string, model.Professional], every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cache.Purge()
		}
	}
}
