package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agendly/agendly/libs/auth"
	"github.com/agendly/agendly/libs/config"
	"github.com/agendly/agendly/libs/httpx"
	"github.com/agendly/agendly/services/booking-service/internal/booking"
	"github.com/agendly/agendly/services/booking-service/internal/slotlock"
)

// redisDeps holds everything backed by REDIS_URL. Without it slot holds are
// skipped and rate limiting stays in process.
type redisDeps struct {
	client *redis.Client
	locker booking.Locker
	ready  func(context.Context) error
}

func openRedis(ctx context.Context, logger *slog.Logger, url string) *redisDeps {
	url = strings.TrimSpace(url)
	if url == "" {
		logger.Warn("redis disabled (REDIS_URL not set); using in-memory rate limiting")
		return &redisDeps{locker: slotlock.Noop{}}
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.Error("invalid REDIS_URL", "err", err)
		panic(err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis not reachable yet", "err", err)
	}
	return &redisDeps{
		client: client,
		locker: slotlock.NewRedisLocker(client, config.String("SLOT_LOCK_PREFIX", "slotlock")),
		ready:  func(ctx context.Context) error { return client.Ping(ctx).Err() },
	}
}

func (d *redisDeps) rateLimit(logger *slog.Logger, limit int, window time.Duration, failOpen bool) httpx.Middleware {
	if d.client == nil {
		return httpx.NewRateLimiter(limit, window).Middleware()
	}
	return httpx.NewRedisRateLimiter(d.client, limit, window, config.String("RATE_LIMIT_PREFIX", "rl")).Middleware(logger, failOpen)
}

func (d *redisDeps) Close() {
	if d.client != nil {
		_ = d.client.Close()
	}
}

func newVerifier() (auth.Verifier, error) {
	v := auth.Verifier{
		Secret:   []byte(config.String("AUTH_JWT_SECRET", "")),
		Issuer:   config.String("AUTH_ISSUER", ""),
		Audience: config.String("AUTH_AUDIENCE", ""),
		Leeway:   config.Duration("AUTH_LEEWAY", 30*time.Second),
	}
	if jwksURL := config.String("AUTH_JWKS_URL", ""); jwksURL != "" {
		v.Keys = auth.NewJWKSClient(jwksURL, config.Duration("AUTH_JWKS_TTL", 10*time.Minute))
	}
	if len(v.Secret) == 0 && v.Keys == nil {
		return auth.Verifier{}, errMissingAuthConfig
	}
	return v, nil
}

var errMissingAuthConfig = errors.New("set AUTH_JWT_SECRET or AUTH_JWKS_URL")
