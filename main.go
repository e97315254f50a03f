package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"geofriends/config"
	"geofriends/db"
	"geofriends/gql"
	"geofriends/handlers"
	"geofriends/logging"
	"geofriends/middleware"
	"geofriends/services"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	middleware.SetErrorLogger(logger)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Mongo
	connector := db.NewConnector(cfg.MongoURI, logger)
	client, err := connector.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = connector.Close(closeCtx)
	}()

	database := client.Database(cfg.DBName)
	if err := db.EnsureIndexes(ctx, database); err != nil {
		return err
	}

	// Redis is optional; without it friends are read straight from Mongo
	var cache services.FriendCache = services.NoopFriendCache{}
	if cfg.UseRedisCache() {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, friend cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			cache = services.NewRedisFriendCache(rdb, cfg.CacheTTL, logger)
			logger.Info("friend cache enabled", zap.String("addr", cfg.RedisAddr))
		}
	}

	friendService := services.NewFriendService(database, services.NewPasswordHasher(cfg.BcryptCost), cache, logger)
	positionService := services.NewPositionService(database, friendService, logger)

	// Interface values stay nil when there is no secret, so bearer tokens are
	// neither issued nor accepted.
	var (
		issuer handlers.TokenIssuer
		parser middleware.TokenParser
	)
	if cfg.JWTSecret != "" {
		tokens := services.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
		issuer, parser = tokens, tokens
	}

	if cfg.SkipAuthentication {
		logger.Warn("SKIP_AUTHENTICATION is set, every endpoint is open")
	}

	schema, err := gql.NewSchema(friendService, positionService, logger, cfg.SkipAuthentication)
	if err != nil {
		return err
	}

	// Failed Basic checks on any route are throttled like logins.
	auth := middleware.NewAuthenticator(friendService, parser, logger).
		LimitFailures(middleware.NewIPRateLimiter(cfg.LoginRatePerSec, cfg.LoginBurst))

	router := handlers.NewRouter(handlers.RouterConfig{
		Friends:        friendService,
		Positions:      positionService,
		Tokens:         issuer,
		Auth:           auth,
		GraphQL:        gql.NewHandler(schema, logger).WithGraphiQL(cfg.IsDevelopment()),
		LoginLimiter:   middleware.NewIPRateLimiter(cfg.LoginRatePerSec, cfg.LoginBurst),
		AllowedOrigins: cfg.AllowedOrigins,
		SkipAuth:       cfg.SkipAuthentication,
		Log:            logger,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
