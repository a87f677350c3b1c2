// Command authzd runs the platform authorization service: service
// token issuance plus single and batch permission checks over HTTP.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"authcore/audit"
	"authcore/config"
	"authcore/engine"
	"authcore/httpapi"
	"authcore/logging"
	"authcore/metrics"
	"authcore/policy"
	"authcore/policy/gormsource"
	"authcore/revocation"
	"authcore/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Service registry
	registry := token.NewMemoryRegistry()
	for _, svc := range cfg.Services {
		if err := registry.Register(svc.ID, svc.Secret); err != nil {
			logger.Fatal("Failed to register service", zap.String("service_id", svc.ID), zap.Error(err))
		}
	}
	if len(cfg.Services) == 0 {
		logger.Warn("no services registered; token issuance will reject every caller")
	}

	// Token service, with the redis denylist when configured
	tokenOpts := []token.Option{token.WithLogger(logger)}
	if cfg.Redis.Addr != "" {
		denylist, err := revocation.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to initialize redis denylist", zap.Error(err))
		}
		if err := denylist.Ping(ctx); err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer denylist.Close()
		tokenOpts = append(tokenOpts, token.WithDenylist(denylist))
	}

	tokens, err := token.NewService(token.Config{
		SecretKey:  cfg.Token.SecretKey,
		PrivateKey: cfg.Token.PrivateKey,
		PublicKey:  cfg.Token.PublicKey,
		Algorithm:  token.Algorithm(cfg.Token.Algorithm),
		Issuer:     cfg.Token.Issuer,
		Audience:   cfg.Token.Audience,
		TokenTTL:   cfg.Token.TTL,
		ClockSkew:  cfg.Token.ClockSkew,
	}, registry, tokenOpts...)
	if err != nil {
		logger.Fatal("Failed to initialize token service", zap.Error(err))
	}

	// Policy store, loaded from postgres when configured
	storeOpts := []policy.StoreOption{policy.WithLogger(logger)}
	var store *policy.Store
	if cfg.Postgres.DSN != "" {
		source, err := gormsource.Open(cfg.Postgres.DSN)
		if err != nil {
			logger.Fatal("Failed to open policy database", zap.Error(err))
		}
		if err := source.Migrate(); err != nil {
			logger.Fatal("Failed to migrate policy tables", zap.Error(err))
		}
		store = policy.NewStore(nil, append(storeOpts, policy.WithSource(source))...)
		if err := store.Reload(ctx); err != nil {
			logger.Fatal("Failed to load policy snapshot", zap.Error(err))
		}
	} else {
		logger.Warn("no policy database configured; starting with an empty rule set")
		store = policy.NewStore(policy.NewSnapshot("empty", nil), storeOpts...)
	}

	recorder := metrics.NewRecorder(prometheus.DefaultRegisterer)

	svc, err := engine.New(engine.Options{
		Tokens:  tokens,
		Store:   store,
		Audit:   audit.NewZapEmitter(logger),
		Metrics: recorder,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("Failed to assemble service", zap.Error(err))
	}

	// Reload the policy snapshot on SIGHUP.
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	go func() {
		for range reload {
			if err := store.Reload(ctx); err != nil {
				logger.Error("Policy reload failed", zap.Error(err))
			}
		}
	}()

	// Set up the HTTP surface
	gin.SetMode(gin.ReleaseMode)
	api := httpapi.NewServer(svc, httpapi.Options{Logger: logger})
	router := api.Router(httpapi.Options{
		Logger:     logger,
		Middleware: []gin.HandlerFunc{httpapi.RequestLogger(logger)},
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Info("authzd listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Forced shutdown", zap.Error(err))
	}
}
