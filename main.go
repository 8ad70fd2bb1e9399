package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"chat-sync/internal/api"
	"chat-sync/internal/config"
	"chat-sync/internal/credentials"
	"chat-sync/internal/db"
	"chat-sync/internal/dispatcher"
	"chat-sync/internal/engine"
	"chat-sync/internal/handlers"
	"chat-sync/internal/logger"
	"chat-sync/internal/middleware"
	"chat-sync/internal/observability"
	"chat-sync/internal/rabbitmq"
	"chat-sync/internal/repositories"
	"chat-sync/internal/session"
	"chat-sync/internal/telemetry"
	"chat-sync/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal("chat-sync stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, zl *zap.Logger) error {
	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, zl)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	zl.Info("notification mirror",
		zap.String("mode", rabbitmq.PublisherMode(publisher)),
		zap.String("noop_reason", rabbitmq.PublisherNoopReason(publisher)))

	store, err := openCredentialStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	provider := credentials.NewProvider(store)
	creds, err := provider.Credentials(ctx)
	if err != nil {
		return fmt.Errorf("no usable credential, set CHAT_TOKEN or sign in: %w", err)
	}

	database, err := db.Connect(cfg.Cache.Driver, cfg.Cache.DSN, zl)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer database.Close()

	client := api.NewClient(cfg.ServerURL, provider, zl)
	manager := ws.NewManager(cfg.WebSocket(creds.UserID), provider, cfg.ReconnectPolicy(), zl)
	eng := engine.New(creds.UserID, zl)
	disp := dispatcher.New(manager, client, eng, cfg.Limits, creds.UserID, zl)
	emitter := telemetry.NewNotificationEmitter(publisher, cfg.AMQP.RoutingKey, cfg.Service, cfg.Env, zl)

	sess := session.New(session.Deps{
		API:         client,
		Streams:     manager,
		Engine:      eng,
		Chats:       repositories.NewChatRepo(database),
		Messages:    repositories.NewMessageRepo(database),
		Notifier:    emitter,
		Credentials: store,
		Logger:      zl,
		PageSize:    cfg.PageSize,
	})
	defer sess.Close()

	if err := sess.Start(ctx); err != nil {
		if errors.Is(err, credentials.ErrUnauthorized) {
			return err
		}
		zl.Warn("session started degraded", zap.String("kind", api.Classify(err).String()), zap.Error(err))
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Service))
	router.Use(observability.HTTPMetricsMiddleware())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.Register(router,
		handlers.NewChatHandler(sess, eng, disp, zl),
		handlers.NewGroupHandler(disp, zl),
		handlers.NewEventsHandler(sess, eng, zl),
		middleware.AuthMiddleware(provider),
	)
	handlers.RegisterDebugRoutes(router, emitter, cfg.Env != "production")

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		zl.Info("control api listening", zap.String("addr", cfg.ListenAddr), zap.Int("user_id", creds.UserID))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	zl.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func openCredentialStore(ctx context.Context, cfg config.Config) (credentials.Store, error) {
	var store credentials.Store
	switch cfg.Credentials.Store {
	case "redis":
		rs, err := credentials.NewRedisStore(ctx, cfg.Credentials.RedisURL, cfg.Credentials.RedisKey)
		if err != nil {
			return nil, fmt.Errorf("credential store: %w", err)
		}
		store = rs
	default:
		store = credentials.NewMemoryStore(credentials.Credentials{})
	}

	if cfg.Credentials.Token == "" {
		return store, nil
	}
	creds, err := credentials.FromToken(cfg.Credentials.Token)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("CHAT_TOKEN: %w", err)
	}
	if err := store.Save(ctx, creds); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("save credential: %w", err)
	}
	return store, nil
}
