package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"fanpage-server/internal/config"
	"fanpage-server/internal/pkg"
	"fanpage-server/internal/repository/redis"
	"fanpage-server/internal/repository/store"
	"fanpage-server/internal/router"
	"fanpage-server/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	logger := pkg.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer store.Close(db)

	// 自动建表
	if err := store.Migrate(db); err != nil {
		return err
	}

	issuer := pkg.NewTokenIssuer(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)
	auth := service.NewAuthService(db)

	// redis 可选：没有配置时不做单点登录校验，计数直接读库
	var (
		tokens service.TokenStore
		cache  service.LikeCache
		lock   service.Locker
	)
	if cfg.RedisAddr != "" {
		rdb, err := redis.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		tokens = redis.NewTokenRepository(rdb, cfg.AccessTTL)
		cache = redis.NewLikeCacheRepository(rdb)
		lock = &redis.DistLock{RDB: rdb}
		logger.Info("redis connected", "addr", cfg.RedisAddr)
	}

	sender := service.LogSender(logger)
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := pkg.NewKafkaProducer(pkg.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic})
		if err != nil {
			return err
		}
		defer producer.Close()
		sender = service.KafkaSender(producer)
		logger.Info("kafka producer ready", "brokers", cfg.KafkaBrokers, "topic", producer.Topic())
	}

	go service.NewOutboxRelayer(db, sender, cfg.OutboxInterval, logger).Run(ctx)
	go service.NewLikeCountReconciler(db, cache, cfg.ReconcileInterval, logger).ReconcilerRun(ctx)

	gin.SetMode(gin.ReleaseMode)
	engine := router.InitRouter(router.Deps{
		DB:     db,
		Logger: logger,
		Issuer: issuer,
		Auth:   auth,
		Users: service.NewUserService(db, service.UserServiceOptions{
			Issuer:               issuer,
			Tokens:               tokens,
			OpenRoleRegistration: cfg.OpenRoleRegistration,
			Logger:               logger,
		}),
		Posts:             service.NewPostService(db, auth, cache, logger),
		Comments:          service.NewCommentService(db, auth),
		Likes:             service.NewLikeService(db, auth, cache, lock, logger),
		Tokens:            tokens,
		TrustBodyIdentity: cfg.TrustBodyIdentity,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr, "db", cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
