package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ShopAPI/cache"
	"ShopAPI/config"
	"ShopAPI/database"
	"ShopAPI/events"
	"ShopAPI/handlers"
	"ShopAPI/imagestore"
	"ShopAPI/jwt"
	"ShopAPI/logger"
	"ShopAPI/mailer"
	"ShopAPI/routers"
	"ShopAPI/store"
)

// @title Shop API
// @version 1.0
// @description E-commerce backend: catalog with reviews, users and orders.

// @BasePath /api

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the token.

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "無法讀取設定: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
}

func newImageStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (imagestore.Store, error) {
	if cfg.Minio.Endpoint == "" {
		log.Info().Str("dir", cfg.Server.UploadDir).Msg("storing images on local disk")
		return imagestore.NewLocal(cfg.Server.UploadDir), nil
	}
	log.Info().Str("endpoint", cfg.Minio.Endpoint).Str("bucket", cfg.Minio.Bucket).Msg("storing images in minio")
	return imagestore.NewMinio(ctx, imagestore.MinioConfig{
		Endpoint:  cfg.Minio.Endpoint,
		AccessKey: cfg.Minio.AccessKey,
		SecretKey: cfg.Minio.SecretKey,
		Bucket:    cfg.Minio.Bucket,
		PublicURL: cfg.Minio.PublicURL,
	})
}

func newPublisher(cfg config.Config, log zerolog.Logger) events.Publisher {
	if len(cfg.Kafka.Brokers) == 0 {
		return events.LogPublisher{Logger: log}
	}
	log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.OrderTopic).Msg("publishing order events to kafka")
	return events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.OrderTopic, log)
}

func run(cfg config.Config, log zerolog.Logger) error {
	// 設置訊號監聽
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	//連線成功之前不啟動服務
	var db store.Store
	rdb, redisTarget := config.SetupRedisConnection(cfg.Redis)
	connector := database.NewConnector(cfg.Database.ConnectRetries, cfg.Database.ConnectDelay, log)
	connector.MustConnect(ctx, config.SetupStoreConnection(cfg.Database, &db), redisTarget)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Close(closeCtx); err != nil {
			log.Error().Err(err).Msg("無法關閉資料庫連線")
		}
		_ = rdb.Close()
	}()

	if cfg.Admin.Email != "" {
		admin, created, err := store.EnsureAdmin(ctx, db, cfg.Admin.Name, cfg.Admin.Email, cfg.Admin.Password)
		if err != nil {
			return fmt.Errorf("ensure admin: %w", err)
		}
		log.Info().Str("email", admin.Email).Bool("created", created).Msg("admin account ready")
	}

	privateKey, publicKey, ephemeral, err := jwt.LoadKeys(cfg.JWT.PrivateKeyPath, cfg.JWT.PublicKeyPath)
	if err != nil {
		return err
	}
	if ephemeral {
		log.Warn().Msg("JWT key paths not set, using an ephemeral key pair; tokens will not survive a restart")
	}

	images, err := newImageStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("image store: %w", err)
	}
	publisher := newPublisher(cfg, log)
	defer publisher.Close()

	if cfg.Log.Format == "json" {
		gin.SetMode(gin.ReleaseMode)
	}

	h := &handlers.Handler{
		Store:    db,
		Products: cache.NewProductCache(rdb),
		Resets:   cache.NewResetTokens(rdb),
		Tokens:   jwt.NewManager(privateKey, publicKey, cfg.JWT.TTL, cache.NewSessions(rdb)),
		Images:   images,
		Events:   publisher,
		Mailer: mailer.New(mailer.Config{
			Enabled:  cfg.SMTP.Enabled,
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}, log),
		Redis:     handlers.RedisPinger(rdb),
		Logger:    log,
		ClientURL: cfg.Server.ClientURL,
	}
	router := routers.SetupRouters(h, routers.Options{
		Origins:   cfg.CORSOrigins(),
		UploadDir: cfg.Server.UploadDir,
		StaticDir: cfg.Server.StaticDir,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Info().Msg("closed completed")
	return nil
}
