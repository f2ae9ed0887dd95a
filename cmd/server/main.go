package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"bazhay.app/wishlist/internal/bootstrap"
	"bazhay.app/wishlist/internal/config"
	"bazhay.app/wishlist/internal/server"
	"bazhay.app/wishlist/pkg/database"
	"bazhay.app/wishlist/pkg/logger"
	"bazhay.app/wishlist/pkg/metrics"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog := logger.Must(cfg.LogLevel, cfg.AppEnv)
	defer func() { _ = zlog.Sync() }()
	zap.ReplaceGlobals(zlog)

	gormLevel := gormlogger.Warn
	if cfg.AppEnv == "development" {
		gormLevel = gormlogger.Info
	}
	db, err := database.Connect(database.Options{
		Driver:     cfg.DBDriver,
		DSN:        cfg.DatabaseURL,
		Host:       cfg.DBHost,
		User:       cfg.DBUser,
		Password:   cfg.DBPass,
		Name:       cfg.DBName,
		Port:       cfg.DBPort,
		SQLitePath: cfg.SQLitePath,
		LogLevel:   gormLevel,
	})
	if err != nil {
		zlog.Fatal("failed to connect database", zap.Error(err))
	}
	if err := bootstrap.Migrate(db); err != nil {
		zlog.Fatal("migration failed", zap.Error(err))
	}
	if cfg.AppEnv == "development" {
		if err := bootstrap.SeedDemo(db, zlog); err != nil {
			zlog.Fatal("failed to seed demo data", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := server.Deps{
		DB:      db,
		Metrics: metrics.New(),
		Log:     zlog,
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			zlog.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			zlog.Fatal("failed to connect redis", zap.Error(err))
		}
		defer client.Close()
		deps.Redis = client
	}

	if cfg.AMQPURL != "" {
		conn, err := amqp.Dial(cfg.AMQPURL)
		if err != nil {
			zlog.Fatal("failed to connect amqp", zap.Error(err))
		}
		defer conn.Close()
		ch, err := conn.Channel()
		if err != nil {
			zlog.Fatal("failed to open amqp channel", zap.Error(err))
		}
		defer ch.Close()
		deps.AMQPChannel = ch
	}

	srv, err := server.NewServer(cfg, deps)
	if err != nil {
		zlog.Fatal("failed to build server", zap.Error(err))
	}

	if err := srv.Run(ctx, ":"+cfg.Port); err != nil {
		zlog.Error("server exited with error", zap.Error(err))
	}
}
