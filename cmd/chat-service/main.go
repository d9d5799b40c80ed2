package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/spiritonline/DatingApp-sub002/internal/api"
	"github.com/spiritonline/DatingApp-sub002/internal/auth"
	"github.com/spiritonline/DatingApp-sub002/internal/cache"
	"github.com/spiritonline/DatingApp-sub002/internal/chat"
	"github.com/spiritonline/DatingApp-sub002/internal/config"
	"github.com/spiritonline/DatingApp-sub002/internal/events"
	"github.com/spiritonline/DatingApp-sub002/internal/logger"
	"github.com/spiritonline/DatingApp-sub002/internal/metrics"
	"github.com/spiritonline/DatingApp-sub002/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zl, err := logger.New(cfg.Development())
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	mc, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		zl.Fatalw("mongo connect", "err", err)
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()

	rdb, err := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		zl.Fatalw("redis connect", "err", err)
	}
	defer rdb.Close()

	var pub *events.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		pub = events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, zl)
		defer pub.Close()
	}

	st := store.NewMongo(mc, cfg.Mongo.DB, zl)
	svc := chat.NewService(st, rdb, pub, zl)
	channel := chat.NewChannel(st, zl)

	jv, err := auth.NewValidator(cfg.JWT.Secret)
	if err != nil {
		zl.Fatalw("jwt init", "err", err)
	}

	app := api.NewServer(svc, channel, jv, rdb, zl)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		addr := fmt.Sprintf(":%d", cfg.App.MetricsPort)
		if err := http.ListenAndServe(addr, mux); err != nil {
			zl.Errorw("metrics server", "err", err)
		}
	}()

	go func() {
		if err := app.Listen(fmt.Sprintf(":%d", cfg.App.Port)); err != nil {
			zl.Fatalw("server listen", "err", err)
		}
	}()
	zl.Infow("chat-service started", "port", cfg.App.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)
	zl.Infow("chat-service stopped")
}
