package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/trackfleet/trackd/internal/auth"
	"github.com/trackfleet/trackd/internal/handlers"
	"github.com/trackfleet/trackd/internal/ingest"
	"github.com/trackfleet/trackd/internal/service"
	"github.com/trackfleet/trackd/internal/store"
	"github.com/trackfleet/trackd/internal/store/memstore"
	"github.com/trackfleet/trackd/internal/store/mongostore"
)

func openStore(ctx context.Context) (store.Store, func(), error) {
	if os.Getenv("STORE") == "memory" {
		log.Info("Using in-memory store")
		return memstore.New(), func() {}, nil
	}
	client, err := mongostore.Connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			log.WithError(err).Warn("MongoDB disconnect failed")
		}
	}
	log.Info("Connected to MongoDB successfully")
	return mongostore.New(client, os.Getenv("MONGO_DB")), closeFn, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using environment variables")
	}

	if level, err := log.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(level)
	}
	log.SetFormatter(&log.JSONFormatter{})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx)
	if err != nil {
		log.WithError(err).Fatal("Failed to open store")
	}
	defer closeStore()

	var opts []service.Option
	if dir := os.Getenv("TRACKER_LOG_DIR"); dir != "" {
		opts = append(opts, service.WithLogDir(dir))
	}
	svc := service.New(st, opts...)

	tokens, err := auth.NewTokenService()
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize token service")
	}

	if broker := os.Getenv("MQTT_BROKER"); broker != "" {
		topic := os.Getenv("MQTT_TOPIC")
		if topic == "" {
			topic = "trackd/positions"
		}
		sub := ingest.NewSubscriber(svc, broker, topic)
		if err := sub.Start(ctx); err != nil {
			log.WithError(err).Fatal("Failed to start telemetry ingest")
		}
		defer sub.Stop()
	}

	router := handlers.NewRouter(svc, tokens)

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	log.WithField("addr", addr).Info("HTTP server listening")
	if err := router.Run(addr); err != nil {
		log.WithError(err).Fatal("HTTP server failed")
	}
}
