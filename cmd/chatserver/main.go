package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sala/chat-api/internal/config"
	"github.com/sala/chat-api/internal/events"
	"github.com/sala/chat-api/internal/httpapi"
	"github.com/sala/chat-api/internal/message"
	"github.com/sala/chat-api/internal/presence"
	"github.com/sala/chat-api/internal/store"
	"github.com/sala/chat-api/internal/store/memstore"
	"github.com/sala/chat-api/internal/store/pgstore"
	"github.com/sala/chat-api/internal/store/redisstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}
	log := logrus.WithField("service", "chatserver")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Stores ---
	var (
		participants store.ParticipantStore
		messages     store.MessageStore
	)
	switch cfg.StoreBackend {
	case config.BackendMemory:
		participants = memstore.NewParticipants()
		messages = memstore.NewMessages()
		log.Warn("using in-memory stores, state is lost on restart")
	default:
		rs, err := redisstore.NewParticipants(cfg.RedisAddr)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to Redis")
		}
		defer rs.Close()

		ps, err := pgstore.NewMessages(cfg.PostgresDSN)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to Postgres")
		}
		defer ps.Close()

		participants = rs
		messages = ps
	}

	// --- Events (optional) ---
	var pub events.Publisher = events.Nop{}
	if cfg.NATSURL != "" {
		natsConfig := events.DefaultConfig()
		natsConfig.URL = cfg.NATSURL
		np, err := events.NewNATSPublisher(natsConfig, logrus.WithField("service", "events"))
		if err != nil {
			log.WithError(err).Fatal("failed to connect to NATS")
		}
		defer np.Close()
		pub = np
	}

	// --- Services ---
	presenceSvc := presence.NewService(participants, messages, pub, logrus.WithField("service", "presence"))
	messageSvc := message.NewService(participants, messages, pub, logrus.WithField("service", "message"))

	go presence.RunSweeper(ctx, presenceSvc, cfg.SweepInterval, cfg.EvictThreshold, logrus.WithField("service", "sweeper"))

	// --- HTTP ---
	router := httpapi.NewRouter(presenceSvc, messageSvc, httpapi.Options{
		AllowedOrigins: cfg.CORSOrigins,
		Log:            logrus.WithField("service", "httpapi"),
	})
	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.WithFields(logrus.Fields{
		"listen_addr":     cfg.ListenAddr,
		"store_backend":   cfg.StoreBackend,
		"evict_threshold": cfg.EvictThreshold,
		"sweep_interval":  cfg.SweepInterval,
		"nats":            cfg.NATSURL != "",
	}).Info("chat server starting")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("shutdown error")
		}
	}
}
