package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"gendesk/internal/autoreply"
	"gendesk/internal/config"
	"gendesk/internal/hub"
	"gendesk/internal/notify"
	"gendesk/internal/registry"
	"gendesk/internal/server"
	"gendesk/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.JSONFormatter{})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store.Store
	switch cfg.StoreBackend {
	case "redis":
		st, err = store.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		st, err = store.NewFileStore(cfg.StorePath)
	}
	if err != nil {
		log.WithError(err).Fatal("failed to open session store")
	}
	defer st.Close()

	var sinks []notify.Sink
	if len(cfg.KafkaBrokers) > 0 {
		sink, err := notify.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.WithError(err).Fatal("failed to connect kafka sink")
		}
		defer sink.Close()
		sinks = append(sinks, sink)
		log.WithField("topic", cfg.KafkaTopic).Info("kafka notification sink enabled")
	}
	emitter := notify.NewEmitter(sinks...)

	reg := registry.New(st, emitter, cfg.DeliveryDelay)
	if err := reg.Hydrate(ctx); err != nil {
		log.WithError(err).Fatal("failed to hydrate session registry")
	}

	h := hub.NewHub()
	go h.Run(ctx)

	var ai *autoreply.AIResponder
	if cfg.OpenAIKey != "" {
		ai = autoreply.NewAIResponder(cfg.OpenAIKey)
		log.Info("ai auto-responder enabled")
	}
	responder := autoreply.New(reg, h, ai, cfg.WelcomeDelay, cfg.TypingDelayMin, cfg.TypingDelayMax)

	srv := server.New(reg, h, emitter, responder)
	go func() {
		if err := srv.Start(ctx, cfg.Addr); err != nil {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown failed")
	}
}
