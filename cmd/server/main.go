package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matthewbaird/gridedit/internal/activity"
	"github.com/matthewbaird/gridedit/internal/adminapi"
	"github.com/matthewbaird/gridedit/internal/bulkedit"
	"github.com/matthewbaird/gridedit/internal/config"
	"github.com/matthewbaird/gridedit/internal/contenttype"
	"github.com/matthewbaird/gridedit/internal/event"
	"github.com/matthewbaird/gridedit/internal/eventbus"
	"github.com/matthewbaird/gridedit/internal/logger"
	"github.com/matthewbaird/gridedit/internal/seed"
	"github.com/matthewbaird/gridedit/internal/server"
	"github.com/matthewbaird/gridedit/internal/session"
	"github.com/matthewbaird/gridedit/internal/store"
	"github.com/matthewbaird/gridedit/internal/wire"
	"github.com/matthewbaird/gridedit/internal/worker"
)

func main() {
	log, err := logger.New(config.GetEnv("LOG_MODE", "development", nil))
	if err != nil {
		fmt.Fprintf(os.Stderr, "building logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("server error", "error", err)
	}
}

func run(log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load(log)

	reg, err := loadRegistry(cfg.SchemaFile)
	if err != nil {
		return err
	}
	log.Info("content types loaded", "content_types", reg.Names())

	st, err := store.Open(ctx, cfg.DatabaseURL, reg, log)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	acts, err := activity.Open(ctx, cfg.DatabaseURL, st.DB())
	if err != nil {
		return err
	}

	sessions := session.NewManager(cfg.SessionMaxAge, cfg.SessionIdle, log)
	go sessions.Run(ctx, time.Minute)

	bus := eventbus.New(cfg.EventBuffer, log)
	bus.Subscribe("log", eventbus.NewLogConsumer(log))
	bus.Subscribe("stale_sessions", worker.NewStaleSessionWorker(sessions, log))
	bus.Start(ctx)
	defer bus.Stop()

	recorder := event.NewActivityRecorder(acts)
	recorder.SetPublisher(bus)
	svc := bulkedit.NewService(st, reg, recorder, log)

	if cfg.SeedDemo {
		if err := seed.SeedDemo(ctx, st, log); err != nil {
			return fmt.Errorf("seeding demo data: %w", err)
		}
	}

	var backend wire.Backend = wire.NewLocal(reg, st, svc)
	if cfg.AdminURL != "" {
		client, err := adminapi.New(log, adminapi.Config{BaseURL: cfg.AdminURL, Token: cfg.AdminToken, MaxRetries: 3})
		if err != nil {
			return err
		}
		backend = client
		log.Info("editor sessions use remote admin API", "url", cfg.AdminURL)
	}

	return server.Run(ctx, server.Config{
		Port:     cfg.Port,
		Registry: reg,
		Docs:     st,
		Bulk:     svc,
		Activity: acts,
		Sessions: sessions,
		Editor:   backend,
		Log:      log,
	})
}

func loadRegistry(path string) (*contenttype.Registry, error) {
	if path == "" {
		return contenttype.Default()
	}
	return contenttype.LoadFile(path)
}
