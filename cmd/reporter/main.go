package main

import (
	"cmp"
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/multibroker/oms/internal/logger"
	"github.com/multibroker/oms/internal/postgres"
	"github.com/multibroker/oms/internal/reports"
)

const (
	_serverURLDefault = "http://localhost:8181"
	_intervalDefault  = 15 * time.Second
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("can't detect .env file")
	}

	zapLogger, loggerSync, err := logger.NewZapLogger(os.Getenv("LOG_LEVEL"))
	if err != nil {
		log.Fatalf("%s: can't init logger", err)
	}
	defer loggerSync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pgConfig := postgres.NewConfigFromEnv().Setup()
	zapLogger.Debugf("trying to connect to db with: %s", pgConfig)
	db, err := postgres.NewDB(pgConfig)
	if err != nil {
		zapLogger.Fatalf("%s: can't connect to db", err)
	}
	defer db.Close()

	store := reports.NewStore(db)
	if err := store.InitSchema(ctx); err != nil {
		zapLogger.Fatalf("%s: can't init schema", err)
	}

	serverURL := cmp.Or(os.Getenv("OMS_SERVER_URL"), _serverURLDefault)
	interval := _intervalDefault
	if raw := os.Getenv("REPORT_INTERVAL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			zapLogger.Fatalf("%s: can't parse REPORT_INTERVAL", err)
		}
		interval = parsed
	}

	reporter := reports.NewReporter(serverURL, store, interval, zapLogger)
	zapLogger.Infof("polling %s every %s", serverURL, interval)
	if err := reporter.Run(ctx); err != nil && ctx.Err() == nil {
		zapLogger.Errorf("%s: reporter stopped", err)
	}
}
