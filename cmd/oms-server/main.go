package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/multibroker/oms/internal/account"
	"github.com/multibroker/oms/internal/broker/mastertrust"
	"github.com/multibroker/oms/internal/command"
	"github.com/multibroker/oms/internal/config"
	"github.com/multibroker/oms/internal/dispatch"
	"github.com/multibroker/oms/internal/logger"
	"github.com/multibroker/oms/internal/registry"
	"github.com/multibroker/oms/internal/server"
)

const _cfgFilePath = "./configs/config.yaml"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("can't detect .env file")
	}

	cfg, err := config.LoadConfig(_cfgFilePath)
	if err != nil {
		log.Fatalf("%s: can't load cfg", err)
	}

	zapLogger, loggerSync, err := logger.NewZapLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("%s: can't init logger", err)
	}
	defer loggerSync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	accountCfgs, err := config.LoadAccounts(cfg.AccountsFile)
	if err != nil {
		zapLogger.Fatalf("%s: can't load accounts", err)
	}

	shortcuts := command.DefaultShortcuts()
	if cfg.ShortcutsFile != "" {
		shortcuts, err = command.LoadShortcuts(cfg.ShortcutsFile)
		if err != nil {
			zapLogger.Fatalf("%s: can't load shortcuts", err)
		}
	}

	// An account that fails to authenticate is dropped, not fatal: the
	// rest of the pool keeps trading without it.
	var accounts []*account.Account
	for _, accCfg := range accountCfgs {
		gw := mastertrust.NewClient(mastertrust.Config{
			BaseURL:  cfg.Broker.BaseURL,
			ClientID: accCfg.ClientID,
			Password: accCfg.Password,
			PIN:      accCfg.PIN,
			Secret:   accCfg.Secret,
			TokenDir: cfg.Broker.TokenDir,
		}, zapLogger)
		if err := gw.Authenticate(ctx); err != nil {
			zapLogger.Errorf("%s: can't authenticate %s, skipping", err, accCfg.ClientID)
			continue
		}
		accounts = append(accounts, account.New(accCfg, gw, zapLogger))
	}
	if len(accounts) == 0 {
		zapLogger.Fatalf("no accounts authenticated")
	}
	zapLogger.Infof("authenticated %d/%d accounts", len(accounts), len(accountCfgs))

	reg := registry.New(accounts)
	dispatcher := dispatch.NewDispatcher(reg, cfg.OrderWorkers, cfg.TaskTimeout, zapLogger)
	handler := server.NewHandler(dispatcher, reg, shortcuts, cfg.DefaultExchange, zapLogger)

	httpServer := server.NewHTTPServer(ctx, cfg.Port, handler.Router())
	zapLogger.Infof("listening on :%s", cfg.Port)
	if err := httpServer.Run(ctx); err != nil {
		zapLogger.Errorf("%s: server stopped", err)
	}
}
