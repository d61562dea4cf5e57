package main

import (
	"fmt"
	"os"

	"github.com/DRSN-tech/fashion-search/internal/app"
	config "github.com/DRSN-tech/fashion-search/internal/cfg"
	"github.com/DRSN-tech/fashion-search/pkg/logger"
)

func main() {
	bootLog, err := logger.NewZapLogger("", "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(bootLog)
	if err != nil {
		bootLog.Errorf(err, "failed to load config")
		os.Exit(1)
	}

	log, err := logger.NewZapLogger(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		bootLog.Errorf(err, "failed to init logger")
		os.Exit(1)
	}
	defer log.Sync()

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Errorf(err, "failed to initialize app")
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		log.Sync()
		os.Exit(1)
	}
}
