// Command bob-server runs the HTTP façade for the agent.
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/opsbuddy/bob/pkg/bob"
	"github.com/opsbuddy/bob/pkg/bob/api"
	"github.com/opsbuddy/bob/pkg/bob/memory"
)

func main() {
	configPath := flag.String("config", "", "optional config file (yaml or json)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	var cfg bob.Config
	var err error
	if *configPath != "" {
		cfg, err = bob.FromFile(*configPath)
	} else {
		cfg, err = bob.FromEnv()
	}
	if err != nil {
		logger.Error("load config failed", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	opts := []bob.Option{bob.WithLogger(logger)}
	if cfg.StorePath != "" {
		store, err := memory.NewSQLiteStore(cfg.StorePath)
		if err != nil {
			logger.Error("open store failed", "path", cfg.StorePath, "error", err)
			os.Exit(1)
		}
		defer store.Close()
		opts = append(opts, bob.WithStore(store))
	}

	agent, err := bob.New(cfg, opts...)
	if err != nil {
		logger.Error("initialize agent failed", "error", err)
		os.Exit(1)
	}
	logger.Info("agent initialized", "model", cfg.Model)

	server := api.NewServer(agent, cfg, logger)
	if err := server.Run(cfg.ServerAddr); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
