package main

import (
	"log"
	"os"

	"github.com/rs/zerolog"

	"github.com/rollcall-labs/rollcall/internal/api"
	"github.com/rollcall-labs/rollcall/internal/cli"
	"github.com/rollcall-labs/rollcall/internal/config"
	"github.com/rollcall-labs/rollcall/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	authClient := api.NewAuthClient(cfg.BaseURL, cfg.RequestTimeout, logger)
	store := session.NewFileStore(cfg.CredentialsPath)

	manager, err := session.NewManager(authClient, store, cfg.RefreshTimeout, logger)
	if err != nil {
		log.Fatalf("failed to load session: %v", err)
	}

	transport := session.NewTransport(manager, nil, logger)
	client := api.New(cfg.BaseURL, transport, cfg.RequestTimeout, logger)

	root := cli.NewRootCmd(&cli.App{
		Config:  cfg,
		Logger:  logger,
		Manager: manager,
		Client:  client,
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
