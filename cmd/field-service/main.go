package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"field-service/internal/config"
	"field-service/internal/db"
	"field-service/internal/logger"
	"field-service/internal/repository"
)

var (
	cfg       *config.Config
	appLogger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "field-service",
	Short:         "Field registration, monitoring and reporting backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		appLogger = logger.New(cfg.Environment, cfg.LogLevel)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, exportCmd, importCmd)
}

// openStore connects the configured database and returns the field store
// with a function that releases the connection.
func openStore() (*repository.FieldStore, func(), error) {
	database, err := db.New(cfg, appLogger)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if sqlDB, err := database.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	docs := repository.NewDocumentRepository(database)
	return repository.NewFieldStore(docs, cfg.Storage.KeyPrefix, appLogger), closeFn, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "field-service: %v\n", err)
		os.Exit(1)
	}
}
