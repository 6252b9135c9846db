package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	exportOut string
	importIn  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every field, snapshot, event and preference as one JSON document",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, closeStore, err := openStore()
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer closeStore()

		data, err := store.ExportAllData(cmd.Context())
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}

		if exportOut == "" || exportOut == "-" {
			_, err = cmd.OutOrStdout().Write(append(data, '\n'))
			return err
		}
		if err := os.WriteFile(exportOut, data, 0o600); err != nil {
			return fmt.Errorf("write %s: %w", exportOut, err)
		}
		appLogger.Info().Str("path", exportOut).Int("bytes", len(data)).Msg("export written")
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Replace stored data with the partitions present in a JSON backup",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var (
			data []byte
			err  error
		)
		if importIn == "" || importIn == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(importIn)
		}
		if err != nil {
			return fmt.Errorf("read backup: %w", err)
		}

		store, closeStore, err := openStore()
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer closeStore()

		if !store.ImportAllData(cmd.Context(), data) {
			return fmt.Errorf("backup %q was rejected, nothing was changed", importIn)
		}
		appLogger.Info().Str("path", importIn).Msg("backup imported")
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file (stdout when empty or -)")
	importCmd.Flags().StringVar(&importIn, "in", "", "backup file (stdin when empty or -)")
}
