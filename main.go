package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"catalog-importer/config"
	"catalog-importer/utils"
)

// Exit codes. Row errors are distinguishable from a run that never started.
const (
	exitOK        = 0
	exitFatal     = 1
	exitRowErrors = 2
)

var errRowErrors = errors.New("import finished with row errors")

func main() {
	cfg := config.Load()
	logger := utils.NewLogger(utils.ParseLevel(cfg.LogLevel))

	root := &cobra.Command{
		Use:           "catalog-importer",
		Short:         "Import product categories and products into the catalog site",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfg.Store, "store", cfg.Store, "catalog backend: postgres or memory")
	root.AddCommand(
		newImportCmd(cfg, logger),
		newInitSiteCmd(cfg, logger),
		newServeCmd(cfg, logger),
	)

	os.Exit(exitCode(root.Execute(), logger))
}

func exitCode(err error, logger *utils.Logger) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errRowErrors):
		return exitRowErrors
	default:
		logger.Error("%v", err)
		return exitFatal
	}
}
