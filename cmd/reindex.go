package cmd

import (
	"log/slog"
	"os"

	"github.com/civicdata/survload/internal/io/reindexio"
	survload "github.com/civicdata/survload/pkg"
	"github.com/civicdata/survload/pkg/config"
	"github.com/spf13/cobra"
)

// reindexCmd represents the reindex command
var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuilds the answers full-text index and question statistics",
	Run: func(_ *cobra.Command, _ []string) {
		cfg := config.New(opts...)
		sl := survload.New(cfg)

		rx, err := reindexio.New(cfg)
		if err != nil {
			slog.Error("Cannot create Reindexer", "error", err)
			os.Exit(1)
		}
		if err = sl.Reindex(rx); err != nil {
			slog.Error("Cannot rebuild indexes", "error", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}
