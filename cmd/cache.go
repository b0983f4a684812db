package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jcdickinson/refdoc/internal/cas"
	"github.com/jcdickinson/refdoc/internal/config"
	"github.com/jcdickinson/refdoc/internal/daemon"
	"github.com/jcdickinson/refdoc/internal/db"
	"github.com/spf13/cobra"
)

var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Drop cached descriptors and renders so the next request reloads them",
	Long: `Drop the daemon's in-memory descriptors and rendered pages. With --all, also
empty the page store and the build catalog so the next build rewrites every page.`,
	Run: runClearCache,
}

var clearCacheAll bool

func init() {
	clearCacheCmd.Flags().BoolVar(&clearCacheAll, "all", false, "also clear the page store and build catalog")
}

func runClearCache(cmd *cobra.Command, args []string) {
	client := daemon.NewClient(config.SocketPath())
	if client.IsAvailable() {
		if err := client.ClearCache(context.Background(), clearCacheAll); err != nil {
			slog.Error("failed to clear cache", "error", err)
			os.Exit(1)
		}
		fmt.Println("cache cleared")
		return
	}

	if !clearCacheAll {
		fmt.Println("daemon is not running")
		return
	}

	if err := cas.Default().Clear(); err != nil {
		slog.Error("failed to clear page store", "error", err)
		os.Exit(1)
	}
	database, err := db.New(config.DBPath())
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	if err := database.Clear(); err != nil {
		slog.Error("failed to clear catalog", "error", err)
		os.Exit(1)
	}
	fmt.Println("page store and catalog cleared")
}
