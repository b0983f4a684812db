package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jcdickinson/refdoc/internal/config"
	"github.com/jcdickinson/refdoc/internal/daemon"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the descriptor index, last build and rendered pages",
	Run:   runStatus,
}

var (
	statusJSON  bool
	statusPages bool
)

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
	statusCmd.Flags().BoolVar(&statusPages, "pages", false, "list every rendered page")
}

func runStatus(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.Status(context.Background())
	if err != nil {
		log.Fatalf("status failed: %v", err)
	}

	if statusJSON {
		out, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(out))
		return
	}

	fmt.Printf("descriptors: %s (version %q, %d items)\n", resp.Dir, resp.Version, resp.Items)
	if b := resp.LastBuild; b != nil {
		state := "running"
		if b.FinishedAt != nil {
			state = "finished " + b.FinishedAt.Local().Format("2006-01-02 15:04:05")
		}
		fmt.Printf("last build:  index %s, %s (%d rendered, %d unchanged, %d failed)\n",
			b.IndexVersion, state, b.Rendered, b.Unchanged, b.Failed)
	} else {
		fmt.Println("last build:  never")
	}
	fmt.Printf("pages:       %d\n", len(resp.Pages))

	if statusPages {
		for _, p := range resp.Pages {
			fmt.Printf("  %-40s %-6s %s\n", p.Locator, p.Kind, shortHash(p.ContentHash))
		}
	}
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background daemon",
	Run:   runStop,
}

func runStop(cmd *cobra.Command, args []string) {
	client := daemon.NewClient(config.SocketPath())
	if !client.IsAvailable() {
		fmt.Println("daemon is not running")
		return
	}

	// Connection reset is expected: the daemon exits after responding.
	client.Shutdown(context.Background())
	fmt.Println("daemon stopped")
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
