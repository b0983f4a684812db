package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jcdickinson/refdoc/internal/build"
	"github.com/jcdickinson/refdoc/internal/cas"
	"github.com/jcdickinson/refdoc/internal/config"
	"github.com/jcdickinson/refdoc/internal/daemon"
	"github.com/jcdickinson/refdoc/internal/db"
	"github.com/jcdickinson/refdoc/internal/rpc"
	"github.com/jcdickinson/refdoc/internal/store"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Render every descriptor into the output directory",
	Long: `Render every indexed descriptor to <output_dir>/<package>/<Name>.md. Pages whose
content did not change since the last build are left alone. Links to pages the
build did not produce are reported as dangling.`,
	Example: `  refdoc build
  refdoc build --out ./site/reference --include-hidden
  refdoc build --local --strict`,
	Args: cobra.NoArgs,
	Run:  runBuild,
}

var (
	buildOut           string
	buildIncludeHidden bool
	buildLocal         bool
	buildStrict        bool
	buildJSON          bool
)

func init() {
	buildCmd.Flags().StringVar(&buildOut, "out", "", "output directory (default from config)")
	buildCmd.Flags().BoolVar(&buildIncludeHidden, "include-hidden", false, "also render hidden items")
	buildCmd.Flags().BoolVar(&buildLocal, "local", false, "build in-process instead of through the daemon")
	buildCmd.Flags().BoolVar(&buildStrict, "strict", false, "exit non-zero on failed items or dangling links")
	buildCmd.Flags().BoolVar(&buildJSON, "json", false, "output as JSON")
}

// absOutDir makes an explicit output directory absolute, since the daemon
// resolves paths against its own working directory. An empty dir keeps the
// daemon's configured default.
func absOutDir(dir string) (string, error) {
	if dir == "" {
		return "", nil
	}
	return filepath.Abs(dir)
}

func runBuild(cmd *cobra.Command, args []string) {
	var resp rpc.BuildResponse
	if buildLocal {
		r, err := buildLocally()
		if err != nil {
			slog.Error("build failed", "error", err)
			os.Exit(1)
		}
		resp = daemon.BuildResponse(r)
	} else {
		outDir, err := absOutDir(buildOut)
		if err != nil {
			log.Fatalf("resolving output directory: %v", err)
		}
		client, err := connectDaemon()
		if err != nil {
			log.Fatalf("failed to connect to daemon: %v", err)
		}
		r, err := client.Build(context.Background(), rpc.BuildRequest{
			OutputDir:     outDir,
			IncludeHidden: buildIncludeHidden,
		})
		if err != nil {
			log.Fatalf("build failed: %v", err)
		}
		resp = *r
	}

	if buildJSON {
		out, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(out))
	} else {
		printBuild(resp)
	}

	if buildStrict && (len(resp.Failed) > 0 || len(resp.Dangling) > 0) {
		os.Exit(1)
	}
}

func buildLocally() (*build.Result, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	src, err := store.Open(cfg.Autodoc.Dir)
	if err != nil {
		return nil, err
	}
	database, err := db.New(config.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening database (is the daemon running? try refdoc stop): %w", err)
	}
	defer database.Close()

	out := buildOut
	if out == "" {
		out = cfg.Build.OutputDir
	}
	b := build.New(src, cas.Default(), database, build.Options{
		OutputDir:     out,
		Workers:       cfg.Build.Workers,
		FrontMatter:   cfg.Build.FrontMatter,
		IncludeHidden: buildIncludeHidden || cfg.Build.IncludeHidden,
		Renderer:      cfg.RendererOptions(),
	})
	return b.Run(context.Background())
}

func printBuild(resp rpc.BuildResponse) {
	fmt.Printf("index %s: %d rendered, %d unchanged, %d skipped, %d failed\n",
		resp.Version, len(resp.Rendered), len(resp.Unchanged), len(resp.Skipped), len(resp.Failed))
	for _, loc := range resp.Pruned {
		fmt.Printf("  removed %s\n", loc)
	}
	for _, msg := range resp.Failed {
		fmt.Printf("  error: %s\n", msg)
	}
	for _, msg := range resp.Unresolved {
		fmt.Printf("  warning: %s\n", msg)
	}
	for _, link := range resp.Dangling {
		fmt.Printf("  dangling: %s\n", link)
	}
}
