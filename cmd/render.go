package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jcdickinson/refdoc/internal/autodoc"
	"github.com/jcdickinson/refdoc/internal/config"
	"github.com/jcdickinson/refdoc/internal/rpc"
	"github.com/jcdickinson/refdoc/internal/store"
	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render <name|locator>[#fragment]",
	Short: "Render one descriptor to markdown on stdout",
	Example: `  refdoc render User
  refdoc render todel/Event.json
  refdoc render get_user#response
  refdoc render --local --dir ./autodoc Message`,
	Args: cobra.ExactArgs(1),
	Run:  runRender,
}

var (
	renderLocal bool
	renderDir   string
)

func init() {
	renderCmd.Flags().BoolVar(&renderLocal, "local", false, "render in-process instead of through the daemon")
	renderCmd.Flags().StringVar(&renderDir, "dir", "", "descriptor directory (implies --local)")
}

func runRender(cmd *cobra.Command, args []string) {
	name, fragment, _ := strings.Cut(args[0], "#")

	if !renderLocal && renderDir == "" {
		client, err := connectDaemon()
		if err != nil {
			log.Fatalf("failed to connect to daemon: %v", err)
		}
		resp, err := client.Render(context.Background(), rpc.RenderRequest{Name: name, Fragment: fragment})
		if err != nil {
			log.Fatalf("render failed: %v", err)
		}
		fmt.Print(resp.Markdown)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	dir := renderDir
	if dir == "" {
		dir = cfg.Autodoc.Dir
	}

	out, err := renderLocalItem(dir, cfg.RendererOptions(), name, fragment)
	if err != nil {
		log.Fatalf("render failed: %v", err)
	}
	fmt.Print(out)
}

func renderLocalItem(dir string, opts autodoc.Options, name, fragment string) (string, error) {
	src, err := store.Open(dir)
	if err != nil {
		return "", err
	}

	locator := name
	if !strings.HasSuffix(name, ".json") {
		var ok bool
		if locator, ok = src.Lookup(name); !ok {
			return "", fmt.Errorf("item %s not found in %s", name, dir)
		}
	}
	info, err := src.Load(locator)
	if err != nil {
		return "", err
	}

	opts.OnUnresolved = func(err error) {
		log.Printf("warning: %v", err)
	}
	doc, err := autodoc.NewRenderer(src, opts).RenderDocument(info)
	if err != nil {
		return "", err
	}
	if fragment == "" {
		return doc.Markdown, nil
	}
	content, ok := doc.Fragment(fragment)
	if !ok {
		return "", fmt.Errorf("fragment #%s not found for %s", fragment, name)
	}
	return content + "\n", nil
}
