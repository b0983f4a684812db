package cmd

import (
	"fmt"
	"log"

	"github.com/jcdickinson/refdoc/internal/config"
	"github.com/jcdickinson/refdoc/internal/store"
	"github.com/spf13/cobra"
)

var compressCmd = &cobra.Command{
	Use:   "compress [dir]",
	Short: "Rewrite a descriptor directory as zstd-compressed files",
	Long: `Replace index.json and every descriptor with a .zst copy. Compressed
directories are read transparently by every other command.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runCompress,
}

func runCompress(cmd *cobra.Command, args []string) {
	var dir string
	if len(args) == 1 {
		dir = args[0]
	} else {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		dir = cfg.Autodoc.Dir
	}

	n, err := store.Compress(dir)
	if err != nil {
		log.Fatalf("compress failed: %v", err)
	}
	fmt.Printf("compressed %d files in %s\n", n, dir)
}
