package cmd

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/jcdickinson/refdoc/internal/config"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View daemon log file",
	Run:   runLogs,
}

var (
	logsFollow bool
	logsLines  int
)

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "follow log output")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "number of lines to show")
}

func runLogs(cmd *cobra.Command, args []string) {
	logPath := config.LogPath()
	f, err := os.Open(logPath)
	if os.IsNotExist(err) {
		fmt.Println("no log file found (daemon may not have run yet)")
		return
	}
	if err != nil {
		log.Fatalf("opening log: %v", err)
	}
	defer f.Close()

	lines, err := lastLines(f, logsLines)
	if err != nil {
		log.Fatalf("reading log: %v", err)
	}
	for _, line := range lines {
		fmt.Println(line)
	}

	if logsFollow {
		if err := follow(f, os.Stdout); err != nil {
			log.Fatalf("following log: %v", err)
		}
	}
}

// lastLines reads r to the end and returns its final n lines.
func lastLines(r io.Reader, n int) ([]string, error) {
	if n <= 0 {
		_, err := io.Copy(io.Discard, r)
		return nil, err
	}
	ring := make([]string, 0, n)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if len(ring) == n {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, sc.Text())
	}
	return ring, sc.Err()
}

// follow copies data appended to f until the process is interrupted.
func follow(f *os.File, w io.Writer) error {
	for {
		n, err := io.Copy(w, f)
		if err != nil {
			return err
		}
		if n == 0 {
			time.Sleep(250 * time.Millisecond)
		}
	}
}
