package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/gdeltwatch/internal/pipeline"
)

var (
	fetchCSV      string
	fetchJSON     string
	fetchLLM      bool
	fetchBriefing string
	fetchTimeout  time.Duration
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run one refresh against the live feed and print a summary",
	Long: `Fetch reads the GDELT lastupdate index, downloads the listed export
archives, keeps events added within the window and prints a summary.

Example:
  gdeltwatch fetch
  gdeltwatch fetch --csv events.csv --json snapshot.json
  gdeltwatch fetch --window 30m --llm`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVar(&fetchCSV, "csv", "", "write events as CSV to this path")
	fetchCmd.Flags().StringVar(&fetchJSON, "json", "", "write the snapshot as JSON to this path")
	fetchCmd.Flags().BoolVar(&fetchLLM, "llm", false, "generate a briefing with the configured LLM provider")
	fetchCmd.Flags().StringVar(&fetchBriefing, "briefing", "", "write the briefing markdown to this path (default stdout)")
	fetchCmd.Flags().DurationVar(&fetchTimeout, "timeout", 5*time.Minute, "overall timeout")
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	p := pipeline.NewPipeline(appConfig)
	snapshot, err := p.Refresh(ctx)
	if err != nil {
		var indexErr *pipeline.IndexFetchError
		if errors.As(err, &indexErr) {
			return fmt.Errorf("no data available: %w", err)
		}
		return fmt.Errorf("refresh failed: %w", err)
	}

	out := cmd.OutOrStdout()
	printSummary(out, snapshot)
	return writeOutputs(ctx, out, appConfig, snapshot, outputOptions{
		csvPath:      fetchCSV,
		jsonPath:     fetchJSON,
		briefing:     fetchLLM,
		briefingPath: fetchBriefing,
	})
}
