package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/gdeltwatch/internal/api"
	"github.com/ppiankov/gdeltwatch/internal/llm"
	"github.com/ppiankov/gdeltwatch/internal/logging"
	"github.com/ppiankov/gdeltwatch/internal/model"
	"github.com/ppiankov/gdeltwatch/internal/pipeline"
	"github.com/ppiankov/gdeltwatch/internal/supervisor"
	"github.com/ppiankov/gdeltwatch/internal/websocket"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard and JSON API",
	Long: `Serve starts the dashboard on --addr. Data is loaded on demand with the
Refresh button (POST /api/v1/refresh) or once at startup with
--refresh-on-start. Connected dashboards reload when a refresh completes.

Example:
  gdeltwatch serve
  gdeltwatch serve --addr :8080 --refresh-on-start`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default from server.addr)")
	serveCmd.Flags().Bool("refresh-on-start", false, "run one refresh when the server starts")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.refresh_on_start", serveCmd.Flags().Lookup("refresh-on-start"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tree, err := buildServeTree(appConfig)
	if err != nil {
		return err
	}

	logging.Info().Str("addr", appConfig.Server.Addr).Str("version", version).Msg("starting gdeltwatch")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor stopped: %w", err)
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		logging.Warn().Int("services", len(report)).Msg("services did not stop within the shutdown timeout")
	}
	logging.Info().Msg("shutdown complete")
	return nil
}

// buildServeTree wires the pipeline, snapshot store, hub and HTTP server
// into a supervisor tree
func buildServeTree(cfg *model.Config) (*supervisor.Tree, error) {
	summarizer, err := llm.NewSummarizer(llm.ConfigFromModel(cfg))
	if err != nil {
		return nil, fmt.Errorf("configure briefing: %w", err)
	}

	store := api.NewSnapshotStore(pipeline.NewPipeline(cfg))
	hub := websocket.NewHub()

	opts := api.OptionsFromConfig(cfg)
	opts.Store = store
	opts.Hub = hub
	opts.Summarizer = summarizer
	opts.Version = version
	server := api.NewServer(opts)

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddMessagingService(hub)
	tree.AddAPIService(supervisor.NewHTTPService(
		cfg.Server.Addr,
		server.Handler(),
		cfg.Server.MaxConnections,
		cfg.Server.ShutdownTimeout,
	))

	if cfg.Server.RefreshOnStart {
		tree.AddMessagingService(supervisor.NewStartupRefreshService(func(ctx context.Context) (*model.Snapshot, error) {
			snapshot, err := store.Refresh(ctx)
			if err == nil {
				hub.BroadcastRefreshCompleted(websocket.NewRefreshCompletedData(snapshot))
			}
			return snapshot, err
		}))
	}

	if summarizer.IsEnabled() {
		logging.Info().Str("provider", summarizer.ProviderName()).Msg("briefings enabled")
	}
	return tree, nil
}
