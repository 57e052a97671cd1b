package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/gdeltwatch/internal/logging"
	"github.com/ppiankov/gdeltwatch/internal/model"
)

// version is set at build time with -ldflags "-X .../internal/cli.version=..."
var version = "0.1.0-dev"

var (
	cfgFile   string
	verbose   bool
	appConfig *model.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gdeltwatch",
	Short: "gdeltwatch - near-real-time GDELT event monitor",
	Long: `gdeltwatch downloads the latest GDELT 2.0 event export, keeps the events
added within a recent window, reshapes them into an ICEWS-like schema and
serves them through a dashboard and JSON API.

It reports what the feed says; it does not verify events.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		if verbose {
			cfg.Log.Level = "debug"
		}
		logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
		if used := viper.ConfigFileUsed(); used != "" {
			logging.Debug().Str("file", used).Msg("using config file")
		}
		appConfig = cfg
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "gdeltwatch v%s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.gdeltwatch/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().String("log-format", "", "log format: json or console")
	rootCmd.PersistentFlags().Duration("window", 0, "recency window (e.g. 15m)")
	rootCmd.PersistentFlags().Int("workers", 0, "archives fetched in parallel")

	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("feed.window", rootCmd.PersistentFlags().Lookup("window"))
	_ = viper.BindPFlag("concurrency.archive_workers", rootCmd.PersistentFlags().Lookup("workers"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig points viper at the config file and environment
func initConfig() {
	configureViper(viper.GetViper(), cfgFile)
}

func configureViper(v *viper.Viper, file string) {
	if file != "" {
		v.SetConfigFile(file)
	} else if dir, err := configDir(); err == nil {
		v.AddConfigPath(dir)
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	} else {
		fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
	}

	// GDELTWATCH_FEED_WINDOW overrides feed.window
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".gdeltwatch"), nil
}
