// -----------------------------------------------------------------------
// harvester - resumable API harvesting, scraping and scheduled runs
// -----------------------------------------------------------------------

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/harvester/internal/app"
	"github.com/ternarybob/harvester/internal/common"
)

var (
	// Command-line flags
	configFiles []string // later files override earlier ones
	outputDir   string
	logLevel    string
	envFiles    []string

	// Global state
	config      *common.Config
	logger      arbor.ILogger
	application *app.App
)

var rootCmd = &cobra.Command{
	Use:           "harvester",
	Short:         "Resumable harvesting and scheduling for public music and quote sources",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringArrayVarP(&configFiles, "config", "c", nil, "Configuration file path (can be specified multiple times)")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "Output directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringArrayVar(&envFiles, "env", []string{".env"}, "Dotenv file(s) loaded before configuration")
	rootCmd.PersistentPreRunE = startup
	rootCmd.PersistentPostRun = shutdown

	rootCmd.AddCommand(runCmd, scheduleCmd, statusCmd, quotesCmd, deezerCmd, insightsCmd, statsCmd, versionCmd)
}

// startup runs in the required order:
// load config (defaults -> files -> env), apply CLI overrides, initialize logger, print banner
func startup(cmd *cobra.Command, args []string) error {
	if cmd == versionCmd {
		return nil
	}

	if err := common.LoadDotEnv(envFiles...); err != nil {
		return err
	}

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("harvester.toml"); err == nil {
			configFiles = append(configFiles, "harvester.toml")
		} else if _, err := os.Stat("deployments/local/harvester.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/harvester.toml")
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		return fmt.Errorf("failed to load configuration %v: %w", configFiles, err)
	}

	common.ApplyFlagOverrides(config, outputDir, logLevel)
	if err := config.Validate(); err != nil {
		return err
	}

	logger = common.SetupLogger(config)
	common.PrintBanner(config, logger)

	application, err = app.New(config, logger)
	if err != nil {
		return err
	}
	common.InstallCrashHandler(application.LogDir())

	logger.Debug().
		Strs("config_files", configFiles).
		Str("output_dir", config.Output.Dir).
		Str("command", cmd.Name()).
		Msg("Startup complete")

	return nil
}

func shutdown(cmd *cobra.Command, args []string) {
	if logger != nil {
		logger.Debug().Str("command", cmd.Name()).Msg("Command finished")
	}
}

func main() {
	defer common.RecoverAndExit()

	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			logger.Error().Err(err).Msg("Command failed")
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
