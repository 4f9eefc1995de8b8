package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"cveroast/internal/config"
)

var (
	success    = color.New(color.FgGreen, color.Bold).SprintfFunc()
	info       = color.New(color.FgCyan, color.Bold).SprintfFunc()
	warning    = color.New(color.FgYellow, color.Bold).SprintfFunc()
	errorColor = color.New(color.FgRed, color.Bold).SprintfFunc()
)

var (
	flagConfig    string
	flagTarget    string
	flagDataDir   string
	flagCommit    string
	flagLogLevel  string
	flagLogFormat string
	flagAddr      string
)

var rootCmd = &cobra.Command{
	Use:   "cveroast",
	Short: "Scan a source tree, roast the findings, and post them to chat",
	Long: `cveroast runs Trivy and OWASP Dependency-Check against a source tree,
merges their findings, asks a DeepSeek model to narrate them, stores the
narrative and summary under the data directory, and posts the narrative to a
Discord webhook.

Without a subcommand, RUN_MODE selects between scan (default) and serve.

Examples:
  # Scan the current directory for the configured commit
  COMMIT_ID=$(git rev-parse HEAD) cveroast scan

  # Serve stored analyses on :8080
  cveroast serve --addr :8080`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, "")
		if err != nil {
			return err
		}
		if cfg.RunMode == config.RunModeServe {
			return runServe(cmd.Context(), cfg)
		}
		return runScan(cmd.Context(), cfg)
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one analysis for the configured commit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, config.RunModeScan)
		if err != nil {
			return err
		}
		return runScan(cmd.Context(), cfg)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve narratives and analyses over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, config.RunModeServe)
		if err != nil {
			return err
		}
		return runServe(cmd.Context(), cfg)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagConfig, "config", "c", "", "Config file (.toml, .yaml); defaults to $CONFIG_FILE")
	pf.StringVarP(&flagTarget, "target", "t", "", "Directory to scan (default: $TARGET_DIR or .)")
	pf.StringVar(&flagDataDir, "data-dir", "", "Directory for persisted artifacts (default: $DATA_DIR or data)")
	pf.StringVar(&flagCommit, "commit", "", "Commit identifier (default: $COMMIT_ID or latest)")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&flagLogFormat, "log-format", "", "Log format: console, json")

	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address (default: $LISTEN_ADDR or :8080)")

	rootCmd.AddCommand(scanCmd, serveCmd)
}

// loadConfig builds the configuration and applies command line overrides.
// mode, when set, overrides RUN_MODE.
func loadConfig(cmd *cobra.Command, mode string) (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	overrides := map[string]struct {
		val string
		dst *string
	}{
		"target":     {flagTarget, &cfg.TargetDir},
		"data-dir":   {flagDataDir, &cfg.DataDir},
		"commit":     {flagCommit, &cfg.CommitID},
		"log-level":  {flagLogLevel, &cfg.LogLevel},
		"log-format": {flagLogFormat, &cfg.LogFormat},
		"addr":       {flagAddr, &cfg.ListenAddr},
	}
	for name, o := range overrides {
		if f := flags.Lookup(name); f != nil && f.Changed {
			*o.dst = o.val
		}
	}
	if mode != "" {
		cfg.RunMode = mode
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return &cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorColor("Error:"), err)
		stop()
		os.Exit(1)
	}
}
