package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/dyluth/gauge/internal/config"
	"github.com/dyluth/gauge/internal/notify"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string

	configFile string
	envFile    string
	debug      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gauge",
	Short: "Gauge - live plant KPIs and priorities board",
	Long: `Gauge keeps plant KPI cards and the priorities board in sync between
every screen and terminal looking at the same project.

All state lives in a shared store. Every client subscribes to it, applies
edits locally at once and writes them through; the store's last write wins.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		configureLogging()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// Interrupts cancel the command context so replicas drain before exit.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default ./"+config.DefaultFile+" when present)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Env file (default ./"+config.DefaultEnvFile+" when present)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging (same as DEBUG=true)")
}

// configureLogging sends logs to stderr, at debug level when asked to.
func configureLogging() {
	log.SetOutput(os.Stderr)
	log.SetLevel(log.WarnLevel)
	if d, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && d {
		debug = true
	}
	if debug {
		log.SetLevel(log.DebugLevel)
	}
}

func sources() config.Sources {
	return config.Sources{File: configFile, EnvFile: envFile}
}

// loadConfig loads and validates the configuration. Configuration errors
// are printed once with every missing setting listed.
func loadConfig() (*config.GaugeConfig, error) {
	cfg, err := config.Load(sources())
	if err == nil {
		return cfg, nil
	}

	var cfgErr *config.Error
	if !errors.As(err, &cfgErr) {
		return nil, notify.Error("failed to load configuration", err.Error(), []string{
			"Check the file passed with --config / --env-file",
		})
	}

	details := make(map[string]string)
	for _, name := range cfgErr.Missing {
		details[name] = "not set"
	}
	for i, problem := range cfgErr.Invalid {
		details[fmt.Sprintf("problem %d", i+1)] = problem
	}

	return nil, notify.ErrorWithContext(
		"configuration incomplete",
		"Gauge needs the store connection settings before it can show anything.",
		details,
		[]string{
			fmt.Sprintf("Set %s and %s in the environment, in .env or in %s", config.EnvProjectID, config.EnvDatabaseURL, config.DefaultFile),
			"Start a local store for development:\n     gauge dev up --project <id>",
		},
	)
}
