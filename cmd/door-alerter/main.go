// Command door-alerter watches a garage door sensor and reports openings and
// closings over chat, PagerDuty, a webhook, and MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/door-alerter/internal/config"
)

// exitRestart asks the service manager to start us again.
const exitRestart = 75

var (
	configPath string
	poll       time.Duration
	httpAddr   string
	printState bool
	logLevel   string

	rootCmd = &cobra.Command{
		Use:   "door-alerter",
		Short: "Watch the garage door and alert on openings.",
		Long: `Polls the door sensor and reports every opening and closing.

An opening is escalated to the webhook and PagerDuty unless an authorized
key fob is in Bluetooth range. A closing resolves the open incident.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := newLogger(cfg.Log, os.Stderr)

			if printState {
				return runPrintState(cfg, os.Stdout)
			}

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sig)

			return run(context.Background(), cfg, sig, log)
		},
	}
)

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().DurationVar(&poll, "poll", config.DefaultPollInterval, "minimum interval between door polls")
	rootCmd.Flags().StringVar(&httpAddr, "http", config.DefaultHTTPAddr, `HTTP status address ("off" to disable)`)
	rootCmd.Flags().BoolVar(&printState, "print-state", false, "print the current door state and exit")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

func main() {
	os.Exit(execute())
}

func execute() int {
	err := rootCmd.Execute()
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errRestart):
		return exitRestart
	default:
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 1
	}
}

// loadConfig reads the config file and applies flags the user set.
// A missing file is only tolerated when --config was not given.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	cfg, err := config.Load(configPath)
	if err != nil {
		if flags.Changed("config") || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = config.Default()
		config.ApplyEnv(cfg, os.Getenv)
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
	}

	if flags.Changed("poll") {
		cfg.Door.PollInterval = poll
	}
	if flags.Changed("http") {
		cfg.HTTP.Addr = httpAddr
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}
