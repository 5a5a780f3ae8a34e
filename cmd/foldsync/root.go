package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/foldsync/foldsync/internal/config"
	"github.com/foldsync/foldsync/internal/events"
)

var (
	cfg    *config.Config
	logger *events.Logger

	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "foldsync",
	Short: "Two-way folder synchronization",
	Long: `Foldsync keeps one local folder and one remote folder in sync:
local edits are uploaded, remote changes are downloaded, and anything
the engine cannot reconcile on its own is raised as a conflict for you
to decide.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.NewLoader(configPath).Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		if logLevel != "" {
			cfg.Log.Level = logLevel
		}

		logger, err = events.NewLogger(&cfg.Log)
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Config file path (default: foldsync.json, ~/.config/foldsync/config.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level override (debug, info, warn, error)")
}

// Execute runs the CLI.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError("%v", err)
	}
	return err
}

var (
	successColor = color.New(color.FgGreen)
	failureColor = color.New(color.FgRed)
	warnColor    = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
)

func printSuccess(format string, args ...interface{}) {
	_, _ = successColor.Fprintf(os.Stdout, format+"\n", args...)
}

func printError(format string, args ...interface{}) {
	_, _ = failureColor.Fprintf(os.Stderr, format+"\n", args...)
}

func printWarn(format string, args ...interface{}) {
	_, _ = warnColor.Fprintf(os.Stdout, format+"\n", args...)
}

func printInfo(format string, args ...interface{}) {
	_, _ = infoColor.Fprintf(os.Stdout, format+"\n", args...)
}
