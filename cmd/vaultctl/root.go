package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/absfs/vaultfs"
	"github.com/charmbracelet/log"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	quiet      bool
	output     string

	cfg    Config
	logger *log.Logger
)

var rootCmd = &cobra.Command{
	Use:   "vaultctl",
	Short: "Create and manipulate encrypted vaultfs containers",
	Long: `vaultctl works with vaultfs containers: single encrypted files holding
a folder tree. It can create containers, change their password, and copy
files in and out of them.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = LoadConfig(cmd, configPath)
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		logger = newLogger(cfg)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: search for vaultctl.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "Output format: text, json or yaml")
	rootCmd.PersistentFlags().Bool("keyring", false, "Look up and store passwords in the OS keyring")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v\n", err)
		os.Exit(1)
	}
}

func newLogger(c Config) *log.Logger {
	level := log.WarnLevel
	if c.Verbose {
		level = log.DebugLevel
	} else if parsed, err := log.ParseLevel(c.LogLevel); err == nil {
		level = parsed
	}
	return vaultfs.NewLogger(os.Stderr, level)
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// structured reports whether output is json or yaml
func structured() bool {
	return cfg.Output == "json" || cfg.Output == "yaml"
}

// printStructured writes v in the selected structured format
func printStructured(v any) error {
	switch cfg.Output {
	case "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	default:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	}
}
