package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/psantana5/perfmark/pkg/logging"
)

var (
	cfgFile      string
	outputFormat string
	logLevel     string
	logJSON      bool
	logFile      string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "perfmark",
	Short: "Time commands and report the recorded durations",
	Long: `perfmark runs a command repeatedly, records each run as one sample of a
named measurement and prints the samples, their average and summary statistics.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.perfmark/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table, json, yaml or prom")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "write logs as JSON lines")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also append logs to this file (rotated above 10MB)")

	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_json", rootCmd.PersistentFlags().Lookup("log-json"))
	viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".perfmark"))
		}
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PERFMARK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	viper.BindEnv("otlp_endpoint", "PERFMARK_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")

	// A missing default config file is fine; a broken one is not
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
		}
	}
}

// newLogger builds the CLI logger from flags, env and config.
// The caller closes it.
func newLogger() (*logging.Logger, error) {
	level := logging.ParseLevel(viper.GetString("log_level"))
	jsonFormat := viper.GetBool("log_json")
	if path := viper.GetString("log_file"); path != "" {
		return logging.NewFileLogger(path, level, jsonFormat, logging.DefaultMaxLogSize)
	}
	return logging.NewLogger(level, jsonFormat), nil
}

// GetOutputFormat returns the configured output format
func GetOutputFormat() string {
	return strings.ToLower(viper.GetString("output"))
}
