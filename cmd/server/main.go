// Voice Coach - spoken coaching sessions over HTTP.
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	portFlag     string
	logLevelFlag string
	logger       *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "voice-coach",
	Short: "Voice coaching server",
	Long: `Voice Coach runs short spoken coaching sessions: it transcribes each
recorded turn, replies in the coaching style picked at session start and
speaks the reply back when a synthesis provider is configured.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		initLogger()
		if err := godotenv.Load(); err != nil {
			logger.Info("No .env file found, using environment variables")
		}
	},
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&portFlag, "port", "", "listen port (overrides PORT)")
}

func initLogger() {
	level := slog.LevelInfo
	switch strings.ToLower(logLevelFlag) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
