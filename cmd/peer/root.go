package main

import (
	"log/slog"
	"os"

	"github.com/immxrtalbeast/meshrelay/internal/config"
	"github.com/immxrtalbeast/meshrelay/lib/logger/slogpretty"
	"github.com/spf13/cobra"
)

var flagConfig string

var rootCmd = &cobra.Command{
	Use:   "peer",
	Short: "Mesh room participant",
	Long: `peer joins a mesh room through the signaling relay, connects directly to
every other member and exchanges chat messages and files with them.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", os.Getenv("CONFIG_PATH"), "path to the peer config file")
	rootCmd.AddCommand(joinCmd, roomsCmd)
}

func loadConfig() *config.PeerConfig {
	path := flagConfig
	if path == "" {
		path = "./config/peer.yaml"
	}
	return config.MustLoadPeerPath(path)
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// Logs go to stderr so chat output on stdout stays readable.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}),
		)
	default:
		opts := slogpretty.PrettyHandlerOptions{
			SlogOpts: &slog.HandlerOptions{Level: slog.LevelInfo},
		}
		log = slog.New(opts.NewPrettyHandler(os.Stderr))
	}

	return log
}
