// Command notes is an offline-first note-taking CLI. All commands work
// against the local database and synchronize with the configured remote
// in the background or on demand.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/phayzeee/Offline-First-Architecture/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "notes",
	Short: "Offline-first notes with background sync",
	Long: `An offline-first note-taking tool.

Notes are stored in a local SQLite database, which is the source of
truth for everything you see. Creating, editing and deleting notes
always succeeds immediately, with or without a network connection;
changes are pushed to the configured remote in the background.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(),
		"Path to the YAML config file")
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return dir + "/notes/notes.yaml"
}

// loadConfig reads the configured YAML file with defaults and NOTES_*
// environment overrides applied.
func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
