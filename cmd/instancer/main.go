package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arenaforge/instancer/pkg/config"
	"github.com/arenaforge/instancer/pkg/log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "instancer",
	Short: "Per-team ephemeral CTF instance controller",
	Long: `instancer spins up a private set of containers per (challenge, team)
pair, wires them to an edge reverse proxy, enforces a lifetime, and reaps
expired resources once it elapses.`,
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(validateCmd)
}

var loadedConfig *config.Config

func initLogging() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading configuration: %v\n", err)
		os.Exit(1)
	}
	loadedConfig = cfg

	level := log.InfoLevel
	switch cfg.LogLevel {
	case "debug":
		level = log.DebugLevel
	case "warn":
		level = log.WarnLevel
	case "error":
		level = log.ErrorLevel
	}
	log.Init(log.Config{Level: level, JSONOutput: cfg.LogJSON})
}
