// pongcourtd runs the authoritative pong game core: the room registry,
// tournament directory and stats store, plus a localhost observability
// listener. Transport adapters attach connections through the server
// package's handlers.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfig     string
	flagDBPath     string
	flagDebugLevel string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pongcourtd",
	Short: "Authoritative multiplayer pong game server",
	Long: `pongcourtd hosts the real-time pong game core: per-room fixed-tick
simulation, casual matchmaking and single-elimination tournaments.

Examples:
  pongcourtd serve
  pongcourtd serve --config ./pong.yaml --db ./stats.db
  pongcourtd serve --debuglevel debug`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to game config yaml (defaults when empty)")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "pongcourt.db", "Path to the stats database")
	rootCmd.PersistentFlags().StringVar(&flagDebugLevel, "debuglevel", "info", "Log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
}
