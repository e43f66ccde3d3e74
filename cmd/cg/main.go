// cg is the codegraph command-line interface: a versioned codebase knowledge
// graph with a change journal, snapshots, and an agent command broker.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codegraphhq/codegraph/internal/config"
	"github.com/codegraphhq/codegraph/internal/debug"
	"github.com/codegraphhq/codegraph/internal/telemetry"
	"github.com/codegraphhq/codegraph/internal/types"
)

// Version and Build are stamped by the release process.
var (
	Version = "dev"
	Build   = "unknown"
)

var (
	dbPath      string
	actorName   string
	jsonOutput  bool
	verboseFlag bool
	quietFlag   bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "cg",
	Short: "cg - codebase knowledge graph and agent coordination",
	Long: `Components, relationships, tasks, and comments in a versioned graph.
Every mutation lands in a change journal; snapshots and time-travel replay
rebuild past states; the command broker matches commands to waiting agents.`,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("cg version %s (%s)\n", Version, Build)
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		debug.SetVerbose(verboseFlag)
		debug.SetQuiet(quietFlag)

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if dbPath == "" {
			dbPath = cfg.DBPath
		}
		if actorName == "" {
			actorName = cfg.Actor
		}
		return telemetry.Init(cmd.Context(), "cg", Version)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		telemetry.Shutdown(ctx)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cg version %s (%s)\n", Version, Build)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default: codegraph.db or config)")
	rootCmd.PersistentFlags().StringVar(&actorName, "actor", "", "Actor name for the audit trail (default: $CG_ACTOR, $USER)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.Flags().BoolP("version", "V", false, "Print version information")

	rootCmd.AddCommand(versionCmd)
}

// actor builds the audit identity for this invocation.
func actor() types.Actor {
	return types.Actor{
		SessionID: os.Getenv("CG_SESSION_ID"),
		UserID:    actorName,
		Source:    "cli",
	}
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
