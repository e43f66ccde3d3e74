package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codegraphhq/codegraph/internal/debug"
)

var overviewCmd = &cobra.Command{
	Use:   "overview <codebase>",
	Short: "Summarize a codebase: component counts by kind",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		counts, err := a.api.GetCodebaseOverview(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(counts)
		}
		total := 0
		for _, kc := range counts {
			fmt.Printf("%-22s %d\n", kc.Kind, kc.Count)
			total += kc.Count
		}
		debug.PrintNormal("%d component(s) in %s", total, args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(overviewCmd)
}
