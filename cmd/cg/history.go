package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codegraphhq/codegraph/internal/api"
	"github.com/codegraphhq/codegraph/internal/debug"
	"github.com/codegraphhq/codegraph/internal/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the change journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		entity, _ := cmd.Flags().GetString("entity")
		op, _ := cmd.Flags().GetString("op")
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		out, err := a.api.GetChangeHistory(cmd.Context(), api.ChangeHistoryRequest{
			EntityID:  entity,
			Operation: types.Operation(op),
			Limit:     limit,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(out)
		}
		for _, e := range out {
			fmt.Printf("%s  %-26s  %s  %s\n",
				e.Timestamp.Format(types.TimeFormat), e.Operation, e.EntityKind, e.EntityID)
		}
		debug.PrintNormal("%d entr(ies)", len(out))
		return nil
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		stats, err := a.api.GetHistoryStats(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(stats)
		}
		fmt.Printf("total entries: %d\n", stats.Total)
		for op, n := range stats.ByOperation {
			fmt.Printf("  %-26s %d\n", op, n)
		}
		if stats.FirstChange != nil && stats.LatestChange != nil {
			fmt.Printf("span: %s .. %s\n",
				stats.FirstChange.Format(types.TimeFormat),
				stats.LatestChange.Format(types.TimeFormat))
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().String("entity", "", "Restrict to one entity's history")
	historyCmd.Flags().String("op", "", "Restrict the global feed to one operation")
	historyCmd.Flags().Int("limit", 50, "Maximum entries (0 = all)")

	historyCmd.AddCommand(historyStatsCmd)
	rootCmd.AddCommand(historyCmd)
}
