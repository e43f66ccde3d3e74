package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codegraphhq/codegraph/internal/debug"
	"github.com/codegraphhq/codegraph/internal/types"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create, inspect, search, and update tasks",
}

var taskCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a task",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		desc, _ := cmd.Flags().GetString("description")
		codebase, _ := cmd.Flags().GetString("codebase")
		components, _ := cmd.Flags().GetStringSlice("component")

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		t := &types.Task{
			Name:                name,
			Description:         desc,
			Codebase:            codebase,
			RelatedComponentIDs: components,
		}
		if _, err := a.api.CreateTask(cmd.Context(), t, actor()); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(t)
		}
		debug.PrintNormal("created task %s (%s)", t.ID, t.Name)
		return nil
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		t, err := a.api.GetTask(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(t)
		}
		fmt.Printf("%s  %-11s  %3.0f%%  %s\n", t.ID, t.Status, t.Progress*100, t.Name)
		for _, cid := range t.RelatedComponentIDs {
			fmt.Printf("  component: %s\n", cid)
		}
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		statusFlags, _ := cmd.Flags().GetStringSlice("status")

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		statuses := make([]types.TaskStatus, len(statusFlags))
		for i, s := range statusFlags {
			statuses[i] = types.TaskStatus(s)
		}
		out, err := a.api.GetTasks(cmd.Context(), statuses...)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(out)
		}
		for _, t := range out {
			fmt.Printf("%s  %-11s  %3.0f%%  %s\n", t.ID, t.Status, t.Progress*100, t.Name)
		}
		debug.PrintNormal("%d task(s)", len(out))
		return nil
	},
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a task's status and progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		var progress *float64
		if cmd.Flags().Changed("progress") {
			v, _ := cmd.Flags().GetFloat64("progress")
			progress = &v
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		t, err := a.api.UpdateTaskStatus(cmd.Context(), args[0], types.TaskStatus(status), progress, actor())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(t)
		}
		debug.PrintNormal("task %s: %s (%.0f%%)", t.ID, t.Status, t.Progress*100)
		return nil
	},
}

var taskSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search tasks by text, status, and related components",
	RunE: func(cmd *cobra.Command, args []string) error {
		query, _ := cmd.Flags().GetString("query")
		statusFlags, _ := cmd.Flags().GetStringSlice("status")
		components, _ := cmd.Flags().GetStringSlice("component")
		orderBy, _ := cmd.Flags().GetString("order-by")
		desc, _ := cmd.Flags().GetBool("desc")
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		statuses := make([]types.TaskStatus, len(statusFlags))
		for i, s := range statusFlags {
			statuses[i] = types.TaskStatus(s)
		}
		out, err := a.api.SearchTasks(cmd.Context(), types.TaskSearch{
			TextQuery:           query,
			Statuses:            statuses,
			RelatedComponentIDs: components,
			OrderBy:             types.TaskOrderBy(orderBy),
			OrderDesc:           desc,
			Limit:               limit,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(out)
		}
		for _, t := range out {
			fmt.Printf("%s  %-11s  %3.0f%%  %s\n", t.ID, t.Status, t.Progress*100, t.Name)
		}
		debug.PrintNormal("%d task(s)", len(out))
		return nil
	},
}

func init() {
	taskCreateCmd.Flags().String("name", "", "Task name")
	taskCreateCmd.Flags().String("description", "", "Description")
	taskCreateCmd.Flags().String("codebase", "", "Codebase label")
	taskCreateCmd.Flags().StringSlice("component", nil, "Related component ID (repeatable)")
	_ = taskCreateCmd.MarkFlagRequired("name")

	taskListCmd.Flags().StringSlice("status", nil, "Filter by status (repeatable)")

	taskUpdateCmd.Flags().String("status", "", "New status (TODO, IN_PROGRESS, DONE, BLOCKED, CANCELLED)")
	taskUpdateCmd.Flags().Float64("progress", 0, "Progress in [0,1]")
	_ = taskUpdateCmd.MarkFlagRequired("status")

	taskSearchCmd.Flags().String("query", "", "Substring over name and description")
	taskSearchCmd.Flags().StringSlice("status", nil, "Filter by status (repeatable)")
	taskSearchCmd.Flags().StringSlice("component", nil, "Filter by related component ID (repeatable)")
	taskSearchCmd.Flags().String("order-by", "", "Sort column: created, name, status, progress")
	taskSearchCmd.Flags().Bool("desc", false, "Sort descending")
	taskSearchCmd.Flags().Int("limit", 0, "Result limit (default 100, max 1000)")

	taskCmd.AddCommand(taskCreateCmd, taskShowCmd, taskListCmd, taskUpdateCmd, taskSearchCmd)
	rootCmd.AddCommand(taskCmd)
}
