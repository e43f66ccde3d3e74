package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codegraphhq/codegraph/internal/debug"
	"github.com/codegraphhq/codegraph/internal/types"
)

var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Attach, list, update, and delete comments on components and tasks",
}

var commentAddCmd = &cobra.Command{
	Use:   "add <parent-id>",
	Short: "Attach a comment to a component or task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, _ := cmd.Flags().GetString("content")
		author, _ := cmd.Flags().GetString("author")
		if author == "" {
			author = actorName
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		c := &types.Comment{ParentID: args[0], Content: content, Author: author}
		if _, err := a.api.CreateComment(cmd.Context(), c, actor()); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(c)
		}
		debug.PrintNormal("created comment %s on %s", c.ID, c.ParentID)
		return nil
	},
}

var commentListCmd = &cobra.Command{
	Use:   "list <node-id>",
	Short: "List a node's comments, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		out, err := a.api.GetNodeComments(cmd.Context(), args[0], limit)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(out)
		}
		for _, c := range out {
			fmt.Printf("%s  [%s]  %s\n", c.ID, c.Author, c.Content)
		}
		debug.PrintNormal("%d comment(s)", len(out))
		return nil
	},
}

var commentUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Replace a comment's content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, _ := cmd.Flags().GetString("content")

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		c, err := a.api.UpdateComment(cmd.Context(), args[0], content, actor())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(c)
		}
		debug.PrintNormal("updated comment %s", c.ID)
		return nil
	},
}

var commentDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one comment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.api.DeleteComment(cmd.Context(), args[0], actor()); err != nil {
			return err
		}
		debug.PrintNormal("deleted comment %s", args[0])
		return nil
	},
}

func init() {
	commentAddCmd.Flags().String("content", "", "Comment text")
	commentAddCmd.Flags().String("author", "", "Author (default: actor)")
	_ = commentAddCmd.MarkFlagRequired("content")

	commentListCmd.Flags().Int("limit", 0, "Maximum comments to return (0 = all)")

	commentUpdateCmd.Flags().String("content", "", "New comment text")
	_ = commentUpdateCmd.MarkFlagRequired("content")

	commentCmd.AddCommand(commentAddCmd, commentListCmd, commentUpdateCmd, commentDeleteCmd)
	rootCmd.AddCommand(commentCmd)
}
