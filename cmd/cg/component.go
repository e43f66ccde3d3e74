package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codegraphhq/codegraph/internal/debug"
	"github.com/codegraphhq/codegraph/internal/types"
)

var componentCmd = &cobra.Command{
	Use:   "component",
	Short: "Create, inspect, search, update, and delete components",
}

var componentCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a component",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		name, _ := cmd.Flags().GetString("name")
		desc, _ := cmd.Flags().GetString("description")
		path, _ := cmd.Flags().GetString("path")
		codebase, _ := cmd.Flags().GetString("codebase")

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		c := &types.Component{
			Kind:        types.ComponentKind(kind),
			Name:        name,
			Description: desc,
			Path:        path,
			Codebase:    codebase,
		}
		if _, err := a.api.CreateComponent(cmd.Context(), c, actor()); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(c)
		}
		debug.PrintNormal("created component %s (%s %s)", c.ID, c.Kind, c.Name)
		return nil
	},
}

var componentShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one component",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		c, err := a.api.GetComponent(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(c)
		}
		fmt.Printf("%s  %s  %s\n", c.ID, c.Kind, c.Name)
		if c.Description != "" {
			fmt.Printf("  %s\n", c.Description)
		}
		if c.Path != "" {
			fmt.Printf("  path: %s\n", c.Path)
		}
		return nil
	},
}

var componentSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search components by kind, name substring, or codebase",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		name, _ := cmd.Flags().GetString("name")
		codebase, _ := cmd.Flags().GetString("codebase")

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		out, err := a.api.SearchComponents(cmd.Context(), types.ComponentFilter{
			Kind:     types.ComponentKind(kind),
			Name:     name,
			Codebase: codebase,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(out)
		}
		for _, c := range out {
			fmt.Printf("%s  %-12s  %s\n", c.ID, c.Kind, c.Name)
		}
		debug.PrintNormal("%d component(s)", len(out))
		return nil
	},
}

var componentUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update fields of a component",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch types.ComponentPatch
		if cmd.Flags().Changed("kind") {
			v, _ := cmd.Flags().GetString("kind")
			kind := types.ComponentKind(v)
			patch.Kind = &kind
		}
		if cmd.Flags().Changed("name") {
			v, _ := cmd.Flags().GetString("name")
			patch.Name = &v
		}
		if cmd.Flags().Changed("description") {
			v, _ := cmd.Flags().GetString("description")
			patch.Description = &v
		}
		if cmd.Flags().Changed("path") {
			v, _ := cmd.Flags().GetString("path")
			patch.Path = &v
		}
		if cmd.Flags().Changed("codebase") {
			v, _ := cmd.Flags().GetString("codebase")
			patch.Codebase = &v
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		c, err := a.api.UpdateComponent(cmd.Context(), args[0], patch, actor())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(c)
		}
		debug.PrintNormal("updated component %s", c.ID)
		return nil
	},
}

var componentDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a component and everything attached to it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.api.DeleteComponent(cmd.Context(), args[0], actor()); err != nil {
			return err
		}
		debug.PrintNormal("deleted component %s", args[0])
		return nil
	},
}

func init() {
	componentCreateCmd.Flags().String("kind", "", "Component kind (FILE, FUNCTION, CLASS, ...)")
	componentCreateCmd.Flags().String("name", "", "Component name")
	componentCreateCmd.Flags().String("description", "", "Description")
	componentCreateCmd.Flags().String("path", "", "Filesystem path")
	componentCreateCmd.Flags().String("codebase", "", "Codebase label")
	_ = componentCreateCmd.MarkFlagRequired("kind")
	_ = componentCreateCmd.MarkFlagRequired("name")

	componentSearchCmd.Flags().String("kind", "", "Filter by kind")
	componentSearchCmd.Flags().String("name", "", "Filter by name substring")
	componentSearchCmd.Flags().String("codebase", "", "Filter by codebase")

	componentUpdateCmd.Flags().String("kind", "", "New kind")
	componentUpdateCmd.Flags().String("name", "", "New name")
	componentUpdateCmd.Flags().String("description", "", "New description")
	componentUpdateCmd.Flags().String("path", "", "New path")
	componentUpdateCmd.Flags().String("codebase", "", "New codebase")

	componentCmd.AddCommand(componentCreateCmd, componentShowCmd, componentSearchCmd,
		componentUpdateCmd, componentDeleteCmd)
	rootCmd.AddCommand(componentCmd)
}
