package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codegraphhq/codegraph/internal/debug"
	"github.com/codegraphhq/codegraph/internal/types"
)

var relationshipCmd = &cobra.Command{
	Use:     "relationship",
	Aliases: []string{"rel"},
	Short:   "Create, list, and delete relationships between components",
}

var relationshipCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a directed relationship",
	RunE: func(cmd *cobra.Command, args []string) error {
		relType, _ := cmd.Flags().GetString("type")
		source, _ := cmd.Flags().GetString("source")
		target, _ := cmd.Flags().GetString("target")
		reasoning, _ := cmd.Flags().GetString("reasoning")

		r := &types.Relationship{
			Type:      types.RelationshipType(relType),
			SourceID:  source,
			TargetID:  target,
			Reasoning: reasoning,
		}
		if cmd.Flags().Changed("time-order") {
			v, _ := cmd.Flags().GetInt("time-order")
			r.TimeOrder = &v
		}
		if cmd.Flags().Changed("probability") {
			v, _ := cmd.Flags().GetFloat64("probability")
			r.Probability = &v
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		if _, err := a.api.CreateRelationship(cmd.Context(), r, actor()); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(r)
		}
		debug.PrintNormal("created relationship %s (%s -%s-> %s)", r.ID, r.SourceID, r.Type, r.TargetID)
		return nil
	},
}

var relationshipDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one relationship",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.api.DeleteRelationship(cmd.Context(), args[0], actor()); err != nil {
			return err
		}
		debug.PrintNormal("deleted relationship %s", args[0])
		return nil
	},
}

var relationshipListCmd = &cobra.Command{
	Use:   "list <component-id>",
	Short: "List a component's relationships",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("direction")

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		out, err := a.api.GetComponentRelationships(cmd.Context(), args[0], types.Direction(dir))
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(out)
		}
		for _, link := range out {
			arrow := "->"
			if link.Direction == types.DirIncoming {
				arrow = "<-"
			}
			fmt.Printf("%s  %s %s %s (%s %s)\n", link.Relationship.ID, arrow,
				link.Relationship.Type, link.Neighbor.ID, link.Neighbor.Kind, link.Neighbor.Name)
		}
		debug.PrintNormal("%d relationship(s)", len(out))
		return nil
	},
}

var relationshipTreeCmd = &cobra.Command{
	Use:   "tree <root-id>",
	Short: "Show the DEPENDS_ON tree from a root component",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		depth, _ := cmd.Flags().GetInt("depth")

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		paths, err := a.api.GetDependencyTree(cmd.Context(), args[0], depth)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(paths)
		}
		for _, p := range paths {
			names := make([]string, len(p.Components))
			for i, c := range p.Components {
				names[i] = c.Name
			}
			fmt.Println(strings.Join(names, " -> "))
		}
		debug.PrintNormal("%d path(s)", len(paths))
		return nil
	},
}

func init() {
	relationshipCreateCmd.Flags().String("type", "", "Relationship type (DEPENDS_ON, CALLS, ...)")
	relationshipCreateCmd.Flags().String("source", "", "Source component ID")
	relationshipCreateCmd.Flags().String("target", "", "Target component ID")
	relationshipCreateCmd.Flags().Int("time-order", 0, "Temporal order (positive integer)")
	relationshipCreateCmd.Flags().Float64("probability", 0, "Edge probability in [0,1]")
	relationshipCreateCmd.Flags().String("reasoning", "", "Why this edge exists")
	_ = relationshipCreateCmd.MarkFlagRequired("type")
	_ = relationshipCreateCmd.MarkFlagRequired("source")
	_ = relationshipCreateCmd.MarkFlagRequired("target")

	relationshipListCmd.Flags().String("direction", string(types.DirBoth), "incoming, outgoing, or both")
	relationshipTreeCmd.Flags().Int("depth", 0, "Maximum tree depth (default 3)")

	relationshipCmd.AddCommand(relationshipCreateCmd, relationshipDeleteCmd,
		relationshipListCmd, relationshipTreeCmd)
	rootCmd.AddCommand(relationshipCmd)
}
