package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/codegraphhq/codegraph/internal/config"
	"github.com/codegraphhq/codegraph/internal/debug"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default codegraph.yml in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := os.Getwd()
		if err != nil {
			return err
		}
		path, err := config.WriteDefault(dir)
		if err != nil {
			return err
		}
		debug.PrintNormal("wrote %s", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
