package main

import (
	"fmt"

	"github.com/aretw0/deployd"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of deployd",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "deployd version %s\n", deployd.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
