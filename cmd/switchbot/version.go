package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/switchbot"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of switchbot",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "switchbot version %s\n", strings.TrimSpace(switchbot.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
