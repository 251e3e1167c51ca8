package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/switchbot/internal/adapters/serial"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List the serial ports a controller may be attached to",
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := serial.NewConnector().ListPorts()
		if err != nil {
			return fmt.Errorf("listing serial ports: %w", err)
		}
		if len(ports) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No serial ports found.")
			return nil
		}
		for _, p := range ports {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}
