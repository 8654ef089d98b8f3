package cmd

import (
	"fmt"

	"stocksync/internal/app/client"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var heartbeatCmd = &cobra.Command{
	Use:   "heartbeat",
	Short: "Сообщить ретранслятору о присутствии устройства",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		at, pending, err := app.Heartbeat(cmd.Context())
		if err != nil {
			return err
		}

		color.Green("✓ Heartbeat принят")
		fmt.Printf("  Время сервера: %s\n", at.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("  Неотправленных операций: %d\n", pending)
		return nil
	},
}
