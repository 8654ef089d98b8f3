package cmd

import (
	"fmt"
	"time"

	"stocksync/internal/app/client"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Показать состояние локального журнала",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		stats, err := app.Stats(cmd.Context())
		if err != nil {
			return err
		}
		cfg := app.Config()

		fmt.Println("=== Состояние агента ===")
		if app.IsInitialized() {
			fmt.Printf("Дилер: %s\n", cfg.TenantID)
			fmt.Printf("Устройство: %s %s\n", cfg.DeviceIdentifier, cfg.DeviceName)
			fmt.Printf("Сервер: %s\n", cfg.BaseURL())
		} else {
			color.Yellow("Агент не настроен, выполните: stocksync init")
		}

		fmt.Println()
		fmt.Printf("Операций в журнале: %d\n", stats.Outbox)
		if stats.Pending > 0 {
			color.Yellow("Ожидают отправки: %d", stats.Pending)
		} else {
			fmt.Println("Ожидают отправки: 0")
		}
		fmt.Printf("Получено от других устройств: %d\n", stats.Inbox)
		fmt.Printf("Курсор: %d\n", stats.Cursor)
		fmt.Printf("Последняя отправка: %s\n", formatTime(stats.LastPushAt))
		fmt.Printf("Последнее получение: %s\n", formatTime(stats.LastPullAt))

		return nil
	},
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "никогда"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
