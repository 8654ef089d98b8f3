package sync

import (
	"fmt"
	"time"

	"stocksync/internal/app/client"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Синхронизировать журнал с ретранслятором",
	Long: `Отправляет неотправленные операции пакетами, затем получает операции
других устройств дилера, пока сервер не сообщит, что записей больше нет.

Прерванную синхронизацию можно просто повторить: дубликаты не появятся.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Println("=== Синхронизация ===")
		start := time.Now()

		result, err := app.Sync(cmd.Context())
		if result != nil {
			printResult(result)
		}
		if err != nil {
			return fmt.Errorf("ошибка синхронизации: %w", err)
		}

		color.Green("✓ Синхронизация завершена за %v", time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func printResult(result *client.SyncResult) {
	fmt.Printf("Отправлено: %d (принято %d, дубликатов %d, отклонено %d)\n",
		result.Pushed, result.Inserted, result.Skipped, result.Failed)
	fmt.Printf("Получено: %d (новых %d), курсор: %d\n", result.Pulled, result.Applied, result.Cursor)

	for i, e := range result.Errors {
		if i == 3 {
			fmt.Printf("  ... и еще %d ошибок\n", len(result.Errors)-3)
			break
		}
		color.Yellow("  • %s", e)
	}
}
