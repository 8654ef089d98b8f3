package txn

import (
	"encoding/json"
	"fmt"

	"stocksync/internal/app/client"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	action   string
	sku      string
	name     string
	qty      string
	oldValue string
	newValue string
	meta     string
)

var AddCmd = &cobra.Command{
	Use:   "add",
	Short: "Записать операцию в локальный журнал",
	Long: `Добавляет операцию в локальный журнал устройства. Запись получает
уникальный идентификатор и будет отправлена при следующей синхронизации.

Пример:
  stocksync txn add --action SALE --sku A1 --qty -1 --name "Масло 5W30"`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		quantity, err := decimal.NewFromString(qty)
		if err != nil {
			return fmt.Errorf("неверное количество %q: %w", qty, err)
		}

		var metadata json.RawMessage
		if meta != "" {
			if !json.Valid([]byte(meta)) {
				return fmt.Errorf("метаданные должны быть корректным JSON")
			}
			metadata = json.RawMessage(meta)
		}

		txn, err := app.AddTransaction(cmd.Context(), client.NewTransaction{
			ActionType:     action,
			ItemSKU:        sku,
			ItemName:       name,
			QuantityChange: quantity,
			OldValue:       oldValue,
			NewValue:       newValue,
			Metadata:       metadata,
		})
		if err != nil {
			return fmt.Errorf("ошибка записи операции: %w", err)
		}

		color.Green("✓ Операция записана")
		fmt.Printf("  ID: %s\n", txn.ID)
		fmt.Printf("  %s %s %s\n", txn.ActionType, txn.ItemSKU, txn.QuantityChange.String())

		return nil
	},
}

func init() {
	AddCmd.Flags().StringVarP(&action, "action", "a", "", "тип операции (SALE, RECEIPT, ADJUST, ...)")
	AddCmd.Flags().StringVar(&sku, "sku", "", "артикул товара")
	AddCmd.Flags().StringVarP(&name, "name", "n", "", "название товара")
	AddCmd.Flags().StringVarP(&qty, "qty", "q", "0", "изменение количества со знаком")
	AddCmd.Flags().StringVar(&oldValue, "old", "", "значение до операции")
	AddCmd.Flags().StringVar(&newValue, "new", "", "значение после операции")
	AddCmd.Flags().StringVar(&meta, "meta", "", "метаданные в формате JSON")

	_ = AddCmd.MarkFlagRequired("action")
}
