package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"stocksync/cmd/client/cmd/sync"
	"stocksync/cmd/client/cmd/txn"
	"stocksync/internal/app/client"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	initServer string
	initTenant string
	initDevice string
	initName   string
	initKey    string
	initTLS    bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Настроить агент устройства",
	Long: `Команда init сохраняет в конфигурацию адрес ретранслятора, идентификатор
дилера, ключ лицензии и идентификатор устройства.

Если идентификатор устройства не указан, он генерируется один раз и больше
не меняется: по нему ретранслятор исключает собственные записи устройства из pull.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}
		cfg := app.Config()
		reader := bufio.NewReader(os.Stdin)

		fmt.Println("=== Настройка Stocksync ===")
		fmt.Println()

		if initServer != "" {
			cfg.ServerAddress = initServer
		}
		if cmd.Flags().Changed("tls") {
			cfg.EnableTLS = initTLS
		}

		if initTenant != "" {
			cfg.TenantID = initTenant
		}
		if cfg.TenantID == "" {
			if cfg.TenantID, err = prompt(reader, "Идентификатор дилера: "); err != nil {
				return err
			}
		}

		if initKey != "" {
			cfg.LicenseKey = initKey
		}
		if cfg.LicenseKey == "" {
			if cfg.LicenseKey, err = promptSecret(reader, "Ключ лицензии: "); err != nil {
				return err
			}
		}

		if initDevice != "" {
			cfg.DeviceIdentifier = initDevice
		}
		if cfg.DeviceIdentifier == "" {
			cfg.DeviceIdentifier = uuid.NewString()
		}
		if initName != "" {
			cfg.DeviceName = initName
		}

		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}

		color.Green("✓ Конфигурация сохранена: %s", cfg.ConfigFile)
		fmt.Printf("  Устройство: %s\n", cfg.DeviceIdentifier)

		fmt.Println("Проверка соединения с сервером...")
		if err := app.CheckConnection(cmd.Context()); err != nil {
			color.Yellow("⚠ Сервер недоступен: %v", err)
			fmt.Println("Операции будут копиться локально до следующей синхронизации.")
		} else {
			color.Green("✓ Соединение с сервером установлено")
		}

		fmt.Println()
		fmt.Println("Что дальше:")
		fmt.Println("1. Запишите операцию: stocksync txn add --action SALE --sku A1 --qty -1")
		fmt.Println("2. Синхронизируйте: stocksync sync")

		return nil
	},
}

func prompt(reader *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("ошибка чтения ввода: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// promptSecret читает значение без эха, если stdin это терминал
func promptSecret(reader *bufio.Reader, label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(reader, label)
	}

	fmt.Print(label)
	secret, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("ошибка чтения ключа: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}

func init() {
	initCmd.Flags().StringVar(&initServer, "address", "", "адрес ретранслятора (host:port или URL)")
	initCmd.Flags().BoolVar(&initTLS, "tls", false, "использовать https")
	initCmd.Flags().StringVar(&initTenant, "tenant", "", "идентификатор дилера")
	initCmd.Flags().StringVar(&initKey, "license-key", "", "ключ лицензии")
	initCmd.Flags().StringVar(&initDevice, "device", "", "идентификатор устройства")
	initCmd.Flags().StringVar(&initName, "name", "", "имя устройства")

	rootCmd.AddCommand(initCmd)

	rootCmd.AddCommand(txn.TxnCmd)
	txn.TxnCmd.AddCommand(txn.AddCmd)

	rootCmd.AddCommand(sync.SyncCmd)
	rootCmd.AddCommand(heartbeatCmd)
	rootCmd.AddCommand(statusCmd)
}
