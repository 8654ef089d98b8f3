package cmd

import (
	"fmt"
	"os"

	"stocksync/internal/app/client"
	"stocksync/internal/app/client/config"
	"stocksync/internal/utils/logger"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	serverURL string
	debug     bool
)

var rootCmd = &cobra.Command{
	Use:   "stocksync",
	Short: "Stocksync - агент синхронизации склада для кассовых устройств",
	Long: `Stocksync ведет локальный журнал складских операций устройства
и обменивается им с облачным ретранслятором дилера.

Операции сначала записываются локально и отправляются при синхронизации,
поэтому устройство продолжает работать без сети.`,
	PersistentPreRunE:  setupApp,
	PersistentPostRunE: closeApp,
	SilenceUsage:       true,
	SilenceErrors:      true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	if serverURL != "" {
		cfg.ServerAddress = serverURL
	}
	if debug {
		cfg.Env = "local"
	}

	log := logger.New(cfg.Env, "")

	app, err := client.New(cfg, log)
	if err != nil {
		return fmt.Errorf("ошибка инициализации приложения: %w", err)
	}

	cmd.SetContext(client.WithApp(cmd.Context(), app))
	return nil
}

func closeApp(cmd *cobra.Command, _ []string) error {
	app, err := client.FromContext(cmd.Context())
	if err != nil {
		return nil
	}
	return app.Close()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "конфигурационный файл (по умолчанию ~/.stocksync/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "адрес ретранслятора")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "включить отладочный вывод")
}
