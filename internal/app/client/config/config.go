package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "STOCKSYNC"
	defaultServerAddress = "localhost:8080"
	defaultEnv           = "prod"
	defaultConfigDir     = ".stocksync"
	defaultBatchSize     = 200
	configName           = "config"
	configType           = "yaml"
)

type Config struct {
	Env              string `mapstructure:"app_env"`
	ServerAddress    string `mapstructure:"server_address"`
	EnableTLS        bool   `mapstructure:"enable_tls"`
	TenantID         string `mapstructure:"tenant_id"`
	LicenseKey       string `mapstructure:"license_key"`
	DeviceIdentifier string `mapstructure:"device_identifier"`
	DeviceName       string `mapstructure:"device_name"`
	BatchSize        int    `mapstructure:"batch_size"`
	ConfigDir        string `mapstructure:"config_dir"`
	DataPath         string `mapstructure:"data_path"`
	ConfigFile       string `mapstructure:"-"`
}

// Load читает yaml-файл (явный путь или ~/.stocksync/config.yaml) и переменные STOCKSYNC_*.
// Отсутствие файла не ошибка: агент еще не прошел init.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	configDir := filepath.Join(home, defaultConfigDir)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		configDir = filepath.Dir(cfgFile)
	} else {
		v.AddConfigPath(configDir)
		v.SetConfigName(configName)
		v.SetConfigType(configType)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("ошибка чтения конфигурации: %w", err)
		}
	}

	cfg, err := FromViper(v, configDir)
	if err != nil {
		return nil, err
	}

	cfg.ConfigFile = v.ConfigFileUsed()
	if cfg.ConfigFile == "" {
		cfg.ConfigFile = filepath.Join(configDir, configName+"."+configType)
	}

	return cfg, nil
}

// FromViper собирает конфигурацию из viper с подстановкой значений по умолчанию
func FromViper(v *viper.Viper, configDir string) (*Config, error) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app_env", defaultEnv)
	v.SetDefault("server_address", defaultServerAddress)
	v.SetDefault("enable_tls", false)
	v.SetDefault("batch_size", defaultBatchSize)
	v.SetDefault("config_dir", configDir)

	// AutomaticEnv не видит ключи без значения по умолчанию при Unmarshal
	for _, key := range []string{"tenant_id", "license_key", "device_identifier", "device_name", "data_path"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("ошибка привязки переменной %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации: %w", err)
	}

	if cfg.DataPath == "" {
		cfg.DataPath = filepath.Join(cfg.ConfigDir, "agent.db")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	return &cfg, nil
}

// Validate проверяет, что агент настроен для обмена с ретранслятором
func (c *Config) Validate() error {
	switch {
	case c.ServerAddress == "":
		return fmt.Errorf("server_address не может быть пустым")
	case c.TenantID == "":
		return fmt.Errorf("tenant_id не задан, выполните stocksync init")
	case c.LicenseKey == "":
		return fmt.Errorf("license_key не задан, выполните stocksync init")
	case c.DeviceIdentifier == "":
		return fmt.Errorf("device_identifier не задан, выполните stocksync init")
	}
	return nil
}

// BaseURL адрес ретранслятора со схемой
func (c *Config) BaseURL() string {
	if strings.HasPrefix(c.ServerAddress, "http://") || strings.HasPrefix(c.ServerAddress, "https://") {
		return strings.TrimRight(c.ServerAddress, "/")
	}
	scheme := "http://"
	if c.EnableTLS {
		scheme = "https://"
	}
	return scheme + strings.TrimRight(c.ServerAddress, "/")
}

// Save записывает настраиваемые поля в yaml-файл конфигурации
func (c *Config) Save() error {
	if err := os.MkdirAll(filepath.Dir(c.ConfigFile), 0o700); err != nil {
		return fmt.Errorf("ошибка создания директории конфигурации: %w", err)
	}

	v := viper.New()
	v.SetConfigType(configType)
	v.Set("app_env", c.Env)
	v.Set("server_address", c.ServerAddress)
	v.Set("enable_tls", c.EnableTLS)
	v.Set("tenant_id", c.TenantID)
	v.Set("license_key", c.LicenseKey)
	v.Set("device_identifier", c.DeviceIdentifier)
	v.Set("device_name", c.DeviceName)
	v.Set("batch_size", c.BatchSize)
	v.Set("data_path", c.DataPath)

	if err := v.WriteConfigAs(c.ConfigFile); err != nil {
		return fmt.Errorf("ошибка записи конфигурации: %w", err)
	}

	return os.Chmod(c.ConfigFile, 0o600)
}
