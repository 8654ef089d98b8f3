package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPath  = ".env"
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

const (
	defaultRunAddress      = ":8080"
	defaultMigrations      = "migrations"
	defaultPullPageSize    = 1000
	defaultOnlineWindow    = 10 * time.Minute
	defaultIdleWindow      = 60 * time.Minute
	defaultActivityBuffer  = 256
	defaultShutdownTimeout = 15 * time.Second
)

type Config struct {
	Env      string
	DB       DB
	Server   Server
	Logger   Logger
	Sync     Sync
	Activity Activity
}

type DB struct {
	DatabaseURI string `env:"DATABASE_URI"`
	Migrations  string `env:"MIGRATIONS_PATH"`
}

type Server struct {
	RunAddress      string        `env:"RUN_ADDRESS"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`
}

type Logger struct {
	// LogLevel пусто означает уровень по окружению
	LogLevel string `env:"LOG_LEVEL"`
}

// Sync параметры движка синхронизации
type Sync struct {
	PullPageSize int           `env:"PULL_PAGE_SIZE"`
	OnlineWindow time.Duration `env:"ONLINE_WINDOW"`
	IdleWindow   time.Duration `env:"IDLE_WINDOW"`
}

type Activity struct {
	Buffer int `env:"ACTIVITY_BUFFER"`
}

// MustLoad читает .env (если есть) и переменные окружения
func MustLoad() *Config {
	if err := godotenv.Load(envPath); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	v := viper.New()
	v.AutomaticEnv()

	return Load(v)
}

// Load собирает конфигурацию из переданного viper, подставляя значения по умолчанию
func Load(v *viper.Viper) *Config {
	v.SetDefault("app_env", EnvLocal)
	v.SetDefault("run_address", defaultRunAddress)
	v.SetDefault("migrations_path", defaultMigrations)
	v.SetDefault("pull_page_size", defaultPullPageSize)
	v.SetDefault("online_window", defaultOnlineWindow)
	v.SetDefault("idle_window", defaultIdleWindow)
	v.SetDefault("activity_buffer", defaultActivityBuffer)
	v.SetDefault("shutdown_timeout", defaultShutdownTimeout)

	config := Config{
		Env: v.GetString("app_env"),
		DB: DB{
			DatabaseURI: v.GetString("database_uri"),
			Migrations:  v.GetString("migrations_path"),
		},
		Server: Server{
			RunAddress:      v.GetString("run_address"),
			ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		},
		Logger: Logger{LogLevel: v.GetString("log_level")},
		Sync: Sync{
			PullPageSize: v.GetInt("pull_page_size"),
			OnlineWindow: v.GetDuration("online_window"),
			IdleWindow:   v.GetDuration("idle_window"),
		},
		Activity: Activity{Buffer: v.GetInt("activity_buffer")},
	}

	if config.Sync.PullPageSize <= 0 {
		config.Sync.PullPageSize = defaultPullPageSize
	}
	if config.Sync.IdleWindow < config.Sync.OnlineWindow {
		config.Sync.IdleWindow = config.Sync.OnlineWindow
	}

	return &config
}
