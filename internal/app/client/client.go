package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stocksync/internal/app/client/config"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

type App struct {
	config  *config.Config
	log     *slog.Logger
	storage Storage
	relay   Relay
	sync    *SyncService
}

type appKey struct{}

// WithApp кладет приложение в контекст команды
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey{}, app)
}

// FromContext достает приложение из контекста команды
func FromContext(ctx context.Context) (*App, error) {
	app, ok := ctx.Value(appKey{}).(*App)
	if !ok || app == nil {
		return nil, fmt.Errorf("приложение не инициализировано")
	}
	return app, nil
}

func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	storage, err := NewSQLiteStorage(cfg.DataPath)
	if err != nil {
		return nil, err
	}

	return NewWith(cfg, log, storage, NewHTTPClient(cfg, log)), nil
}

// NewWith собирает приложение из готовых зависимостей
func NewWith(cfg *config.Config, log *slog.Logger, storage Storage, relay Relay) *App {
	return &App{
		config:  cfg,
		log:     log,
		storage: storage,
		relay:   relay,
		sync:    NewSyncService(storage, relay, log, cfg.BatchSize),
	}
}

func (a *App) Config() *config.Config {
	return a.config
}

func (a *App) IsInitialized() bool {
	return a.config.Validate() == nil
}

// AddTransaction записывает локальную операцию в outbox
func (a *App) AddTransaction(ctx context.Context, in NewTransaction) (*LocalTransaction, error) {
	action := strings.ToUpper(strings.TrimSpace(in.ActionType))
	if action == "" {
		return nil, fmt.Errorf("тип операции обязателен")
	}

	txn := &LocalTransaction{
		ID:              uuid.NewString(),
		ActionType:      action,
		ItemSKU:         strings.TrimSpace(in.ItemSKU),
		ItemName:        strings.TrimSpace(in.ItemName),
		QuantityChange:  in.QuantityChange,
		OldValue:        in.OldValue,
		NewValue:        in.NewValue,
		Metadata:        in.Metadata,
		TransactionTime: time.Now().UTC(),
	}

	if err := a.storage.AddTransaction(ctx, txn); err != nil {
		return nil, err
	}

	a.log.Debug("Операция записана", "id", txn.ID, "action_type", txn.ActionType)
	return txn, nil
}

func (a *App) Sync(ctx context.Context) (*SyncResult, error) {
	if err := a.config.Validate(); err != nil {
		return nil, err
	}
	return a.sync.Sync(ctx)
}

// Heartbeat сообщает ретранслятору имя устройства и число неотправленных записей
func (a *App) Heartbeat(ctx context.Context) (time.Time, int, error) {
	if err := a.config.Validate(); err != nil {
		return time.Time{}, 0, err
	}

	pending, err := a.storage.PendingCount(ctx)
	if err != nil {
		return time.Time{}, 0, err
	}

	resp, err := a.relay.Heartbeat(ctx, a.config.DeviceName, pending)
	if err != nil {
		return time.Time{}, pending, fmt.Errorf("ошибка отправки heartbeat: %w", err)
	}

	return resp.Timestamp, pending, nil
}

func (a *App) Stats(ctx context.Context) (*Stats, error) {
	return a.storage.Stats(ctx)
}

func (a *App) CheckConnection(ctx context.Context) error {
	return a.relay.HealthCheck(ctx)
}

func (a *App) Close() error {
	return a.storage.Close()
}
