package activity

import (
	"context"
	"time"
)

// Типы событий журнала активности
const (
	EventSyncPush = "SYNC_PUSH"
)

// Entry событие журнала активности дилера
type Entry struct {
	TenantID    string
	EventType   string
	Description string
	OriginIP    string
	CreatedAt   time.Time
}

// Logger принимает события без ожидания записи. Ошибки наружу не возвращаются.
type Logger interface {
	LogActivity(ctx context.Context, entry Entry)
}

// Repository хранилище журнала активности
type Repository interface {
	InsertActivity(ctx context.Context, entry Entry) error
}
