package sync

import (
	"context"
	"time"
)

// Repository интерфейс хранилища движка синхронизации.
// Все методы обязаны фильтровать по tenantID.
type Repository interface {
	// Журнал операций
	AppendTransaction(ctx context.Context, txn *Transaction) (AppendResult, error)
	QueryAfter(ctx context.Context, tenantID, excludingDevice string, cursor int64, limit int) ([]*Transaction, error)

	// Присутствие устройств
	GetDevice(ctx context.Context, tenantID, deviceIdentifier string) (*Device, error)
	SaveDevice(ctx context.Context, device *Device) error
	ListDevices(ctx context.Context, tenantID string) ([]*Device, error)

	// Служебные отметки синхронизации
	MarkSent(ctx context.Context, tenantID, deviceIdentifier string, at time.Time) error
	MarkReceived(ctx context.Context, tenantID, deviceIdentifier string, at time.Time) error
}
