package sync

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction неизменяемая запись журнала операций дилера.
// ID задается устройством и глобально уникален, по нему работает идемпотентность.
type Transaction struct {
	ID               string
	TenantID         string
	DeviceIdentifier string
	ActionType       string
	ItemSKU          string
	ItemName         string
	QuantityChange   decimal.Decimal
	OldValue         string
	NewValue         string
	// Metadata хранится как есть и декодируется только при выдаче
	Metadata        []byte
	TransactionTime time.Time
	// SyncedAt серверная последовательность внутри дилера, курсор pull
	SyncedAt   int64
	AcceptedAt time.Time
}

// AppendResult результат добавления записи в журнал
type AppendResult int

const (
	Inserted AppendResult = iota + 1
	AlreadyExists
)

func (r AppendResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case AlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// Device запись присутствия устройства, одна на пару (дилер, устройство)
type Device struct {
	TenantID            string
	DeviceIdentifier    string
	LicenseID           string
	DeviceName          string
	LastSyncAt          time.Time
	LastIP              string
	PendingTransactions int
	CreatedAt           time.Time
}

// DeviceTouch входящий контакт устройства (push, pull или heartbeat)
type DeviceTouch struct {
	TenantID         string
	DeviceIdentifier string
	LicenseID        string
	IP               string
	Name             string
	// PendingCount nil, если устройство не сообщало счетчик
	PendingCount *int
	At           time.Time
}

// SyncState служебные отметки последнего push и непустого pull
type SyncState struct {
	TenantID         string
	DeviceIdentifier string
	LastSentAt       *time.Time
	LastReceivedAt   *time.Time
}

// Status вычисляемое состояние устройства
type Status string

const (
	StatusOnline  Status = "online"
	StatusIdle    Status = "idle"
	StatusOffline Status = "offline"
)

// Thresholds границы классификации присутствия
type Thresholds struct {
	Online time.Duration
	Idle   time.Duration
}

// DeviceView устройство вместе со статусом, рассчитанным на момент чтения
type DeviceView struct {
	Device
	Status Status
}

// Caller авторизованный вызывающий: дилер и лицензия берутся только из гранта
type Caller struct {
	TenantID         string
	LicenseID        string
	DeviceIdentifier string
	IP               string
}

// ServiceConfig конфигурация сервиса синхронизации
type ServiceConfig struct {
	PullPageSize int
	Thresholds   Thresholds
}
