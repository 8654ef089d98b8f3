package client

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// LocalTransaction запись локального журнала устройства (outbox)
type LocalTransaction struct {
	ID              string          `json:"id"`
	ActionType      string          `json:"action_type"`
	ItemSKU         string          `json:"item_sku,omitempty"`
	ItemName        string          `json:"item_name,omitempty"`
	QuantityChange  decimal.Decimal `json:"quantity_change"`
	OldValue        string          `json:"old_value,omitempty"`
	NewValue        string          `json:"new_value,omitempty"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
	TransactionTime time.Time       `json:"transaction_time"`
	SentAt          *time.Time      `json:"-"`
}

// RemoteTransaction запись другого устройства, полученная через pull (inbox)
type RemoteTransaction struct {
	ID               string          `json:"id"`
	DeviceIdentifier string          `json:"device_identifier"`
	ActionType       string          `json:"action_type"`
	ItemSKU          string          `json:"item_sku,omitempty"`
	ItemName         string          `json:"item_name,omitempty"`
	QuantityChange   decimal.Decimal `json:"quantity_change"`
	OldValue         string          `json:"old_value,omitempty"`
	NewValue         string          `json:"new_value,omitempty"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
	TransactionTime  time.Time       `json:"transaction_time"`
	SyncedAt         int64           `json:"synced_at"`
}

// NewTransaction параметры команды txn add
type NewTransaction struct {
	ActionType     string
	ItemSKU        string
	ItemName       string
	QuantityChange decimal.Decimal
	OldValue       string
	NewValue       string
	Metadata       json.RawMessage
}

// Stats локальные счетчики агента
type Stats struct {
	Outbox     int
	Pending    int
	Inbox      int
	Cursor     int64
	LastPushAt *time.Time
	LastPullAt *time.Time
}

// SyncResult итог одного цикла синхронизации
type SyncResult struct {
	Pushed   int
	Inserted int
	Skipped  int
	Failed   int
	Errors   []string
	Pulled   int
	Applied  int
	Cursor   int64
}

// Запросы и ответы ретранслятора
type pushRequest struct {
	DeviceIdentifier string             `json:"device_identifier"`
	Transactions     []LocalTransaction `json:"transactions"`
}

type PushResponse struct {
	Success   bool      `json:"success"`
	Inserted  int       `json:"inserted"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Errors    []string  `json:"errors,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type pullRequest struct {
	DeviceIdentifier string `json:"device_identifier"`
	Since            int64  `json:"since"`
	Limit            int    `json:"limit,omitempty"`
}

type PullResponse struct {
	Success      bool                `json:"success"`
	Transactions []RemoteTransaction `json:"transactions"`
	Count        int                 `json:"count"`
	NextCursor   int64               `json:"next_cursor"`
	HasMore      bool                `json:"has_more"`
	Timestamp    time.Time           `json:"timestamp"`
}

type heartbeatRequest struct {
	DeviceIdentifier string `json:"device_identifier"`
	DeviceName       string `json:"device_name,omitempty"`
	PendingCount     int    `json:"pending_count"`
}

type HeartbeatResponse struct {
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}
