package sync

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stocksync/internal/domain/sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shopspring/decimal"
)

// quantity знаковое изменение количества, отдается числом без потери точности
type quantity struct {
	decimal.Decimal
}

func (quantity) Schema(_ huma.Registry) *huma.Schema {
	return &huma.Schema{
		Description: "Signed quantity delta",
		Examples:    []any{-1},
	}
}

func (q quantity) MarshalJSON() ([]byte, error) {
	return []byte(q.Decimal.String()), nil
}

// Credentials общие поля тела. Сами ключи проверяет middleware.
type Credentials struct {
	LicenseKey string `json:"license_key,omitempty" doc:"License key, may be sent in X-License-Key instead"`
	TenantID   string `json:"tenant_id,omitempty" doc:"Dealer id, may be sent in X-Dealer-Id instead"`
	DealerID   string `json:"dealer_id,omitempty" doc:"Legacy alias of tenant_id"`
}

func (c Credentials) tenant() string {
	if c.TenantID != "" {
		return c.TenantID
	}
	return c.DealerID
}

// Push
type pushInput struct {
	Body PushRequest
}

type pushOutput struct {
	Body PushResponse
}

type PushRequest struct {
	_ struct{} `json:"-" additionalProperties:"true"`
	Credentials
	DeviceIdentifier string `json:"device_identifier,omitempty" maxLength:"255"`
	// Transactions разбираются по одной в decodeTransaction, испорченная запись
	// попадает в failed и не отклоняет пакет
	Transactions []json.RawMessage `json:"transactions,omitempty" doc:"Records with id, action_type, item_sku, item_name, quantity_change, old_value, new_value, metadata, transaction_time"`
}

// transactionFields поля записи до разбора
type transactionFields struct {
	ID              json.RawMessage `json:"id"`
	ActionType      json.RawMessage `json:"action_type"`
	ItemSKU         json.RawMessage `json:"item_sku"`
	ItemName        json.RawMessage `json:"item_name"`
	QuantityChange  json.RawMessage `json:"quantity_change"`
	OldValue        json.RawMessage `json:"old_value"`
	NewValue        json.RawMessage `json:"new_value"`
	Metadata        json.RawMessage `json:"metadata"`
	TransactionTime json.RawMessage `json:"transaction_time"`
}

var (
	errNotObject = errors.New("transaction must be a JSON object")
	errNotScalar = errors.New("expected a string or a number")
)

// decodeTransaction никогда не отклоняет запись сам: ошибка разбора уходит
// в DecodeErr и учитывается сервисом как отказ одной записи.
func decodeTransaction(raw json.RawMessage) sync.IncomingTransaction {
	var f transactionFields
	if err := json.Unmarshal(raw, &f); err != nil {
		return sync.IncomingTransaction{DecodeErr: errNotObject}
	}

	in := sync.IncomingTransaction{
		OldValue: opaqueText(f.OldValue),
		NewValue: opaqueText(f.NewValue),
		Metadata: f.Metadata,
	}

	scalars := []struct {
		name string
		raw  json.RawMessage
		dst  *string
	}{
		{"id", f.ID, &in.ID},
		{"action_type", f.ActionType, &in.ActionType},
		{"item_sku", f.ItemSKU, &in.ItemSKU},
		{"item_name", f.ItemName, &in.ItemName},
		{"quantity_change", f.QuantityChange, &in.QuantityChange},
		{"transaction_time", f.TransactionTime, &in.TransactionTime},
	}
	for _, sc := range scalars {
		v, err := scalarText(sc.raw)
		if err != nil {
			if in.DecodeErr == nil {
				in.DecodeErr = fmt.Errorf("invalid %s: %w", sc.name, err)
			}
			continue
		}
		*sc.dst = v
	}

	return in
}

// scalarText строку отдает без кавычек, число и bool как записаны в JSON
func scalarText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		return "", errNotScalar
	default:
		return string(raw), nil
	}
}

// opaqueText значение снимка: строка хранится как есть, любой другой JSON текстом
func opaqueText(raw json.RawMessage) string {
	if s, err := scalarText(raw); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

type PushResponse struct {
	Success   bool      `json:"success"`
	Inserted  int       `json:"inserted"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Errors    []string  `json:"errors,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Pull
type pullInput struct {
	Body PullRequest
}

type pullOutput struct {
	Body PullResponse
}

type PullRequest struct {
	_ struct{} `json:"-" additionalProperties:"true"`
	Credentials
	DeviceIdentifier string `json:"device_identifier,omitempty" maxLength:"255"`
	Since            int64  `json:"since,omitempty" minimum:"0" doc:"Largest synced_at already applied by the device"`
	Limit            int    `json:"limit,omitempty" minimum:"0" doc:"Page size, capped by the server"`
}

type PullResponse struct {
	Success      bool              `json:"success"`
	Transactions []TransactionView `json:"transactions"`
	Count        int               `json:"count"`
	NextCursor   int64             `json:"next_cursor"`
	HasMore      bool              `json:"has_more"`
	Timestamp    time.Time         `json:"timestamp"`
}

type TransactionView struct {
	ID               string          `json:"id"`
	TenantID         string          `json:"tenant_id"`
	DeviceIdentifier string          `json:"device_identifier"`
	ActionType       string          `json:"action_type"`
	ItemSKU          string          `json:"item_sku,omitempty"`
	ItemName         string          `json:"item_name,omitempty"`
	QuantityChange   quantity        `json:"quantity_change"`
	OldValue         string          `json:"old_value,omitempty"`
	NewValue         string          `json:"new_value,omitempty"`
	Metadata         json.RawMessage `json:"metadata"`
	TransactionTime  time.Time       `json:"transaction_time"`
	SyncedAt         int64           `json:"synced_at"`
	AcceptedAt       time.Time       `json:"accepted_at"`
}

// Heartbeat
type heartbeatInput struct {
	Body HeartbeatRequest
}

type heartbeatOutput struct {
	Body HeartbeatResponse
}

type HeartbeatRequest struct {
	_ struct{} `json:"-" additionalProperties:"true"`
	Credentials
	DeviceIdentifier string `json:"device_identifier,omitempty" maxLength:"255"`
	DeviceName       string `json:"device_name,omitempty" maxLength:"255"`
	PendingCount     *int   `json:"pending_count,omitempty" minimum:"0"`
}

type HeartbeatResponse struct {
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}

// Devices
type devicesInput struct{}

type devicesOutput struct {
	Body DevicesResponse
}

type DevicesResponse struct {
	Success   bool         `json:"success"`
	Devices   []DeviceView `json:"devices"`
	Timestamp time.Time    `json:"timestamp"`
}

type DeviceView struct {
	DeviceIdentifier    string    `json:"device_identifier"`
	DeviceName          string    `json:"device_name,omitempty"`
	LicenseID           string    `json:"license_id,omitempty"`
	LastSyncAt          time.Time `json:"last_sync_at"`
	LastIP              string    `json:"last_ip,omitempty"`
	PendingTransactions int       `json:"pending_transactions"`
	Status              string    `json:"status" enum:"online,idle,offline"`
}
