package sync

import (
	"encoding/json"
	"time"
)

// DTO сервиса синхронизации. HTTP-слой переводит в них тела запросов.

// IncomingTransaction запись, присланная устройством, в виде текста.
// Разбор и проверка выполняются по каждой записи отдельно, ошибка одной записи
// не мешает остальным.
type IncomingTransaction struct {
	ID         string
	ActionType string
	ItemSKU    string
	ItemName   string
	// QuantityChange десятичное число текстом, пусто означает 0
	QuantityChange string
	OldValue       string
	NewValue       string
	Metadata       json.RawMessage
	// TransactionTime время в RFC 3339, пусто означает время приема
	TransactionTime string
	// DecodeErr запись не удалось разобрать на стороне транспорта
	DecodeErr error
}

// PushRequest пакет записей от одного устройства
type PushRequest struct {
	Transactions []IncomingTransaction
}

// PushResult итог обработки пакета
type PushResult struct {
	Inserted  int
	Skipped   int
	Failed    int
	Errors    []string
	Timestamp time.Time
}

// PullRequest запрос записей других устройств после курсора
type PullRequest struct {
	Since int64
	Limit int
}

// PulledTransaction запись в ответе pull с уже декодированными метаданными
type PulledTransaction struct {
	Transaction
	Metadata json.RawMessage
}

// PullResult страница записей
type PullResult struct {
	Transactions []PulledTransaction
	NextCursor   int64
	HasMore      bool
	Timestamp    time.Time
}

// HeartbeatRequest отметка присутствия без обмена данными
type HeartbeatRequest struct {
	DeviceName   string
	PendingCount *int
}
