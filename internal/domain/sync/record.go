package sync

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Границы количества: не больше 38 значащих цифр и 38 знаков дробной части
const (
	maxQuantityText   = 80
	maxQuantityDigits = 38
)

var errMissingActionType = errors.New("missing action_type")

// reject учитывает запись, отклоненную без остановки пакета
func (r *PushResult) reject(index int, id string, err error) {
	r.Failed++
	r.Errors = append(r.Errors, fmt.Sprintf("transaction %d (%s): %v", index, id, err))
}

// buildTransaction разбирает запись и заполняет ее данными вызывающего.
// Дилер и устройство всегда берутся из авторизации, а не из тела записи.
func buildTransaction(caller Caller, in IncomingTransaction, now time.Time) (*Transaction, error) {
	if in.DecodeErr != nil {
		return nil, in.DecodeErr
	}

	action := strings.TrimSpace(in.ActionType)
	if action == "" {
		return nil, errMissingActionType
	}

	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}

	quantity, err := ParseQuantity(in.QuantityChange)
	if err != nil {
		return nil, err
	}

	txnTime, err := parseTransactionTime(in.TransactionTime, now)
	if err != nil {
		return nil, err
	}

	txn := &Transaction{
		ID:               id,
		TenantID:         caller.TenantID,
		DeviceIdentifier: caller.DeviceIdentifier,
		ActionType:       action,
		ItemSKU:          in.ItemSKU,
		ItemName:         in.ItemName,
		QuantityChange:   quantity,
		OldValue:         in.OldValue,
		NewValue:         in.NewValue,
		Metadata:         EncodeMetadata(in.Metadata),
		TransactionTime:  txnTime,
	}

	if err := checkStorable(txn); err != nil {
		return nil, err
	}

	return txn, nil
}

// ParseQuantity разбирает знаковое изменение количества без потери точности
func ParseQuantity(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	if len(s) > maxQuantityText {
		return decimal.Zero, fmt.Errorf("quantity_change is too long")
	}

	q, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid quantity_change %q", s)
	}

	// Экспонента проверяется до любых вычислений с числом
	exp := int(q.Exponent())
	if exp < -maxQuantityDigits || exp > maxQuantityDigits || q.NumDigits()+exp > maxQuantityDigits {
		return decimal.Zero, fmt.Errorf("quantity_change %q is out of range", s)
	}

	return q, nil
}

func parseTransactionTime(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now, nil
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid transaction_time %q: expected RFC 3339", s)
	}
	return t, nil
}

// checkStorable отклоняет текст, который хранилище не примет: NUL и невалидный UTF-8
func checkStorable(txn *Transaction) error {
	fields := []struct {
		name  string
		value string
	}{
		{"id", txn.ID},
		{"action_type", txn.ActionType},
		{"item_sku", txn.ItemSKU},
		{"item_name", txn.ItemName},
		{"old_value", txn.OldValue},
		{"new_value", txn.NewValue},
	}

	for _, f := range fields {
		if strings.IndexByte(f.value, 0) >= 0 || !utf8.ValidString(f.value) {
			return fmt.Errorf("%s contains NUL or invalid UTF-8", f.name)
		}
	}
	if bytes.IndexByte(txn.Metadata, 0) >= 0 || !utf8.Valid(txn.Metadata) {
		return fmt.Errorf("metadata contains NUL or invalid UTF-8")
	}

	return nil
}
