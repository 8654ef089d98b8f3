package sync

import (
	"bytes"
	"encoding/json"
)

// UnparseableMetadata подставляется вместо метаданных, которые не удалось разобрать
var UnparseableMetadata = json.RawMessage(`{"unparseable":true}`)

// DecodeMetadata возвращает сохраненные метаданные для ответа.
// Пустое значение и JSON null дают nil, битый JSON заменяется маркером (ok = false).
func DecodeMetadata(raw []byte) (meta json.RawMessage, ok bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, true
	}
	if !json.Valid(trimmed) {
		return UnparseableMetadata, false
	}
	return json.RawMessage(trimmed), true
}

// EncodeMetadata готовит метаданные к хранению без изменения содержимого
func EncodeMetadata(raw json.RawMessage) []byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return []byte(trimmed)
}
