package sync

import "errors"

var (
	ErrValidation         = errors.New("validation failed")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrDeviceNotFound     = errors.New("device not found")

	// ErrInvalidRecord хранилище отвергло содержимое записи, повтор не поможет
	ErrInvalidRecord = errors.New("invalid record")
)
