package license

import "context"

// Repository интерфейс для чтения лицензий
type Repository interface {
	// FindByKey возвращает ErrLicenseNotFound, если ключ неизвестен
	FindByKey(ctx context.Context, key string) (*License, error)
}
