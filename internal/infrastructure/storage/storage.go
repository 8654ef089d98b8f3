package storage

import "context"

// Storage общее хранилище сервера. Репозитории строятся поверх него,
// health-проверка использует Ping.
type Storage interface {
	Ping(ctx context.Context) error
	Close() error
}
