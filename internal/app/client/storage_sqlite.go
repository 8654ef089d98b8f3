package client

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS outbox (
	id               TEXT PRIMARY KEY,
	action_type      TEXT NOT NULL,
	item_sku         TEXT NOT NULL DEFAULT '',
	item_name        TEXT NOT NULL DEFAULT '',
	quantity_change  TEXT NOT NULL DEFAULT '0',
	old_value        TEXT NOT NULL DEFAULT '',
	new_value        TEXT NOT NULL DEFAULT '',
	metadata         BLOB,
	transaction_time TEXT NOT NULL,
	sent_at          TEXT
);
CREATE INDEX IF NOT EXISTS idx_outbox_unsent ON outbox(sent_at, transaction_time);

CREATE TABLE IF NOT EXISTS inbox (
	id                TEXT PRIMARY KEY,
	device_identifier TEXT NOT NULL,
	action_type       TEXT NOT NULL,
	item_sku          TEXT NOT NULL DEFAULT '',
	item_name         TEXT NOT NULL DEFAULT '',
	quantity_change   TEXT NOT NULL DEFAULT '0',
	old_value         TEXT NOT NULL DEFAULT '',
	new_value         TEXT NOT NULL DEFAULT '',
	metadata          BLOB,
	transaction_time  TEXT NOT NULL,
	synced_at         INTEGER NOT NULL,
	received_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_state (
	id           INTEGER PRIMARY KEY CHECK (id = 1),
	cursor       INTEGER NOT NULL DEFAULT 0,
	last_push_at TEXT,
	last_pull_at TEXT
);
INSERT OR IGNORE INTO sync_state (id, cursor) VALUES (1, 0);
`

// Storage локальное хранилище агента
type Storage interface {
	AddTransaction(ctx context.Context, txn *LocalTransaction) error
	Unsent(ctx context.Context, limit int) ([]LocalTransaction, error)
	MarkSent(ctx context.Context, ids []string, at time.Time) error
	PendingCount(ctx context.Context) (int, error)
	Cursor(ctx context.Context) (int64, error)
	ApplyRemote(ctx context.Context, txns []RemoteTransaction, nextCursor int64, at time.Time) (int, error)
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("ошибка создания директории данных: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы данных: %w", err)
	}

	// SQLite допускает одного писателя
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка настройки базы данных: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка инициализации таблиц: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

func (s *SQLiteStorage) AddTransaction(ctx context.Context, txn *LocalTransaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outbox (id, action_type, item_sku, item_name, quantity_change,
		                    old_value, new_value, metadata, transaction_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, txn.ID, txn.ActionType, txn.ItemSKU, txn.ItemName, txn.QuantityChange.String(),
		txn.OldValue, txn.NewValue, nullBytes(txn.Metadata), formatTime(txn.TransactionTime))
	if err != nil {
		return fmt.Errorf("ошибка сохранения записи: %w", err)
	}

	return nil
}

// Unsent возвращает неотправленные записи в порядке их создания
func (s *SQLiteStorage) Unsent(ctx context.Context, limit int) ([]LocalTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action_type, item_sku, item_name, quantity_change,
		       old_value, new_value, metadata, transaction_time
		FROM outbox
		WHERE sent_at IS NULL
		ORDER BY transaction_time, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer rows.Close()

	var txns []LocalTransaction
	for rows.Next() {
		var (
			txn      LocalTransaction
			quantity string
			meta     []byte
			txnTime  string
		)
		if err := rows.Scan(&txn.ID, &txn.ActionType, &txn.ItemSKU, &txn.ItemName, &quantity,
			&txn.OldValue, &txn.NewValue, &meta, &txnTime); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи: %w", err)
		}
		txn.Metadata = meta

		if txn.QuantityChange, err = decimal.NewFromString(quantity); err != nil {
			return nil, fmt.Errorf("ошибка разбора количества записи %s: %w", txn.ID, err)
		}
		if txn.TransactionTime, err = parseTime(txnTime); err != nil {
			return nil, fmt.Errorf("ошибка разбора времени записи %s: %w", txn.ID, err)
		}

		txns = append(txns, txn)
	}

	return txns, rows.Err()
}

func (s *SQLiteStorage) MarkSent(ctx context.Context, ids []string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "UPDATE outbox SET sent_at = ? WHERE id = ? AND sent_at IS NULL")
	if err != nil {
		return fmt.Errorf("ошибка подготовки запроса: %w", err)
	}
	defer stmt.Close()

	sentAt := formatTime(at)
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, sentAt, id); err != nil {
			return fmt.Errorf("ошибка отметки записи %s: %w", id, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "UPDATE sync_state SET last_push_at = ? WHERE id = 1", sentAt); err != nil {
		return fmt.Errorf("ошибка обновления состояния: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStorage) PendingCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM outbox WHERE sent_at IS NULL").Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчета записей: %w", err)
	}
	return count, nil
}

func (s *SQLiteStorage) Cursor(ctx context.Context) (int64, error) {
	var cursor int64
	if err := s.db.QueryRowContext(ctx, "SELECT cursor FROM sync_state WHERE id = 1").Scan(&cursor); err != nil {
		return 0, fmt.Errorf("ошибка чтения курсора: %w", err)
	}
	return cursor, nil
}

// ApplyRemote сохраняет страницу pull и сдвигает курсор в одной транзакции.
// Повторно полученные записи игнорируются, курсор не уменьшается.
func (s *SQLiteStorage) ApplyRemote(ctx context.Context, txns []RemoteTransaction, nextCursor int64, at time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO inbox (id, device_identifier, action_type, item_sku, item_name,
		                             quantity_change, old_value, new_value, metadata,
		                             transaction_time, synced_at, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("ошибка подготовки запроса: %w", err)
	}
	defer stmt.Close()

	receivedAt := formatTime(at)
	applied := 0
	for _, t := range txns {
		res, err := stmt.ExecContext(ctx, t.ID, t.DeviceIdentifier, t.ActionType, t.ItemSKU, t.ItemName,
			t.QuantityChange.String(), t.OldValue, t.NewValue, nullBytes(t.Metadata),
			formatTime(t.TransactionTime), t.SyncedAt, receivedAt)
		if err != nil {
			return 0, fmt.Errorf("ошибка сохранения записи %s: %w", t.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			applied++
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE sync_state SET cursor = MAX(cursor, ?), last_pull_at = ? WHERE id = 1",
		nextCursor, receivedAt,
	); err != nil {
		return 0, fmt.Errorf("ошибка обновления курсора: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}

	return applied, nil
}

func (s *SQLiteStorage) Stats(ctx context.Context) (*Stats, error) {
	var (
		stats    Stats
		lastPush sql.NullString
		lastPull sql.NullString
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM outbox),
		       (SELECT COUNT(*) FROM outbox WHERE sent_at IS NULL),
		       (SELECT COUNT(*) FROM inbox),
		       cursor, last_push_at, last_pull_at
		FROM sync_state WHERE id = 1
	`).Scan(&stats.Outbox, &stats.Pending, &stats.Inbox, &stats.Cursor, &lastPush, &lastPull)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики: %w", err)
	}

	stats.LastPushAt = parseNullTime(lastPush)
	stats.LastPullAt = parseNullTime(lastPull)

	return &stats, nil
}

func (s *SQLiteStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// timeLayout фиксированной ширины, чтобы строки сортировались как время
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullBytes(b []byte) any {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	return []byte(b)
}
