package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stocksync/internal/domain/sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slog"
)

// SyncRepository реализация репозитория синхронизации для PostgreSQL
type SyncRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewSyncRepository создает новый репозиторий синхронизации
func NewSyncRepository(pool *pgxpool.Pool, log *slog.Logger) *SyncRepository {
	return &SyncRepository{
		pool: pool,
		log:  log,
	}
}

const (
	// Строка счетчика блокируется до конца транзакции, поэтому добавления
	// одного дилера идут по очереди и порядок synced_at совпадает с порядком коммитов.
	nextSeqQuery = `
		INSERT INTO sync_cursors (tenant_id, last_seq)
		VALUES ($1, 1)
		ON CONFLICT (tenant_id) DO UPDATE SET last_seq = sync_cursors.last_seq + 1
		RETURNING last_seq
	`

	insertTransactionQuery = `
		INSERT INTO sync_transactions
			(id, tenant_id, device_identifier, action_type, item_sku, item_name,
			 quantity_change, old_value, new_value, metadata, transaction_time, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
		RETURNING accepted_at
	`

	queryAfterQuery = `
		SELECT id, tenant_id, device_identifier, action_type, item_sku, item_name,
		       quantity_change::text, old_value, new_value, metadata,
		       transaction_time, synced_at, accepted_at
		FROM (
			SELECT *
			FROM sync_transactions
			WHERE tenant_id = $1
			  AND device_identifier <> $2
			  AND synced_at > $3
			ORDER BY synced_at ASC
			LIMIT $4
		) page
		ORDER BY transaction_time ASC, synced_at ASC
	`
)

// AppendTransaction добавляет запись и присваивает ей следующий номер дилера.
// Повторный id откатывает транзакцию вместе с увеличением счетчика.
func (r *SyncRepository) AppendTransaction(ctx context.Context, txn *sync.Transaction) (sync.AppendResult, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			r.log.Warn("Failed to rollback append", "transaction_id", txn.ID, "error", rbErr)
		}
	}()

	var seq int64
	if err := tx.QueryRow(ctx, nextSeqQuery, txn.TenantID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to assign sync sequence: %w", err)
	}

	var metadata *string
	if len(txn.Metadata) > 0 {
		m := string(txn.Metadata)
		metadata = &m
	}

	var acceptedAt time.Time
	err = tx.QueryRow(ctx, insertTransactionQuery,
		txn.ID,
		txn.TenantID,
		txn.DeviceIdentifier,
		txn.ActionType,
		nullString(txn.ItemSKU),
		nullString(txn.ItemName),
		txn.QuantityChange.String(),
		nullString(txn.OldValue),
		nullString(txn.NewValue),
		metadata,
		txn.TransactionTime,
		seq,
	).Scan(&acceptedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return sync.AlreadyExists, nil
	}
	if rejected := invalidRecord(err); rejected != nil {
		return 0, rejected
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	txn.SyncedAt = seq
	txn.AcceptedAt = acceptedAt

	return sync.Inserted, nil
}

// SQLSTATE класса 22: сервер отверг сами данные, повтор даст ту же ошибку
const dataExceptionClass = "22"

func invalidRecord(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, dataExceptionClass) {
		return fmt.Errorf("%w: %s (SQLSTATE %s)", sync.ErrInvalidRecord, pgErr.Message, pgErr.Code)
	}
	return nil
}

// QueryAfter выбирает первые limit записей по synced_at, затем упорядочивает
// страницу по времени операции на устройстве.
func (r *SyncRepository) QueryAfter(ctx context.Context, tenantID, excludingDevice string, cursor int64, limit int) ([]*sync.Transaction, error) {
	rows, err := r.pool.Query(ctx, queryAfterQuery, tenantID, excludingDevice, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var result []*sync.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return result, nil
}

func scanTransaction(row pgx.Row) (*sync.Transaction, error) {
	var (
		txn                                     sync.Transaction
		sku, name, oldValue, newValue, metadata *string
		quantity                                string
	)

	err := row.Scan(
		&txn.ID,
		&txn.TenantID,
		&txn.DeviceIdentifier,
		&txn.ActionType,
		&sku,
		&name,
		&quantity,
		&oldValue,
		&newValue,
		&metadata,
		&txn.TransactionTime,
		&txn.SyncedAt,
		&txn.AcceptedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	qty, err := decimal.NewFromString(quantity)
	if err != nil {
		return nil, fmt.Errorf("failed to parse quantity_change of %s: %w", txn.ID, err)
	}

	txn.ItemSKU = stringValue(sku)
	txn.ItemName = stringValue(name)
	txn.QuantityChange = qty
	txn.OldValue = stringValue(oldValue)
	txn.NewValue = stringValue(newValue)
	if metadata != nil {
		txn.Metadata = []byte(*metadata)
	}

	return &txn, nil
}

// GetDevice возвращает устройство дилера
func (r *SyncRepository) GetDevice(ctx context.Context, tenantID, deviceIdentifier string) (*sync.Device, error) {
	query := `
		SELECT tenant_id, device_identifier, license_id, device_name,
		       last_sync_at, last_ip, pending_transactions, created_at
		FROM sync_devices
		WHERE tenant_id = $1 AND device_identifier = $2
	`

	device, err := scanDevice(r.pool.QueryRow(ctx, query, tenantID, deviceIdentifier))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sync.ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	return device, nil
}

// SaveDevice сохраняет уже объединенную запись устройства
func (r *SyncRepository) SaveDevice(ctx context.Context, device *sync.Device) error {
	query := `
		INSERT INTO sync_devices
			(tenant_id, device_identifier, license_id, device_name,
			 last_sync_at, last_ip, pending_transactions, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id, device_identifier) DO UPDATE SET
			license_id = EXCLUDED.license_id,
			device_name = EXCLUDED.device_name,
			last_sync_at = EXCLUDED.last_sync_at,
			last_ip = EXCLUDED.last_ip,
			pending_transactions = EXCLUDED.pending_transactions
	`

	createdAt := device.CreatedAt
	if createdAt.IsZero() {
		createdAt = device.LastSyncAt
	}

	_, err := r.pool.Exec(ctx, query,
		device.TenantID,
		device.DeviceIdentifier,
		nullString(device.LicenseID),
		nullString(device.DeviceName),
		device.LastSyncAt,
		nullString(device.LastIP),
		device.PendingTransactions,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save device: %w", err)
	}

	return nil
}

// ListDevices возвращает устройства дилера, последние активные первыми
func (r *SyncRepository) ListDevices(ctx context.Context, tenantID string) ([]*sync.Device, error) {
	query := `
		SELECT tenant_id, device_identifier, license_id, device_name,
		       last_sync_at, last_ip, pending_transactions, created_at
		FROM sync_devices
		WHERE tenant_id = $1
		ORDER BY last_sync_at DESC
	`

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var devices []*sync.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, device)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate devices: %w", err)
	}

	return devices, nil
}

func scanDevice(row pgx.Row) (*sync.Device, error) {
	var (
		device                  sync.Device
		licenseID, name, lastIP *string
	)

	err := row.Scan(
		&device.TenantID,
		&device.DeviceIdentifier,
		&licenseID,
		&name,
		&device.LastSyncAt,
		&lastIP,
		&device.PendingTransactions,
		&device.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	device.LicenseID = stringValue(licenseID)
	device.DeviceName = stringValue(name)
	device.LastIP = stringValue(lastIP)

	return &device, nil
}

// MarkSent отмечает время последнего push
func (r *SyncRepository) MarkSent(ctx context.Context, tenantID, deviceIdentifier string, at time.Time) error {
	query := `
		INSERT INTO sync_state (tenant_id, device_identifier, last_sent_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, device_identifier) DO UPDATE SET last_sent_at = EXCLUDED.last_sent_at
	`

	if _, err := r.pool.Exec(ctx, query, tenantID, deviceIdentifier, at); err != nil {
		return fmt.Errorf("failed to update last_sent_at: %w", err)
	}
	return nil
}

// MarkReceived отмечает время последнего непустого pull
func (r *SyncRepository) MarkReceived(ctx context.Context, tenantID, deviceIdentifier string, at time.Time) error {
	query := `
		INSERT INTO sync_state (tenant_id, device_identifier, last_received_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, device_identifier) DO UPDATE SET last_received_at = EXCLUDED.last_received_at
	`

	if _, err := r.pool.Exec(ctx, query, tenantID, deviceIdentifier, at); err != nil {
		return fmt.Errorf("failed to update last_received_at: %w", err)
	}
	return nil
}
