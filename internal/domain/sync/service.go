package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stocksync/internal/domain/activity"

	"golang.org/x/exp/slog"
)

const defaultPullPageSize = 1000

// Servicer интерфейс движка синхронизации
type Servicer interface {
	// Push принимает пакет записей устройства, дубликаты по ID считаются пропущенными
	Push(ctx context.Context, caller Caller, req PushRequest) (*PushResult, error)

	// Pull возвращает записи других устройств дилера после курсора
	Pull(ctx context.Context, caller Caller, req PullRequest) (*PullResult, error)

	// Heartbeat обновляет присутствие устройства
	Heartbeat(ctx context.Context, caller Caller, req HeartbeatRequest) (time.Time, error)

	// ListDevices возвращает устройства дилера со статусом на текущий момент
	ListDevices(ctx context.Context, tenantID string) ([]DeviceView, error)
}

// Service реализация движка синхронизации
type Service struct {
	repo     Repository
	activity activity.Logger
	log      *slog.Logger
	config   *ServiceConfig
	now      func() time.Time
}

// NewService создает новый сервис синхронизации
func NewService(repo Repository, act activity.Logger, log *slog.Logger, config *ServiceConfig) *Service {
	if config == nil {
		config = &ServiceConfig{
			PullPageSize: defaultPullPageSize,
			Thresholds:   DefaultThresholds,
		}
	}
	if config.PullPageSize <= 0 {
		config.PullPageSize = defaultPullPageSize
	}
	if config.Thresholds == (Thresholds{}) {
		config.Thresholds = DefaultThresholds
	}

	return &Service{
		repo:     repo,
		activity: act,
		log:      log.With("component", "sync"),
		config:   config,
		now:      time.Now,
	}
}

// Push записывает пакет. Записи обрабатываются независимо: уже принятые
// не откатываются при ошибке на следующей, повтор всего пакета безопасен.
func (s *Service) Push(ctx context.Context, caller Caller, req PushRequest) (*PushResult, error) {
	if caller.DeviceIdentifier == "" {
		return nil, fmt.Errorf("%w: missing device_identifier", ErrValidation)
	}
	if req.Transactions == nil {
		return nil, fmt.Errorf("%w: missing transactions array", ErrValidation)
	}

	now := s.now()
	result := &PushResult{Timestamp: now}

	for i, in := range req.Transactions {
		txn, err := buildTransaction(caller, in, now)
		if err != nil {
			result.reject(i, in.ID, err)
			continue
		}

		appended, err := s.repo.AppendTransaction(ctx, txn)
		if errors.Is(err, ErrInvalidRecord) {
			s.log.Warn("Transaction rejected by storage",
				"tenant_id", caller.TenantID,
				"device", caller.DeviceIdentifier,
				"transaction_id", txn.ID,
				"error", err,
			)
			result.reject(i, txn.ID, err)
			continue
		}
		if err != nil {
			s.log.Error("Failed to append transaction",
				"tenant_id", caller.TenantID,
				"device", caller.DeviceIdentifier,
				"transaction_id", txn.ID,
				"inserted", result.Inserted,
				"error", err,
			)
			return nil, fmt.Errorf("failed to append transaction %s: %w: %w", txn.ID, ErrStorageUnavailable, err)
		}

		switch appended {
		case Inserted:
			result.Inserted++
		case AlreadyExists:
			result.Skipped++
		}
	}

	s.touch(ctx, caller, now)

	if err := s.repo.MarkSent(ctx, caller.TenantID, caller.DeviceIdentifier, now); err != nil {
		s.log.Warn("Failed to update sync state", "operation", "push", "error", err)
	}

	s.activity.LogActivity(ctx, activity.Entry{
		TenantID:    caller.TenantID,
		EventType:   activity.EventSyncPush,
		Description: fmt.Sprintf("Device: %s, Inserted: %d, Skipped: %d", caller.DeviceIdentifier, result.Inserted, result.Skipped),
		OriginIP:    caller.IP,
		CreatedAt:   now,
	})

	s.log.Debug("Push processed",
		"tenant_id", caller.TenantID,
		"device", caller.DeviceIdentifier,
		"inserted", result.Inserted,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)

	return result, nil
}

// Pull возвращает страницу записей других устройств с synced_at > since.
// Следующий курсор равен максимальному synced_at на странице, а не текущему времени.
func (s *Service) Pull(ctx context.Context, caller Caller, req PullRequest) (*PullResult, error) {
	if caller.DeviceIdentifier == "" {
		return nil, fmt.Errorf("%w: missing device_identifier", ErrValidation)
	}
	if req.Since < 0 {
		return nil, fmt.Errorf("%w: since must not be negative", ErrValidation)
	}

	limit := s.config.PullPageSize
	if req.Limit > 0 && req.Limit < limit {
		limit = req.Limit
	}

	rows, err := s.repo.QueryAfter(ctx, caller.TenantID, caller.DeviceIdentifier, req.Since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w: %w", ErrStorageUnavailable, err)
	}

	now := s.now()
	result := &PullResult{
		Transactions: make([]PulledTransaction, 0, len(rows)),
		NextCursor:   req.Since,
		HasMore:      len(rows) >= limit,
		Timestamp:    now,
	}

	for _, row := range rows {
		meta, ok := DecodeMetadata(row.Metadata)
		if !ok {
			s.log.Warn("Unparseable metadata", "transaction_id", row.ID)
		}

		result.Transactions = append(result.Transactions, PulledTransaction{
			Transaction: *row,
			Metadata:    meta,
		})
		if row.SyncedAt > result.NextCursor {
			result.NextCursor = row.SyncedAt
		}
	}

	s.touch(ctx, caller, now)

	if len(rows) > 0 {
		if err := s.repo.MarkReceived(ctx, caller.TenantID, caller.DeviceIdentifier, now); err != nil {
			s.log.Warn("Failed to update sync state", "operation", "pull", "error", err)
		}
	}

	return result, nil
}

// Heartbeat обновляет присутствие устройства. Отсутствующий счетчик считается нулем.
func (s *Service) Heartbeat(ctx context.Context, caller Caller, req HeartbeatRequest) (time.Time, error) {
	if caller.DeviceIdentifier == "" {
		return time.Time{}, fmt.Errorf("%w: missing device_identifier", ErrValidation)
	}

	pending := 0
	if req.PendingCount != nil {
		pending = *req.PendingCount
	}
	if pending < 0 {
		return time.Time{}, fmt.Errorf("%w: pending_count must not be negative", ErrValidation)
	}

	now := s.now()
	if err := s.saveTouch(ctx, DeviceTouch{
		TenantID:         caller.TenantID,
		DeviceIdentifier: caller.DeviceIdentifier,
		LicenseID:        caller.LicenseID,
		IP:               caller.IP,
		Name:             strings.TrimSpace(req.DeviceName),
		PendingCount:     &pending,
		At:               now,
	}); err != nil {
		return time.Time{}, fmt.Errorf("failed to update device: %w: %w", ErrStorageUnavailable, err)
	}

	return now, nil
}

// ListDevices возвращает устройства дилера
func (s *Service) ListDevices(ctx context.Context, tenantID string) ([]DeviceView, error) {
	devices, err := s.repo.ListDevices(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w: %w", ErrStorageUnavailable, err)
	}

	now := s.now()
	views := make([]DeviceView, 0, len(devices))
	for _, d := range devices {
		views = append(views, DeviceView{
			Device: *d,
			Status: PresenceStatus(d.LastSyncAt, now, s.config.Thresholds),
		})
	}

	return views, nil
}

// touch обновляет присутствие как побочный эффект push/pull, ошибки только логируются
func (s *Service) touch(ctx context.Context, caller Caller, at time.Time) {
	err := s.saveTouch(ctx, DeviceTouch{
		TenantID:         caller.TenantID,
		DeviceIdentifier: caller.DeviceIdentifier,
		LicenseID:        caller.LicenseID,
		IP:               caller.IP,
		At:               at,
	})
	if err != nil {
		s.log.Warn("Failed to update device presence", "device", caller.DeviceIdentifier, "error", err)
	}
}

func (s *Service) saveTouch(ctx context.Context, in DeviceTouch) error {
	existing, err := s.repo.GetDevice(ctx, in.TenantID, in.DeviceIdentifier)
	if err != nil && !errors.Is(err, ErrDeviceNotFound) {
		return err
	}
	if errors.Is(err, ErrDeviceNotFound) {
		existing = nil
	}

	merged := MergeDevice(existing, in)
	return s.repo.SaveDevice(ctx, &merged)
}
