package client

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/exp/slog"
)

const defaultBatchSize = 200

// SyncService цикл обмена агента с ретранслятором: сначала push outbox, затем pull до конца журнала
type SyncService struct {
	storage   Storage
	relay     Relay
	log       *slog.Logger
	batchSize int
	now       func() time.Time
}

func NewSyncService(storage Storage, relay Relay, log *slog.Logger, batchSize int) *SyncService {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &SyncService{
		storage:   storage,
		relay:     relay,
		log:       log.With("component", "agent-sync"),
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Sync выполняет полный цикл. Прерванный цикл можно повторить: сервер пропускает
// уже принятые записи, а inbox игнорирует повторно полученные.
func (s *SyncService) Sync(ctx context.Context) (*SyncResult, error) {
	result := &SyncResult{}

	if err := s.push(ctx, result); err != nil {
		return result, err
	}
	if err := s.pull(ctx, result); err != nil {
		return result, err
	}

	return result, nil
}

func (s *SyncService) push(ctx context.Context, result *SyncResult) error {
	for {
		batch, err := s.storage.Unsent(ctx, s.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		resp, err := s.relay.Push(ctx, batch)
		if err != nil {
			return fmt.Errorf("ошибка отправки пакета: %w", err)
		}

		// Отклоненные сервером записи повторная отправка не исправит
		ids := make([]string, 0, len(batch))
		for _, t := range batch {
			ids = append(ids, t.ID)
		}
		if err := s.storage.MarkSent(ctx, ids, s.now()); err != nil {
			return err
		}

		result.Pushed += len(batch)
		result.Inserted += resp.Inserted
		result.Skipped += resp.Skipped
		result.Failed += resp.Failed
		result.Errors = append(result.Errors, resp.Errors...)

		s.log.Debug("Пакет отправлен",
			"size", len(batch),
			"inserted", resp.Inserted,
			"skipped", resp.Skipped,
			"failed", resp.Failed,
		)

		if len(batch) < s.batchSize {
			return nil
		}
	}
}

func (s *SyncService) pull(ctx context.Context, result *SyncResult) error {
	cursor, err := s.storage.Cursor(ctx)
	if err != nil {
		return err
	}

	for {
		resp, err := s.relay.Pull(ctx, cursor, 0)
		if err != nil {
			return fmt.Errorf("ошибка получения записей: %w", err)
		}

		applied, err := s.storage.ApplyRemote(ctx, resp.Transactions, resp.NextCursor, s.now())
		if err != nil {
			return err
		}

		result.Pulled += len(resp.Transactions)
		result.Applied += applied

		s.log.Debug("Страница получена",
			"since", cursor,
			"count", len(resp.Transactions),
			"next_cursor", resp.NextCursor,
			"has_more", resp.HasMore,
		)

		if resp.NextCursor > cursor {
			cursor = resp.NextCursor
		}
		result.Cursor = cursor

		if !resp.HasMore {
			return nil
		}
		if len(resp.Transactions) == 0 {
			return fmt.Errorf("сервер сообщил has_more без записей на курсоре %d", cursor)
		}
	}
}
