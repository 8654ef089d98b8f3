package activity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/exp/slog"
)

const (
	defaultBuffer       = 256
	defaultWriteTimeout = 5 * time.Second
)

// Dispatcher асинхронно пишет события в Repository.
// LogActivity никогда не блокирует вызывающего: при переполненном буфере событие отбрасывается.
type Dispatcher struct {
	repo         Repository
	log          *slog.Logger
	events       chan Entry
	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewDispatcher создает диспетчер с буфером заданного размера
func NewDispatcher(repo Repository, log *slog.Logger, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Dispatcher{
		repo:         repo,
		log:          log.With("component", "activity"),
		events:       make(chan Entry, buffer),
		writeTimeout: defaultWriteTimeout,
	}
}

// Start запускает фоновую запись. Отмена ctx дописывает накопленное и завершает воркер.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go d.run(ctx)
}

// LogActivity ставит событие в очередь
func (d *Dispatcher) LogActivity(_ context.Context, entry Entry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.dropped.Add(1)
		return
	}

	select {
	case d.events <- entry:
	default:
		d.dropped.Add(1)
		d.log.Warn("Activity buffer is full, event dropped",
			"tenant_id", entry.TenantID,
			"event_type", entry.EventType,
		)
	}
}

// Stop закрывает прием событий и ждет, пока воркер допишет очередь
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.events)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

// Metrics возвращает счетчики записанных, отброшенных и неудачных событий
func (d *Dispatcher) Metrics() (written, dropped, failed uint64) {
	return d.written.Load(), d.dropped.Load(), d.failed.Load()
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case entry, ok := <-d.events:
			if !ok {
				return
			}
			d.write(entry)
		case <-ctx.Done():
			d.drain()
			return
		}
	}
}

// drain дописывает то, что уже лежит в буфере
func (d *Dispatcher) drain() {
	for {
		select {
		case entry, ok := <-d.events:
			if !ok {
				return
			}
			d.write(entry)
		default:
			return
		}
	}
}

func (d *Dispatcher) write(entry Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), d.writeTimeout)
	defer cancel()

	if err := d.repo.InsertActivity(ctx, entry); err != nil {
		d.failed.Add(1)
		d.log.Warn("Failed to write activity",
			"tenant_id", entry.TenantID,
			"event_type", entry.EventType,
			"error", err,
		)
		return
	}
	d.written.Add(1)
}
