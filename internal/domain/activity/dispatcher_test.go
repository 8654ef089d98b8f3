package activity

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/exp/slog"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) InsertActivity(ctx context.Context, entry Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcher_WritesEvents(t *testing.T) {
	repo := new(MockRepository)
	repo.On("InsertActivity", mock.Anything, mock.MatchedBy(func(e Entry) bool {
		return e.TenantID == "dealer-1" && e.EventType == EventSyncPush
	})).Return(nil).Times(3)

	d := NewDispatcher(repo, discardLogger(), 8)
	d.Start(context.Background())

	for i := 0; i < 3; i++ {
		d.LogActivity(context.Background(), Entry{
			TenantID:    "dealer-1",
			EventType:   EventSyncPush,
			Description: "Device: pos-1, Inserted: 1, Skipped: 0",
			OriginIP:    "10.0.0.1",
		})
	}
	d.Stop()

	written, dropped, failed := d.Metrics()
	assert.Equal(t, uint64(3), written)
	assert.Equal(t, uint64(0), dropped)
	assert.Equal(t, uint64(0), failed)
	repo.AssertExpectations(t)
}

func TestDispatcher_SwallowsWriteErrors(t *testing.T) {
	repo := new(MockRepository)
	repo.On("InsertActivity", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	d := NewDispatcher(repo, discardLogger(), 4)
	d.Start(context.Background())

	assert.NotPanics(t, func() {
		d.LogActivity(context.Background(), Entry{TenantID: "dealer-1", EventType: EventSyncPush})
	})
	d.Stop()

	written, _, failed := d.Metrics()
	assert.Equal(t, uint64(0), written)
	assert.Equal(t, uint64(1), failed)
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	repo := new(MockRepository)
	repo.On("InsertActivity", mock.Anything, mock.Anything).Return(nil)

	// воркер не запущен, буфер на одно событие
	d := NewDispatcher(repo, discardLogger(), 1)

	done := make(chan struct{})
	go func() {
		d.LogActivity(context.Background(), Entry{TenantID: "dealer-1"})
		d.LogActivity(context.Background(), Entry{TenantID: "dealer-1"})
		d.LogActivity(context.Background(), Entry{TenantID: "dealer-1"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("LogActivity blocked")
	}

	_, dropped, _ := d.Metrics()
	assert.Equal(t, uint64(2), dropped)

	d.Start(context.Background())
	d.Stop()

	written, _, _ := d.Metrics()
	assert.Equal(t, uint64(1), written)
}

func TestDispatcher_DrainsOnContextCancel(t *testing.T) {
	repo := new(MockRepository)
	repo.On("InsertActivity", mock.Anything, mock.Anything).Return(nil)

	d := NewDispatcher(repo, discardLogger(), 16)
	for i := 0; i < 5; i++ {
		d.LogActivity(context.Background(), Entry{TenantID: "dealer-1"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Start(ctx)
	d.Stop()

	written, _, _ := d.Metrics()
	assert.Equal(t, uint64(5), written)
}

func TestDispatcher_IgnoresEventsAfterStop(t *testing.T) {
	repo := new(MockRepository)

	d := NewDispatcher(repo, discardLogger(), 4)
	d.Start(context.Background())
	d.Stop()

	assert.NotPanics(t, func() {
		d.LogActivity(context.Background(), Entry{TenantID: "dealer-1"})
	})

	_, dropped, _ := d.Metrics()
	assert.Equal(t, uint64(1), dropped)
	repo.AssertNotCalled(t, "InsertActivity", mock.Anything, mock.Anything)
}
