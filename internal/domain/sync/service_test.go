package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"stocksync/internal/domain/activity"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

// MockRepository is a mock implementation of the Repository interface for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) AppendTransaction(ctx context.Context, txn *Transaction) (AppendResult, error) {
	args := m.Called(ctx, txn)
	return args.Get(0).(AppendResult), args.Error(1)
}

func (m *MockRepository) QueryAfter(ctx context.Context, tenantID, excludingDevice string, cursor int64, limit int) ([]*Transaction, error) {
	args := m.Called(ctx, tenantID, excludingDevice, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Transaction), args.Error(1)
}

func (m *MockRepository) GetDevice(ctx context.Context, tenantID, deviceIdentifier string) (*Device, error) {
	args := m.Called(ctx, tenantID, deviceIdentifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Device), args.Error(1)
}

func (m *MockRepository) SaveDevice(ctx context.Context, device *Device) error {
	args := m.Called(ctx, device)
	return args.Error(0)
}

func (m *MockRepository) ListDevices(ctx context.Context, tenantID string) ([]*Device, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Device), args.Error(1)
}

func (m *MockRepository) MarkSent(ctx context.Context, tenantID, deviceIdentifier string, at time.Time) error {
	args := m.Called(ctx, tenantID, deviceIdentifier, at)
	return args.Error(0)
}

func (m *MockRepository) MarkReceived(ctx context.Context, tenantID, deviceIdentifier string, at time.Time) error {
	args := m.Called(ctx, tenantID, deviceIdentifier, at)
	return args.Error(0)
}

// MockActivity is a mock implementation of activity.Logger
type MockActivity struct {
	mock.Mock
}

func (m *MockActivity) LogActivity(ctx context.Context, entry activity.Entry) {
	m.Called(ctx, entry)
}

var testNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func newTestService(repo Repository, act activity.Logger) *Service {
	svc := NewService(repo, act, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	svc.now = func() time.Time { return testNow }
	return svc
}

func testCaller() Caller {
	return Caller{TenantID: "dealer-1", LicenseID: "lic-1", DeviceIdentifier: "pos-X", IP: "10.0.0.1"}
}

func TestService_Push(t *testing.T) {
	tests := []struct {
		name      string
		caller    Caller
		req       PushRequest
		setupMock func(*MockRepository, *MockActivity)
		want      *PushResult
		wantErr   error
	}{
		{
			name:   "new and duplicate records",
			caller: testCaller(),
			req: PushRequest{Transactions: []IncomingTransaction{
				{ID: "t1", ActionType: "SALE", ItemSKU: "A1", QuantityChange: "-1"},
				{ID: "t2", ActionType: "RESTOCK", ItemSKU: "A1", QuantityChange: "5"},
			}},
			setupMock: func(m *MockRepository, a *MockActivity) {
				m.On("AppendTransaction", mock.Anything, mock.MatchedBy(func(txn *Transaction) bool { return txn.ID == "t1" })).
					Return(Inserted, nil)
				m.On("AppendTransaction", mock.Anything, mock.MatchedBy(func(txn *Transaction) bool { return txn.ID == "t2" })).
					Return(AlreadyExists, nil)
				m.On("GetDevice", mock.Anything, "dealer-1", "pos-X").Return(nil, ErrDeviceNotFound)
				m.On("SaveDevice", mock.Anything, mock.AnythingOfType("*sync.Device")).Return(nil)
				m.On("MarkSent", mock.Anything, "dealer-1", "pos-X", testNow).Return(nil)
				a.On("LogActivity", mock.Anything, activity.Entry{
					TenantID:    "dealer-1",
					EventType:   activity.EventSyncPush,
					Description: "Device: pos-X, Inserted: 1, Skipped: 1",
					OriginIP:    "10.0.0.1",
					CreatedAt:   testNow,
				}).Return()
			},
			want: &PushResult{Inserted: 1, Skipped: 1, Timestamp: testNow},
		},
		{
			name:   "record without action type is rejected alone",
			caller: testCaller(),
			req: PushRequest{Transactions: []IncomingTransaction{
				{ID: "bad"},
				{ID: "t3", ActionType: "ADJUST"},
			}},
			setupMock: func(m *MockRepository, a *MockActivity) {
				m.On("AppendTransaction", mock.Anything, mock.MatchedBy(func(txn *Transaction) bool { return txn.ID == "t3" })).
					Return(Inserted, nil)
				m.On("GetDevice", mock.Anything, "dealer-1", "pos-X").Return(&Device{TenantID: "dealer-1", DeviceIdentifier: "pos-X"}, nil)
				m.On("SaveDevice", mock.Anything, mock.Anything).Return(nil)
				m.On("MarkSent", mock.Anything, "dealer-1", "pos-X", testNow).Return(nil)
				a.On("LogActivity", mock.Anything, mock.Anything).Return()
			},
			want: &PushResult{
				Inserted:  1,
				Failed:    1,
				Errors:    []string{"transaction 0 (bad): missing action_type"},
				Timestamp: testNow,
			},
		},
		{
			name:   "unparseable fields are rejected per record",
			caller: testCaller(),
			req: PushRequest{Transactions: []IncomingTransaction{
				{ID: "q1", ActionType: "SALE", QuantityChange: "abc"},
				{ID: "q2", ActionType: "SALE", QuantityChange: "1e400"},
				{ID: "tt", ActionType: "SALE", TransactionTime: "yesterday"},
				{ID: "nul", ActionType: "SALE", ItemName: "Ulje\x00"},
				{ID: "raw", DecodeErr: errors.New("transaction must be a JSON object")},
				{ID: "ok", ActionType: "SALE", QuantityChange: "2.5", TransactionTime: "2026-05-10T10:00:00Z"},
			}},
			setupMock: func(m *MockRepository, a *MockActivity) {
				m.On("AppendTransaction", mock.Anything, mock.MatchedBy(func(txn *Transaction) bool { return txn.ID == "ok" })).
					Return(Inserted, nil)
				m.On("GetDevice", mock.Anything, "dealer-1", "pos-X").Return(&Device{TenantID: "dealer-1", DeviceIdentifier: "pos-X"}, nil)
				m.On("SaveDevice", mock.Anything, mock.Anything).Return(nil)
				m.On("MarkSent", mock.Anything, "dealer-1", "pos-X", testNow).Return(nil)
				a.On("LogActivity", mock.Anything, mock.Anything).Return()
			},
			want: &PushResult{
				Inserted: 1,
				Failed:   5,
				Errors: []string{
					`transaction 0 (q1): invalid quantity_change "abc"`,
					`transaction 1 (q2): quantity_change "1e400" is out of range`,
					`transaction 2 (tt): invalid transaction_time "yesterday": expected RFC 3339`,
					"transaction 3 (nul): item_name contains NUL or invalid UTF-8",
					"transaction 4 (raw): transaction must be a JSON object",
				},
				Timestamp: testNow,
			},
		},
		{
			name:   "record rejected by storage does not stop the batch",
			caller: testCaller(),
			req: PushRequest{Transactions: []IncomingTransaction{
				{ID: "t1", ActionType: "SALE"},
				{ID: "t2", ActionType: "SALE"},
			}},
			setupMock: func(m *MockRepository, a *MockActivity) {
				m.On("AppendTransaction", mock.Anything, mock.MatchedBy(func(txn *Transaction) bool { return txn.ID == "t1" })).
					Return(AppendResult(0), fmt.Errorf("%w: numeric field overflow", ErrInvalidRecord))
				m.On("AppendTransaction", mock.Anything, mock.MatchedBy(func(txn *Transaction) bool { return txn.ID == "t2" })).
					Return(Inserted, nil)
				m.On("GetDevice", mock.Anything, "dealer-1", "pos-X").Return(&Device{TenantID: "dealer-1", DeviceIdentifier: "pos-X"}, nil)
				m.On("SaveDevice", mock.Anything, mock.Anything).Return(nil)
				m.On("MarkSent", mock.Anything, "dealer-1", "pos-X", testNow).Return(nil)
				a.On("LogActivity", mock.Anything, mock.Anything).Return()
			},
			want: &PushResult{
				Inserted:  1,
				Failed:    1,
				Errors:    []string{"transaction 0 (t1): invalid record: numeric field overflow"},
				Timestamp: testNow,
			},
		},
		{
			name:   "bookkeeping failures do not fail push",
			caller: testCaller(),
			req:    PushRequest{Transactions: []IncomingTransaction{{ID: "t1", ActionType: "SALE"}}},
			setupMock: func(m *MockRepository, a *MockActivity) {
				m.On("AppendTransaction", mock.Anything, mock.Anything).Return(Inserted, nil)
				m.On("GetDevice", mock.Anything, "dealer-1", "pos-X").Return(nil, errors.New("timeout"))
				m.On("MarkSent", mock.Anything, "dealer-1", "pos-X", testNow).Return(errors.New("timeout"))
				a.On("LogActivity", mock.Anything, mock.Anything).Return()
			},
			want: &PushResult{Inserted: 1, Timestamp: testNow},
		},
		{
			name:      "missing device identifier",
			caller:    Caller{TenantID: "dealer-1", LicenseID: "lic-1"},
			req:       PushRequest{Transactions: []IncomingTransaction{}},
			setupMock: func(m *MockRepository, a *MockActivity) {},
			wantErr:   ErrValidation,
		},
		{
			name:      "missing transactions array",
			caller:    testCaller(),
			req:       PushRequest{},
			setupMock: func(m *MockRepository, a *MockActivity) {},
			wantErr:   ErrValidation,
		},
		{
			name:   "storage failure stops the batch",
			caller: testCaller(),
			req: PushRequest{Transactions: []IncomingTransaction{
				{ID: "t1", ActionType: "SALE"},
				{ID: "t2", ActionType: "SALE"},
			}},
			setupMock: func(m *MockRepository, a *MockActivity) {
				m.On("AppendTransaction", mock.Anything, mock.MatchedBy(func(txn *Transaction) bool { return txn.ID == "t1" })).
					Return(Inserted, nil)
				m.On("AppendTransaction", mock.Anything, mock.MatchedBy(func(txn *Transaction) bool { return txn.ID == "t2" })).
					Return(AppendResult(0), errors.New("connection refused"))
			},
			wantErr: ErrStorageUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			act := new(MockActivity)
			tt.setupMock(repo, act)

			svc := newTestService(repo, act)
			got, err := svc.Push(context.Background(), tt.caller, tt.req)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				act.AssertNotCalled(t, "LogActivity", mock.Anything, mock.Anything)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			repo.AssertExpectations(t)
			act.AssertExpectations(t)
		})
	}
}

func TestService_Push_FillsRecordFromCaller(t *testing.T) {
	repo := new(MockRepository)
	act := new(MockActivity)

	var stored *Transaction
	repo.On("AppendTransaction", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*Transaction) }).
		Return(Inserted, nil)
	repo.On("GetDevice", mock.Anything, mock.Anything, mock.Anything).Return(nil, ErrDeviceNotFound)
	repo.On("SaveDevice", mock.Anything, mock.Anything).Return(nil)
	repo.On("MarkSent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	act.On("LogActivity", mock.Anything, mock.Anything).Return()

	svc := newTestService(repo, act)
	_, err := svc.Push(context.Background(), testCaller(), PushRequest{Transactions: []IncomingTransaction{
		{ActionType: " SALE ", QuantityChange: "-1.5", Metadata: []byte(`{"receipt":"R-1"}`)},
	}})
	require.NoError(t, err)

	require.NotNil(t, stored)
	assert.NotEmpty(t, stored.ID, "missing id is generated")
	assert.Equal(t, "dealer-1", stored.TenantID)
	assert.Equal(t, "pos-X", stored.DeviceIdentifier)
	assert.Equal(t, "SALE", stored.ActionType)
	assert.Equal(t, testNow, stored.TransactionTime)
	assert.True(t, stored.QuantityChange.Equal(decimal.RequireFromString("-1.5")))
	assert.JSONEq(t, `{"receipt":"R-1"}`, string(stored.Metadata))
}

func TestService_Pull(t *testing.T) {
	t1 := &Transaction{ID: "t1", TenantID: "dealer-1", DeviceIdentifier: "pos-Y", ActionType: "SALE", SyncedAt: 4, Metadata: []byte(`{"a":1}`)}
	t2 := &Transaction{ID: "t2", TenantID: "dealer-1", DeviceIdentifier: "pos-Z", ActionType: "SALE", SyncedAt: 7, Metadata: []byte(`{broken`)}

	tests := []struct {
		name         string
		req          PullRequest
		setupMock    func(*MockRepository)
		wantIDs      []string
		wantCursor   int64
		wantHasMore  bool
		wantMetadata []string
		wantErr      error
	}{
		{
			name: "page with records",
			req:  PullRequest{Since: 3},
			setupMock: func(m *MockRepository) {
				m.On("QueryAfter", mock.Anything, "dealer-1", "pos-X", int64(3), 1000).Return([]*Transaction{t1, t2}, nil)
				m.On("GetDevice", mock.Anything, "dealer-1", "pos-X").Return(nil, ErrDeviceNotFound)
				m.On("SaveDevice", mock.Anything, mock.Anything).Return(nil)
				m.On("MarkReceived", mock.Anything, "dealer-1", "pos-X", testNow).Return(nil)
			},
			wantIDs:      []string{"t1", "t2"},
			wantCursor:   7,
			wantMetadata: []string{`{"a":1}`, `{"unparseable":true}`},
		},
		{
			name: "empty page keeps cursor and sync state",
			req:  PullRequest{Since: 9},
			setupMock: func(m *MockRepository) {
				m.On("QueryAfter", mock.Anything, "dealer-1", "pos-X", int64(9), 1000).Return([]*Transaction{}, nil)
				m.On("GetDevice", mock.Anything, "dealer-1", "pos-X").Return(nil, ErrDeviceNotFound)
				m.On("SaveDevice", mock.Anything, mock.Anything).Return(nil)
			},
			wantIDs:    []string{},
			wantCursor: 9,
		},
		{
			name: "full page reports more",
			req:  PullRequest{Since: 0, Limit: 2},
			setupMock: func(m *MockRepository) {
				m.On("QueryAfter", mock.Anything, "dealer-1", "pos-X", int64(0), 2).Return([]*Transaction{t1, t2}, nil)
				m.On("GetDevice", mock.Anything, "dealer-1", "pos-X").Return(nil, ErrDeviceNotFound)
				m.On("SaveDevice", mock.Anything, mock.Anything).Return(nil)
				m.On("MarkReceived", mock.Anything, "dealer-1", "pos-X", testNow).Return(errors.New("timeout"))
			},
			wantIDs:      []string{"t1", "t2"},
			wantCursor:   7,
			wantHasMore:  true,
			wantMetadata: []string{`{"a":1}`, `{"unparseable":true}`},
		},
		{
			name:      "negative cursor",
			req:       PullRequest{Since: -1},
			setupMock: func(m *MockRepository) {},
			wantErr:   ErrValidation,
		},
		{
			name: "storage failure",
			req:  PullRequest{},
			setupMock: func(m *MockRepository) {
				m.On("QueryAfter", mock.Anything, "dealer-1", "pos-X", int64(0), 1000).Return(nil, errors.New("connection refused"))
			},
			wantErr: ErrStorageUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			tt.setupMock(repo)

			svc := newTestService(repo, new(MockActivity))
			got, err := svc.Pull(context.Background(), testCaller(), tt.req)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			ids := make([]string, 0, len(got.Transactions))
			for i, txn := range got.Transactions {
				ids = append(ids, txn.ID)
				assert.JSONEq(t, tt.wantMetadata[i], string(txn.Metadata))
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantCursor, got.NextCursor)
			assert.Equal(t, tt.wantHasMore, got.HasMore)
			repo.AssertExpectations(t)
		})
	}
}

func TestService_Heartbeat(t *testing.T) {
	existing := &Device{
		TenantID:            "dealer-1",
		DeviceIdentifier:    "pos-X",
		DeviceName:          "Kasa 1",
		PendingTransactions: 4,
	}

	tests := []struct {
		name        string
		req         HeartbeatRequest
		repoErr     error
		wantName    string
		wantPending int
		wantErr     error
	}{
		{name: "without name and pending", req: HeartbeatRequest{}, wantName: "Kasa 1", wantPending: 0},
		{name: "with name and pending", req: HeartbeatRequest{DeviceName: "Kasa 2", PendingCount: intPtr(12)}, wantName: "Kasa 2", wantPending: 12},
		{name: "negative pending", req: HeartbeatRequest{PendingCount: intPtr(-1)}, wantErr: ErrValidation},
		{name: "storage failure", req: HeartbeatRequest{}, repoErr: errors.New("connection refused"), wantErr: ErrStorageUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			dev := *existing
			repo.On("GetDevice", mock.Anything, "dealer-1", "pos-X").Return(&dev, nil).Maybe()

			var saved *Device
			repo.On("SaveDevice", mock.Anything, mock.Anything).
				Run(func(args mock.Arguments) { saved = args.Get(1).(*Device) }).
				Return(tt.repoErr).Maybe()

			svc := newTestService(repo, new(MockActivity))
			at, err := svc.Heartbeat(context.Background(), testCaller(), tt.req)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, testNow, at)
			require.NotNil(t, saved)
			assert.Equal(t, tt.wantName, saved.DeviceName)
			assert.Equal(t, tt.wantPending, saved.PendingTransactions)
			assert.Equal(t, testNow, saved.LastSyncAt)
			assert.Equal(t, "10.0.0.1", saved.LastIP)
			assert.Equal(t, "lic-1", saved.LicenseID)
		})
	}
}

func TestService_ListDevices(t *testing.T) {
	repo := new(MockRepository)
	repo.On("ListDevices", mock.Anything, "dealer-1").Return([]*Device{
		{DeviceIdentifier: "pos-1", LastSyncAt: testNow.Add(-5 * time.Minute)},
		{DeviceIdentifier: "pos-2", LastSyncAt: testNow.Add(-30 * time.Minute)},
		{DeviceIdentifier: "pos-3", LastSyncAt: testNow.Add(-2 * time.Hour)},
	}, nil)

	svc := newTestService(repo, new(MockActivity))
	views, err := svc.ListDevices(context.Background(), "dealer-1")
	require.NoError(t, err)
	require.Len(t, views, 3)

	assert.Equal(t, StatusOnline, views[0].Status)
	assert.Equal(t, StatusIdle, views[1].Status)
	assert.Equal(t, StatusOffline, views[2].Status)
}

func intPtr(v int) *int { return &v }

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: "0"},
		{in: " -1.5 ", want: "-1.5"},
		{in: "123456789012345678.123456", want: "123456789012345678.123456"},
		{in: "1e17", want: "100000000000000000"},
		{in: "0.00001", want: "0.00001"},
		{in: "abc", wantErr: true},
		{in: "1e400", wantErr: true},
		{in: "1e-400", wantErr: true},
		{in: "123456789012345678901234567890123456789", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseQuantity(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}
