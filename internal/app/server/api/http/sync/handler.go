package sync

import (
	"context"
	"errors"
	"time"

	"stocksync/internal/app/server/api/http/middleware/auth"
	"stocksync/internal/domain/sync"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

// Группы маршрутов: основная и совместимая с облачными клиентами
const (
	syncPrefix  = "/api/sync"
	cloudPrefix = "/api/cloud"
)

type Handler struct {
	service    sync.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service sync.Servicer, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log,
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	for _, prefix := range []string{syncPrefix, cloudPrefix} {
		huma.Register(api, h.pushOp(prefix), h.push)
		huma.Register(api, h.pullOp(prefix), h.pull)
		huma.Register(api, h.heartbeatOp(prefix), h.heartbeat)
	}
	huma.Register(api, h.listDevicesOp(), h.listDevices)
}

func (h *Handler) push(ctx context.Context, input *pushInput) (*pushOutput, error) {
	caller, err := h.caller(ctx, input.Body.tenant(), input.Body.DeviceIdentifier)
	if err != nil {
		return nil, err
	}

	req := sync.PushRequest{}
	if input.Body.Transactions != nil {
		req.Transactions = make([]sync.IncomingTransaction, 0, len(input.Body.Transactions))
		for _, raw := range input.Body.Transactions {
			req.Transactions = append(req.Transactions, decodeTransaction(raw))
		}
	}

	result, err := h.service.Push(ctx, caller, req)
	if err != nil {
		return nil, h.mapError(err)
	}

	return &pushOutput{
		Body: PushResponse{
			Success:   true,
			Inserted:  result.Inserted,
			Skipped:   result.Skipped,
			Failed:    result.Failed,
			Errors:    result.Errors,
			Timestamp: result.Timestamp,
		},
	}, nil
}

func (h *Handler) pull(ctx context.Context, input *pullInput) (*pullOutput, error) {
	caller, err := h.caller(ctx, input.Body.tenant(), input.Body.DeviceIdentifier)
	if err != nil {
		return nil, err
	}

	result, err := h.service.Pull(ctx, caller, sync.PullRequest{
		Since: input.Body.Since,
		Limit: input.Body.Limit,
	})
	if err != nil {
		return nil, h.mapError(err)
	}

	views := make([]TransactionView, 0, len(result.Transactions))
	for _, t := range result.Transactions {
		views = append(views, TransactionView{
			ID:               t.ID,
			TenantID:         t.TenantID,
			DeviceIdentifier: t.DeviceIdentifier,
			ActionType:       t.ActionType,
			ItemSKU:          t.ItemSKU,
			ItemName:         t.ItemName,
			QuantityChange:   quantity{t.QuantityChange},
			OldValue:         t.OldValue,
			NewValue:         t.NewValue,
			Metadata:         t.Metadata,
			TransactionTime:  t.TransactionTime,
			SyncedAt:         t.SyncedAt,
			AcceptedAt:       t.AcceptedAt,
		})
	}

	return &pullOutput{
		Body: PullResponse{
			Success:      true,
			Transactions: views,
			Count:        len(views),
			NextCursor:   result.NextCursor,
			HasMore:      result.HasMore,
			Timestamp:    result.Timestamp,
		},
	}, nil
}

func (h *Handler) heartbeat(ctx context.Context, input *heartbeatInput) (*heartbeatOutput, error) {
	caller, err := h.caller(ctx, input.Body.tenant(), input.Body.DeviceIdentifier)
	if err != nil {
		return nil, err
	}

	at, err := h.service.Heartbeat(ctx, caller, sync.HeartbeatRequest{
		DeviceName:   input.Body.DeviceName,
		PendingCount: input.Body.PendingCount,
	})
	if err != nil {
		return nil, h.mapError(err)
	}

	return &heartbeatOutput{
		Body: HeartbeatResponse{Success: true, Timestamp: at},
	}, nil
}

func (h *Handler) listDevices(ctx context.Context, _ *devicesInput) (*devicesOutput, error) {
	grant, ok := auth.GetGrant(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("license credentials are missing")
	}

	devices, err := h.service.ListDevices(ctx, grant.TenantID)
	if err != nil {
		return nil, h.mapError(err)
	}

	views := make([]DeviceView, 0, len(devices))
	for _, d := range devices {
		views = append(views, DeviceView{
			DeviceIdentifier:    d.DeviceIdentifier,
			DeviceName:          d.DeviceName,
			LicenseID:           d.LicenseID,
			LastSyncAt:          d.LastSyncAt,
			LastIP:              d.LastIP,
			PendingTransactions: d.PendingTransactions,
			Status:              string(d.Status),
		})
	}

	return &devicesOutput{
		Body: DevicesResponse{Success: true, Devices: views, Timestamp: time.Now()},
	}, nil
}

// caller собирает вызывающего из гранта. Дилер из тела должен совпадать с грантом.
func (h *Handler) caller(ctx context.Context, bodyTenant, deviceIdentifier string) (sync.Caller, error) {
	grant, ok := auth.GetGrant(ctx)
	if !ok {
		return sync.Caller{}, huma.Error401Unauthorized("license credentials are missing")
	}
	if bodyTenant != "" && bodyTenant != grant.TenantID {
		h.log.Warn("tenant mismatch", "granted", grant.TenantID, "requested", bodyTenant)
		return sync.Caller{}, huma.Error403Forbidden("tenant_id does not match the license")
	}

	return sync.Caller{
		TenantID:         grant.TenantID,
		LicenseID:        grant.LicenseID,
		DeviceIdentifier: deviceIdentifier,
		IP:               auth.GetClientIP(ctx),
	}, nil
}

func (h *Handler) mapError(err error) error {
	switch {
	case errors.Is(err, sync.ErrValidation):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, sync.ErrStorageUnavailable):
		h.log.Error("sync storage unavailable", "error", err)
		return huma.Error503ServiceUnavailable("storage unavailable, retry the whole batch")
	default:
		h.log.Error("sync request failed", "error", err)
		return huma.Error500InternalServerError("internal error")
	}
}
