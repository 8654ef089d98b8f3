package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"stocksync/internal/app/client/config"

	"golang.org/x/exp/slog"
)

const (
	headerLicenseKey = "X-License-Key"
	headerTenantID   = "X-Dealer-Id"
)

// ErrUnauthorized ретранслятор отклонил лицензию
var ErrUnauthorized = errors.New("лицензия отклонена сервером")

// Relay операции ретранслятора, которые использует агент
type Relay interface {
	HealthCheck(ctx context.Context) error
	Push(ctx context.Context, txns []LocalTransaction) (*PushResponse, error)
	Pull(ctx context.Context, since int64, limit int) (*PullResponse, error)
	Heartbeat(ctx context.Context, deviceName string, pending int) (*HeartbeatResponse, error)
}

type httpClient struct {
	client     *http.Client
	log        *slog.Logger
	baseURL    string
	licenseKey string
	tenantID   string
	device     string
	userAgent  string
}

func NewHTTPClient(cfg *config.Config, log *slog.Logger) *httpClient {
	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConnsPerHost: 2,
		},
	}

	return &httpClient{
		client:     client,
		log:        log,
		baseURL:    cfg.BaseURL(),
		licenseKey: cfg.LicenseKey,
		tenantID:   cfg.TenantID,
		device:     cfg.DeviceIdentifier,
		userAgent:  "Stocksync-Agent/1.0",
	}
}

// HealthCheck проверяет доступность сервера
func (h *httpClient) HealthCheck(ctx context.Context) error {
	resp, err := h.doRequest(ctx, http.MethodGet, "/api/v1/health", nil)
	if err != nil {
		return err
	}
	return h.parseResponse(resp, nil)
}

func (h *httpClient) Push(ctx context.Context, txns []LocalTransaction) (*PushResponse, error) {
	resp, err := h.doRequest(ctx, http.MethodPost, "/api/sync/transactions/push", pushRequest{
		DeviceIdentifier: h.device,
		Transactions:     txns,
	})
	if err != nil {
		return nil, err
	}

	var out PushResponse
	if err := h.parseResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *httpClient) Pull(ctx context.Context, since int64, limit int) (*PullResponse, error) {
	resp, err := h.doRequest(ctx, http.MethodPost, "/api/sync/transactions/pull", pullRequest{
		DeviceIdentifier: h.device,
		Since:            since,
		Limit:            limit,
	})
	if err != nil {
		return nil, err
	}

	var out PullResponse
	if err := h.parseResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *httpClient) Heartbeat(ctx context.Context, deviceName string, pending int) (*HeartbeatResponse, error) {
	resp, err := h.doRequest(ctx, http.MethodPost, "/api/sync/devices/heartbeat", heartbeatRequest{
		DeviceIdentifier: h.device,
		DeviceName:       deviceName,
		PendingCount:     pending,
	})
	if err != nil {
		return nil, err
	}

	var out HeartbeatResponse
	if err := h.parseResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *httpClient) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("ошибка маршалинга тела запроса: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set(headerLicenseKey, h.licenseKey)
	req.Header.Set(headerTenantID, h.tenantID)

	h.log.Debug("Отправка запроса",
		"method", method,
		"url", req.URL.String(),
	)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}

	return resp, nil
}

// parseResponse разбирает ответ. Ошибки сервера приходят в формате RFC 9457 (поле detail).
func (h *httpClient) parseResponse(resp *http.Response, result any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	h.log.Debug("Получен ответ",
		"status", resp.StatusCode,
		"bytes", len(body),
	)

	if resp.StatusCode >= 400 {
		var errResp struct {
			Detail string `json:"detail"`
		}
		msg := fmt.Sprintf("статус %d", resp.StatusCode)
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Detail != "" {
			msg = errResp.Detail
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
		}
		return fmt.Errorf("ошибка сервера: %s", msg)
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("ошибка парсинга ответа: %w", err)
		}
	}

	return nil
}
