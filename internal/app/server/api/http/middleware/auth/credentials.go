package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// MaxBodyBytes верхняя граница тела запроса синхронизации
const MaxBodyBytes = 32 << 20

type bodyCredentials struct {
	LicenseKey string `json:"license_key"`
	TenantID   string `json:"tenant_id"`
	DealerID   string `json:"dealer_id"`
}

// LiftBodyCredentials переносит license_key и tenant_id из JSON-тела в заголовки,
// чтобы проверка лицензии работала одинаково для обоих способов передачи.
// Значения из тела имеют приоритет. Тело восстанавливается для обработчика.
func LiftBodyCredentials(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Method == http.MethodGet || !isJSON(r.Header.Get("Content-Type")) {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		var creds bodyCredentials
		if err := json.Unmarshal(body, &creds); err == nil {
			if creds.LicenseKey != "" {
				r.Header.Set(HeaderLicenseKey, creds.LicenseKey)
			}
			tenantID := creds.TenantID
			if tenantID == "" {
				tenantID = creds.DealerID
			}
			if tenantID != "" {
				r.Header.Set(HeaderTenantID, tenantID)
			}
		}

		next.ServeHTTP(w, r)
	})
}

func isJSON(contentType string) bool {
	return contentType == "" || strings.Contains(strings.ToLower(contentType), "json")
}
