package auth

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"stocksync/internal/domain/license"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

const (
	HeaderLicenseKey = "X-License-Key"
	HeaderTenantID   = "X-Dealer-Id"
)

type Auth struct {
	authorizer license.Authorizer
	log        *slog.Logger
}

func New(authorizer license.Authorizer, log *slog.Logger) *Auth {
	return &Auth{
		authorizer: authorizer,
		log:        log.With("component", "auth_middleware"),
	}
}

type contextKey string

const (
	grantKey    contextKey = "grant"
	clientIPKey contextKey = "clientIP"
)

// Middleware проверяет лицензию до обработчика. Отказ завершает запрос
// без каких-либо изменений состояния.
func (a *Auth) Middleware(api huma.API) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		key := ctx.Header(HeaderLicenseKey)
		tenantID := ctx.Header(HeaderTenantID)
		ip := clientIP(ctx.RemoteAddr())

		grant, err := a.authorizer.Authorize(ctx.Context(), key, tenantID)
		if err != nil {
			status, msg := http.StatusServiceUnavailable, "license check unavailable"
			switch {
			case errors.Is(err, license.ErrMissingCredentials):
				status, msg = http.StatusUnauthorized, "license credentials are missing"
			case errors.Is(err, license.ErrDenied):
				status, msg = http.StatusForbidden, "license is not valid for this dealer"
			}

			a.log.Warn("request rejected",
				slog.String("path", ctx.URL().Path),
				slog.String("tenant_id", tenantID),
				slog.String("ip", ip),
				slog.Int("status", status),
				slog.String("error", err.Error()),
			)
			if werr := huma.WriteErr(api, ctx, status, msg); werr != nil {
				a.log.Error("failed to write auth error", slog.String("error", werr.Error()))
			}
			return
		}

		newCtx := WithGrant(ctx.Context(), grant, ip)
		next(huma.WithContext(ctx, newCtx))
	}
}

// WithGrant кладет грант и адрес клиента в контекст
func WithGrant(ctx context.Context, grant license.Grant, ip string) context.Context {
	ctx = context.WithValue(ctx, grantKey, grant)
	return context.WithValue(ctx, clientIPKey, ip)
}

func GetGrant(ctx context.Context) (license.Grant, bool) {
	grant, ok := ctx.Value(grantKey).(license.Grant)
	return grant, ok
}

func GetClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}

// clientIP убирает порт из адреса. X-Forwarded-For уже разобран chi RealIP.
func clientIP(remoteAddr string) string {
	remoteAddr = strings.TrimSpace(remoteAddr)
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
