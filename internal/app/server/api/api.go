//Облачный ретранслятор синхронизации для устройств дилера:
//журнал транзакций только на добавление, идемпотентный push,
//pull по курсору synced_at и учет присутствия устройств.

//POST /api/sync/transactions/push   # Отправить пакет (license)
//POST /api/sync/transactions/pull   # Получить записи других устройств (license)
//POST /api/sync/devices/heartbeat   # Присутствие устройства (license)
//GET  /api/sync/devices             # Устройства дилера (license)
//POST /api/cloud/...                # Те же операции для облачных клиентов
//GET  /api/v1/health                # Проверка (публичный)

package api

import (
	healthAPI "stocksync/internal/app/server/api/http/health"
	"stocksync/internal/app/server/api/http/middleware"
	"stocksync/internal/app/server/api/http/middleware/auth"
	"stocksync/internal/app/server/api/http/middleware/logger"
	syncAPI "stocksync/internal/app/server/api/http/sync"
	"stocksync/internal/domain/license"
	"stocksync/internal/domain/sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/exp/slog"
)

// Dependencies сервисы, из которых собирается API
type Dependencies struct {
	Sync       sync.Servicer
	Authorizer license.Authorizer
	Storage    healthAPI.Pinger
}

type Handlers struct {
	Health *healthAPI.Handler
	Sync   *syncAPI.Handler
}

// New создает *chi.Mux с ВСЕМИ операциями через huma.Register
func New(deps Dependencies, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(chimw.Recoverer)
	mux.Use(auth.LiftBodyCredentials)

	config := huma.DefaultConfig("Stocksync Relay API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"licenseKey": {Type: "apiKey", In: "header", Name: auth.HeaderLicenseKey},
		"dealerId":   {Type: "apiKey", In: "header", Name: auth.HeaderTenantID},
	}

	API := humachi.New(mux, config)

	h := handlers(API, deps, log)
	h.Health.SetupRoutes(API)
	h.Sync.SetupRoutes(API)

	return mux
}

func handlers(API huma.API, deps Dependencies, log *slog.Logger) *Handlers {
	authMW := auth.New(deps.Authorizer, log)
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	middlewares.Add(loggerMW.Middleware())
	healthHandler := healthAPI.NewHandler(deps.Storage, log, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware())
	middlewares.Add(authMW.Middleware(API))
	syncHandler := syncAPI.NewHandler(deps.Sync, log, middlewares.GetAllAndClear())

	return &Handlers{
		Health: healthHandler,
		Sync:   syncHandler,
	}
}
