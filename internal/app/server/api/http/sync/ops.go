package sync

import (
	"net/http"
	"strings"

	"stocksync/internal/app/server/api/http/middleware/auth"

	"github.com/danielgtaylor/huma/v2"
)

func operationID(prefix, name string) string {
	return strings.Trim(strings.ReplaceAll(prefix, "/", "-"), "-") + "-" + name
}

func (h *Handler) pushOp(prefix string) huma.Operation {
	return huma.Operation{
		OperationID:  operationID(prefix, "transactions-push"),
		Method:       http.MethodPost,
		Path:         prefix + "/transactions/push",
		Summary:      "Отправить пакет транзакций устройства",
		Description:  "Идемпотентная запись: повторный id засчитывается как skipped. Пакет можно безопасно повторять целиком.",
		Tags:         []string{"sync"},
		MaxBodyBytes: auth.MaxBodyBytes,
		Middlewares:  h.middleware,
	}
}

func (h *Handler) pullOp(prefix string) huma.Operation {
	return huma.Operation{
		OperationID: operationID(prefix, "transactions-pull"),
		Method:      http.MethodPost,
		Path:        prefix + "/transactions/pull",
		Summary:     "Получить транзакции других устройств",
		Description: "Возвращает записи других устройств дилера с synced_at больше since. Следующий курсор в next_cursor.",
		Tags:        []string{"sync"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) heartbeatOp(prefix string) huma.Operation {
	return huma.Operation{
		OperationID: operationID(prefix, "devices-heartbeat"),
		Method:      http.MethodPost,
		Path:        prefix + "/devices/heartbeat",
		Summary:     "Отметка присутствия устройства",
		Description: "Обновляет время контакта, адрес, имя и число неотправленных записей устройства",
		Tags:        []string{"devices"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) listDevicesOp() huma.Operation {
	return huma.Operation{
		OperationID: "sync-devices-list",
		Method:      http.MethodGet,
		Path:        syncPrefix + "/devices",
		Summary:     "Список устройств дилера",
		Description: "Статус online/idle/offline вычисляется в момент запроса",
		Tags:        []string{"devices"},
		Middlewares: h.middleware,
	}
}
