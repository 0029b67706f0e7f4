// GET    /api/v1/sync/status                     # Состояние синхронизации
// GET    /api/v1/sync/status/stream              # Поток состояния (websocket)
// POST   /api/v1/sync                            # Запустить цикл
// POST   /api/v1/sync/pause                      # Пауза
// POST   /api/v1/sync/resume                     # Возобновление
// POST   /api/v1/sync/entity/{type}/{id}         # Синхронизировать одну сущность
// POST   /api/v1/sync/reset?confirm=true         # Сбросить локальное состояние
// GET    /api/v1/sync/operations                 # Журнал операций
// POST   /api/v1/sync/operations                 # Поставить мутацию в очередь
// POST   /api/v1/sync/operations/{id}/retry      # Повторить операцию
// POST   /api/v1/sync/operations/{id}/cancel     # Отменить операцию
// GET    /api/v1/sync/conflicts                  # Конфликты
// POST   /api/v1/sync/conflicts/{id}/resolve     # Разрешить конфликт
// POST   /api/v1/sync/conflicts/resolve-all      # Разрешить все
// GET    /api/v1/sync/settings                   # Настройки
// PUT    /api/v1/sync/settings                   # Заменить настройки
// GET    /api/v1/backups                         # Резервные копии
// POST   /api/v1/backups                         # Создать копию
// GET    /api/v1/backups/{id}                    # Сведения о копии
// POST   /api/v1/backups/{id}/retry              # Повторить неудачную копию
// GET    /api/v1/backups/{id}/download           # Скачать артефакт
// DELETE /api/v1/backups/{id}                    # Удалить копию
// POST   /api/v1/restores                        # Восстановить
// GET    /api/v1/restores                        # История восстановлений
// GET    /api/v1/restores/{id}                   # Ход восстановления
// POST   /api/v1/restores/{id}/cancel            # Отменить восстановление
// GET    /api/v1/devices                         # Устройства аккаунта
// PUT    /api/v1/devices/{id}                    # Переименовать устройство
// DELETE /api/v1/devices/{id}                    # Отозвать устройство
// GET    /metrics                                # Метрики Prometheus

package api

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/exp/slog"

	"recipesync/internal/app/client/api/http/backups"
	"recipesync/internal/app/client/api/http/conflicts"
	"recipesync/internal/app/client/api/http/devices"
	"recipesync/internal/app/client/api/http/operations"
	"recipesync/internal/app/client/api/http/restores"
	settingsAPI "recipesync/internal/app/client/api/http/settings"
	syncAPI "recipesync/internal/app/client/api/http/sync"
	"recipesync/internal/app/common/httpmw"
)

type Handlers struct {
	Sync       *syncAPI.Handler
	Operations *operations.Handler
	Conflicts  *conflicts.Handler
	Settings   *settingsAPI.Handler
	Backups    *backups.Handler
	Restores   *restores.Handler
	Devices    *devices.Handler
}

// Services компоненты агента, доступные приложению
type Services struct {
	Sync       syncAPI.Coordinator
	Queue      operations.Queue
	Operations operations.Coordinator
	Conflicts  conflicts.Lister
	Resolver   conflicts.Resolver
	Settings   settingsAPI.Store
	Backups    backups.Manager
	Restores   restores.Engine
	Devices    devices.Registry
	// DeviceID от имени этого устройства разрешаются конфликты
	DeviceID string
}

// New создает *chi.Mux локального API агента
func New(svc *Services, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()

	API := humachi.New(mux, huma.DefaultConfig("Recipe Sync Agent API", "1.0.0"))

	h := handlers(svc, log)
	h.Sync.SetupRoutes(API)
	h.Operations.SetupRoutes(API)
	h.Conflicts.SetupRoutes(API)
	h.Settings.SetupRoutes(API)
	h.Backups.SetupRoutes(API)
	h.Restores.SetupRoutes(API)
	h.Devices.SetupRoutes(API)

	mux.Get(syncAPI.StreamPath, h.Sync.Stream)
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func handlers(svc *Services, log *slog.Logger) *Handlers {
	loggerMW := httpmw.NewLogger(log)
	middlewares := httpmw.NewContainer()

	middlewares.Add(loggerMW.Middleware())
	syncHandler := syncAPI.NewHandler(svc.Sync, log, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware())
	operationsHandler := operations.NewHandler(svc.Queue, svc.Operations, log, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware())
	conflictsHandler := conflicts.NewHandler(svc.Conflicts, svc.Resolver, svc.DeviceID, log, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware())
	settingsHandler := settingsAPI.NewHandler(svc.Settings, log, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware())
	backupsHandler := backups.NewHandler(svc.Backups, log, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware())
	restoresHandler := restores.NewHandler(svc.Restores, log, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware())
	devicesHandler := devices.NewHandler(svc.Devices, log, middlewares.GetAllAndClear())

	return &Handlers{
		Sync:       syncHandler,
		Operations: operationsHandler,
		Conflicts:  conflictsHandler,
		Settings:   settingsHandler,
		Backups:    backupsHandler,
		Restores:   restoresHandler,
		Devices:    devicesHandler,
	}
}
