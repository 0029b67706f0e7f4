// POST   /api/v1/user/register          # Регистрация (публичный)
// POST   /api/v1/user/login             # Логин (публичный)
// GET    /api/v1/health                 # Состояние сервиса (публичный)
// GET    /api/v1/ping                   # Время сервера (публичный)
// GET    /api/v1/entities               # Все сущности аккаунта (auth)
// GET    /api/v1/entities/changes       # Изменения после метки (auth)
// GET    /api/v1/entities/{type}/{id}   # Текущая версия сущности (auth)
// POST   /api/v1/entities/push          # Применить операцию устройства (auth, X-Device-ID)
// POST   /api/v1/devices/touch          # Регистрация устройства (auth, X-Device-ID)
// GET    /api/v1/devices                # Устройства аккаунта (auth)
// PUT    /api/v1/devices/{id}           # Переименовать устройство (auth)
// DELETE /api/v1/devices/{id}           # Отозвать устройство (auth)

package api

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"

	"recipesync/internal/app/common/httpmw"
	"recipesync/internal/app/server/api/http/devices"
	"recipesync/internal/app/server/api/http/entities"
	healthAPI "recipesync/internal/app/server/api/http/health"
	"recipesync/internal/app/server/api/http/middleware/auth"
	userAPI "recipesync/internal/app/server/api/http/user"
	"recipesync/internal/app/server/config"
	"recipesync/internal/domain/device"
	"recipesync/internal/domain/entity"
	"recipesync/internal/domain/session"
	"recipesync/internal/domain/user"
	"recipesync/internal/infrastructure/storage/postgres"
	"recipesync/internal/utils/clock"
)

type Handlers struct {
	Health   *healthAPI.Handler
	User     *userAPI.Handler
	Entities *entities.Handler
	Devices  *devices.Handler
}

// Services доменные сервисы сервера
type Services struct {
	Users    user.Servicer
	Sessions session.Servicer
	Entities entity.Servicer
	Devices  device.Servicer
}

// NewServices собирает сервисы поверх PostgreSQL
func NewServices(storage *postgres.Storage, cfg *config.Config, log *slog.Logger) *Services {
	clk := clock.Real{}
	devicesSvc := device.NewService(postgres.NewDeviceRepository(storage, log), clk, log)
	return &Services{
		Users:    user.NewService(postgres.NewUserRepository(storage, log), user.NewPasswordValidator(), log),
		Sessions: session.NewService(postgres.NewSessionRepository(storage, log), clk, cfg.Session.TTL, log),
		Entities: entity.NewService(postgres.NewEntityRepository(storage, log), devicesSvc, clk, log),
		Devices:  devicesSvc,
	}
}

// New создает *chi.Mux со всеми операциями, зарегистрированными через huma.Register
func New(svc *Services, cfg *config.Config, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()

	humaCfg := huma.DefaultConfig("Recipe Sync API", "1.0.0")
	humaCfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}

	API := humachi.New(mux, humaCfg)

	h := handlers(API, svc, cfg, log)
	h.Health.SetupRoutes(API)
	h.User.SetupRoutes(API)
	h.Entities.SetupRoutes(API)
	h.Devices.SetupRoutes(API)

	return mux
}

func handlers(api huma.API, svc *Services, cfg *config.Config, log *slog.Logger) *Handlers {
	authMW := auth.New(api, svc.Sessions, log)
	loggerMW := httpmw.NewLogger(log)
	middlewares := httpmw.NewContainer()

	middlewares.Add(loggerMW.Middleware())
	healthHandler := healthAPI.NewHandler(clock.Real{}, log, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware())
	userHandler := userAPI.NewHandler(svc.Users, svc.Sessions, log, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware())
	middlewares.Add(authMW.Middleware())
	entitiesHandler := entities.NewHandler(svc.Entities, cfg.Server.ChangesLimit, log, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware())
	middlewares.Add(authMW.Middleware())
	devicesHandler := devices.NewHandler(svc.Devices, log, middlewares.GetAllAndClear())

	return &Handlers{
		Health:   healthHandler,
		User:     userHandler,
		Entities: entitiesHandler,
		Devices:  devicesHandler,
	}
}
