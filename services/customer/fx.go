package customer

import (
	"smallbiznis-reputation/pkg/config"
	"smallbiznis-reputation/pkg/db"
	"smallbiznis-reputation/pkg/httpapi"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("customer.module",
	fx.Provide(NewService),
	fx.Invoke(migrate),
)

var HTTPModule = fx.Module("customer.http",
	Module,
	fx.Provide(httpapi.AsRegistrar(NewHandler)),
)

func migrate(conn *gorm.DB, cfg *config.Config) error {
	return db.Migrate(conn, cfg, Models()...)
}
