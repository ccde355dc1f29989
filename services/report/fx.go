package report

import (
	"smallbiznis-reputation/pkg/config"
	"smallbiznis-reputation/pkg/db"
	"smallbiznis-reputation/pkg/httpapi"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("report.module",
	fx.Provide(NewService),
	fx.Invoke(migrate),
)

// StoreModule backs report artifacts with the MinIO bucket.
var StoreModule = fx.Module("report.store",
	fx.Provide(NewMinioStore),
)

var HTTPModule = fx.Module("report.http",
	Module,
	fx.Provide(httpapi.AsRegistrar(NewHandler)),
)

func migrate(conn *gorm.DB, cfg *config.Config) error {
	return db.Migrate(conn, cfg, Models()...)
}
