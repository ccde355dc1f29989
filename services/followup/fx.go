package followup

import (
	"smallbiznis-reputation/pkg/config"
	"smallbiznis-reputation/pkg/db"
	"smallbiznis-reputation/pkg/httpapi"
	"smallbiznis-reputation/pkg/textgen"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("followup.module",
	fx.Provide(
		NewService,
		func(a *textgen.Adapter) Drafter { return a },
	),
	fx.Invoke(migrate),
)

var HTTPModule = fx.Module("followup.http",
	Module,
	fx.Provide(httpapi.AsRegistrar(NewHandler)),
)

func migrate(conn *gorm.DB, cfg *config.Config) error {
	return db.Migrate(conn, cfg, Models()...)
}
