package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"smallbiznis-reputation/pkg/config"
	"smallbiznis-reputation/pkg/db"
	"smallbiznis-reputation/pkg/featureflags"
	"smallbiznis-reputation/pkg/gen"
	"smallbiznis-reputation/pkg/hashistack/secretmanager"
	"smallbiznis-reputation/pkg/health"
	"smallbiznis-reputation/pkg/httpapi"
	"smallbiznis-reputation/pkg/logger"
	"smallbiznis-reputation/pkg/notification"
	"smallbiznis-reputation/pkg/otelcol"
	"smallbiznis-reputation/pkg/profiling"
	"smallbiznis-reputation/pkg/redis"
	"smallbiznis-reputation/pkg/server"
	"smallbiznis-reputation/pkg/task"
	"smallbiznis-reputation/pkg/textgen"
	"smallbiznis-reputation/services/business"
	"smallbiznis-reputation/services/customer"
	"smallbiznis-reputation/services/followup"
	"smallbiznis-reputation/services/referral"
	"smallbiznis-reputation/services/report"
	"smallbiznis-reputation/services/review"
)

func main() {
	opts := []fx.Option{
		secretmanager.Module,
		config.Select(),
		logger.Module,
		otelcol.Module,
		profiling.Module,
		db.Module,
		redis.Module,
		gen.Module,
		task.Client,
		featureflags.Module,
		notification.Module,
		textgen.Module,
		health.Module,
		httpapi.Module,
		server.ProvideHTTPServer,
		fx.Provide(
			provideFollowUpScheduler,
			provideReferralEngine,
		),
		business.HTTPModule,
		customer.HTTPModule,
		review.HTTPModule,
		followup.HTTPModule,
		referral.HTTPModule,
		report.HTTPModule,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideFollowUpScheduler(s *followup.Service) review.FollowUpScheduler {
	return s
}

func provideReferralEngine(s *referral.Service) review.ReferralEngine {
	return s
}
