package task

import (
	"context"
	"os"
	"time"

	"smallbiznis-reputation/pkg/config"
	"smallbiznis-reputation/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func redisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

var Client = fx.Module("asynq:client",
	fx.Provide(registerClient, NewEnqueuer),
)

func registerClient(lc fx.Lifecycle, cfg *config.Config) *asynq.Client {
	client := asynq.NewClient(redisOpt(cfg))

	if err := client.Ping(); err != nil {
		zap.L().Error("[Asynq] Failed to connect to Asynq", zap.Error(err))
		os.Exit(1)
	}

	zap.L().Info("[Asynq] Connected to Asynq")

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return client
}

var Server = fx.Module("asynq:server",
	fx.Provide(registerServerMux),
	fx.Invoke(registerAsynqServer),
)

func registerServerMux() *asynq.ServeMux {
	return asynq.NewServeMux()
}

func registerAsynqServer(lc fx.Lifecycle, cfg *config.Config, mux *asynq.ServeMux) {
	concurrency := cfg.Automation.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}

	server := asynq.NewServer(
		redisOpt(cfg),
		asynq.Config{
			Concurrency:    concurrency,
			RetryDelayFunc: asynq.DefaultRetryDelayFunc,
			Queues: map[string]int{
				taskname.QueueCritical: 6,
				taskname.QueueFollowUp: 3,
				taskname.QueueReport:   1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				zap.L().Error("asynq task failed", zap.String("task_type", task.Type()), zap.Error(err))
			}),
			ShutdownTimeout: 30 * time.Second,
		},
	)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := server.Start(mux); err != nil {
					zap.L().Error("[Asynq] Failed to start Asynq server", zap.Error(err))
					os.Exit(1)
				}
			}()
			zap.L().Info("[Asynq] Asynq server started", zap.String("addr", cfg.Redis.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			server.Shutdown()
			return nil
		},
	})
}

var Scheduler = fx.Module("asynq:scheduler",
	fx.Provide(registerScheduler),
	fx.Invoke(runScheduler),
)

func registerScheduler(cfg *config.Config) (*asynq.Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Automation.Timezone)
	if err != nil {
		return nil, err
	}

	return asynq.NewScheduler(redisOpt(cfg), &asynq.SchedulerOpts{
		Location: loc,
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				// Unique tasks still running from the previous tick land here.
				zap.L().Warn("[Scheduler] enqueue skipped", zap.Error(err))
				return
			}
			zap.L().Debug("[Scheduler] enqueued", zap.String("task_type", info.Type), zap.String("queue", info.Queue))
		},
	}), nil
}

func runScheduler(lc fx.Lifecycle, s *asynq.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := s.Start(); err != nil {
				return err
			}
			zap.L().Info("[Scheduler] started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			s.Shutdown()
			zap.L().Warn("[Scheduler] stopped")
			return nil
		},
	})
}
