package automation

import (
	"smallbiznis-reputation/pkg/config"
	"smallbiznis-reputation/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("automation.worker",
	fx.Provide(NewOrchestrator),
	fx.Invoke(RegisterHandlers),
)

var SchedulerModule = fx.Module("automation.scheduler",
	fx.Invoke(RegisterSchedule),
)

func RegisterHandlers(mux *asynq.ServeMux, o *Orchestrator) {
	mux.HandleFunc(taskname.FollowUpProcessDue, o.HandleFollowUpDue)
	mux.HandleFunc(taskname.ReportCycle, o.HandleReportCycle)
	mux.HandleFunc(taskname.ReviewProcessAI, o.HandleProcessAI)
	mux.HandleFunc(taskname.ReviewReferralReward, o.HandleReferralReward)
}

type entry struct {
	spec     string
	taskType string
	queue    string
}

func schedule(cfg *config.Config) []entry {
	return []entry{
		{spec: cfg.Automation.FollowUpCron, taskType: taskname.FollowUpProcessDue, queue: taskname.QueueFollowUp},
		{spec: cfg.Automation.ReportCron, taskType: taskname.ReportCycle, queue: taskname.QueueReport},
	}
}

// RegisterSchedule adds the two periodic passes to the cron scheduler. The
// passes are on separate queues and enqueue at most one pending task each.
func RegisterSchedule(s *asynq.Scheduler, cfg *config.Config) error {
	unique := cfg.Automation.LockTTL
	if unique <= 0 {
		unique = defaultLockTTL
	}

	for _, e := range schedule(cfg) {
		id, err := s.Register(e.spec, asynq.NewTask(e.taskType, nil),
			asynq.Queue(e.queue),
			asynq.MaxRetry(0),
			asynq.Timeout(unique),
			asynq.Unique(unique),
		)
		if err != nil {
			zap.L().Error("[Scheduler] failed to register", zap.String("task_type", e.taskType), zap.String("spec", e.spec), zap.Error(err))
			return err
		}
		zap.L().Info("[Scheduler] registered", zap.String("task_type", e.taskType), zap.String("spec", e.spec), zap.String("entry_id", id))
	}
	return nil
}
