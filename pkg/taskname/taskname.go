package taskname

const (
	// Review tasks
	ReviewProcessAI      = "review:process_ai"
	ReviewReferralReward = "review:referral_reward"

	// Automation tasks
	FollowUpProcessDue = "followup:process_due"
	ReportCycle        = "report:cycle"
)

// Queues. Follow-ups and reports live on separate queues so a long report
// cycle never holds the worker slots the follow-up pass needs.
const (
	QueueCritical = "critical"
	QueueFollowUp = "followup"
	QueueReport   = "report"
)
