package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reputation_notifications_total",
		Help: "Outbound notifications by kind and result.",
	}, []string{"kind", "result"})

	TextGenFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reputation_textgen_fallbacks_total",
		Help: "Text generation calls that fell back to a default value.",
	}, []string{"task"})

	FollowUpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reputation_followups_total",
		Help: "Follow-up rows processed by outcome.",
	}, []string{"outcome"})

	ReferralsIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reputation_referrals_issued_total",
		Help: "Referral tokens issued.",
	})

	ReportsGeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reputation_reports_generated_total",
		Help: "Report generations by period and result.",
	}, []string{"period", "result"})

	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "reputation_task_duration_seconds",
		Help: "Duration of background task handlers.",
	}, []string{"task_type"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "http_request_duration_seconds",
		Help: "Duration of HTTP requests.",
	}, []string{"path"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"path", "method", "code"})
)

func ObserveTask(taskType string, start time.Time) {
	TaskDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
}

// Middleware records request counts and latency by route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(path, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}
}

func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
