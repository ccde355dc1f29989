package httpapi

import (
	"smallbiznis-reputation/pkg/config"
	"smallbiznis-reputation/pkg/health"
	"smallbiznis-reputation/pkg/metrics"
	"smallbiznis-reputation/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Registrar mounts a service's routes on the shared engine.
type Registrar interface {
	Register(r gin.IRouter)
}

var Module = fx.Module("httpapi",
	fx.Provide(NewRouter),
)

// AsRegistrar annotates a handler constructor so NewRouter picks it up.
func AsRegistrar(f any) any {
	return fx.Annotate(f,
		fx.As(new(Registrar)),
		fx.ResultTags(`group:"routes"`),
	)
}

type RouterParams struct {
	fx.In
	Config     *config.Config
	Health     health.HealthService
	Registrars []Registrar `group:"routes"`
}

func NewRouter(p RouterParams) *gin.Engine {
	if p.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), metrics.Middleware(), middleware.Error())

	r.GET("/healthz", p.Health.Liveness)
	r.GET("/readyz", p.Health.Readiness)
	r.GET("/metrics", metrics.Handler())

	for _, reg := range p.Registrars {
		reg.Register(r)
	}

	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
		}
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
		}
		zap.L().Debug("http request", fields...)
	}
}
