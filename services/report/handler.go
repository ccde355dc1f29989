package report

import (
	"fmt"
	"net/http"

	"smallbiznis-reputation/pkg/middleware"
	"smallbiznis-reputation/services/business"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/v1/business/reports", middleware.RequireBusiness())
	g.GET("", h.list)
	g.GET("/preview", h.preview)
}

func (h *Handler) list(c *gin.Context) {
	rows, err := h.svc.List(c.Request.Context(), middleware.BusinessID(c.Request.Context()))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

// preview streams a freshly rendered PDF for ?period=weekly|monthly.
func (h *Handler) preview(c *gin.Context) {
	freq := business.ReportFrequency(c.DefaultQuery("period", string(business.ReportWeekly)))
	out, err := h.svc.Preview(c.Request.Context(), middleware.BusinessID(c.Request.Context()), freq)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename))
	c.Data(http.StatusOK, ContentType, out.Data)
}
