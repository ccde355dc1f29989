package followup

import (
	"net/http"

	"smallbiznis-reputation/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/v1/business/customers/:id/follow-ups", middleware.RequireBusiness())
	g.GET("", h.list)
	g.POST("", h.schedule)
}

func (h *Handler) list(c *gin.Context) {
	rows, err := h.svc.ListForCustomer(c.Request.Context(), middleware.BusinessID(c.Request.Context()), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

func (h *Handler) schedule(c *gin.Context) {
	ctx := c.Request.Context()
	if _, err := h.svc.customers.Get(ctx, middleware.BusinessID(ctx), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}

	n, err := h.svc.Schedule(ctx, c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scheduled": n})
}
