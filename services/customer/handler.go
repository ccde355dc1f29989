package customer

import (
	"net/http"

	"smallbiznis-reputation/pkg/errutil"
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
	g := r.Group("/v1/business/customers", middleware.RequireBusiness())
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.POST("/:id/visits", h.recordVisit)
}

func (h *Handler) list(c *gin.Context) {
	var req ListInput
	if err := c.ShouldBindQuery(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid query", err))
		return
	}

	data, info, err := h.svc.List(c.Request.Context(), middleware.BusinessID(c.Request.Context()), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": data, "page_info": info})
}

func (h *Handler) create(c *gin.Context) {
	var req CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	out, err := h.svc.Create(c.Request.Context(), middleware.BusinessID(c.Request.Context()), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *Handler) get(c *gin.Context) {
	out, err := h.svc.Get(c.Request.Context(), middleware.BusinessID(c.Request.Context()), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) recordVisit(c *gin.Context) {
	out, err := h.svc.RecordVisit(c.Request.Context(), middleware.BusinessID(c.Request.Context()), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}
