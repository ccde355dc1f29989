package business

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
	r.POST("/v1/businesses", h.create)

	g := r.Group("/v1/business", middleware.RequireBusiness())
	g.GET("", h.get)
	g.PATCH("", h.update)
	g.GET("/settings", h.getSettings)
	g.PATCH("/settings", h.updateSettings)
	g.GET("/templates", h.listTemplates)
	g.POST("/templates", h.createTemplate)
	g.POST("/templates/:id/default", h.setDefaultTemplate)
}

func (h *Handler) create(c *gin.Context) {
	var req CreateBusinessInput
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	b, err := h.svc.CreateBusiness(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *Handler) get(c *gin.Context) {
	b, err := h.svc.GetBusiness(c.Request.Context(), middleware.BusinessID(c.Request.Context()))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) update(c *gin.Context) {
	var req UpdateBusinessInput
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	b, err := h.svc.UpdateBusiness(c.Request.Context(), middleware.BusinessID(c.Request.Context()), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) getSettings(c *gin.Context) {
	s, err := h.svc.GetSettings(c.Request.Context(), middleware.BusinessID(c.Request.Context()))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) updateSettings(c *gin.Context) {
	var req SettingsUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	s, err := h.svc.UpdateSettings(c.Request.Context(), middleware.BusinessID(c.Request.Context()), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) listTemplates(c *gin.Context) {
	templates, err := h.svc.ListTemplates(c.Request.Context(), middleware.BusinessID(c.Request.Context()))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": templates})
}

func (h *Handler) createTemplate(c *gin.Context) {
	var req TemplateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	t, err := h.svc.CreateTemplate(c.Request.Context(), middleware.BusinessID(c.Request.Context()), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *Handler) setDefaultTemplate(c *gin.Context) {
	t, err := h.svc.SetDefaultTemplate(c.Request.Context(), middleware.BusinessID(c.Request.Context()), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, t)
}
