package referral

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
	r.GET("/referral/:token", h.view)

	g := r.Group("/v1/business/referrals", middleware.RequireBusiness())
	g.GET("", h.list)
	g.POST("/:token/redeem", h.redeem)
}

func (h *Handler) view(c *gin.Context) {
	out, err := h.svc.View(c.Request.Context(), c.Param("token"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) list(c *gin.Context) {
	rows, err := h.svc.ListForBusiness(c.Request.Context(), middleware.BusinessID(c.Request.Context()))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

type redeemRequest struct {
	CustomerID string `json:"customer_id" binding:"required"`
}

func (h *Handler) redeem(c *gin.Context) {
	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	out, err := h.svc.Redeem(c.Request.Context(), middleware.BusinessID(c.Request.Context()), c.Param("token"), req.CustomerID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}
