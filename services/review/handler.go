package review

import (
	"net/http"

	"smallbiznis-reputation/pkg/db/pagination"
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
	public := r.Group("/r/:token")
	public.GET("", h.open)
	public.POST("", h.submit)
	public.GET("/feedback", h.feedbackForm)
	public.POST("/feedback", h.submitFeedback)
	public.POST("/forward", h.forward)

	owner := r.Group("/v1/business", middleware.RequireBusiness())
	owner.POST("/review-requests", h.issue)
	owner.GET("/review-requests", h.listRequests)
	owner.GET("/reviews", h.list)
	owner.GET("/reviews/:id", h.get)
	owner.POST("/reviews/:id/respond", h.respond)
	owner.POST("/reviews/:id/send-response", h.sendResponse)
}

func (h *Handler) open(c *gin.Context) {
	view, err := h.svc.Open(c.Request.Context(), c.Param("token"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) submit(c *gin.Context) {
	var req SubmitInput
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	out, err := h.svc.Submit(c.Request.Context(), c.Param("token"), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *Handler) feedbackForm(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"issues": FeedbackIssues()})
}

func (h *Handler) submitFeedback(c *gin.Context) {
	var req DetailedFeedbackInput
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	out, err := h.svc.SubmitDetailedFeedback(c.Request.Context(), c.Param("token"), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"review": out, "contact_requested": req.ContactMe})
}

func (h *Handler) forward(c *gin.Context) {
	out, err := h.svc.RecordForward(c.Request.Context(), c.Param("token"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) issue(c *gin.Context) {
	var req IssueInput
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	out, err := h.svc.IssueRequest(c.Request.Context(), middleware.BusinessID(c.Request.Context()), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *Handler) listRequests(c *gin.Context) {
	var req pagination.Pagination
	if err := c.ShouldBindQuery(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid query", err))
		return
	}

	data, info, err := h.svc.ListRequests(c.Request.Context(), middleware.BusinessID(c.Request.Context()), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": data, "page_info": info})
}

func (h *Handler) list(c *gin.Context) {
	var req ListInput
	if err := c.ShouldBindQuery(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid query", err))
		return
	}

	data, info, err := h.svc.ListReviews(c.Request.Context(), middleware.BusinessID(c.Request.Context()), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": data, "page_info": info})
}

func (h *Handler) get(c *gin.Context) {
	out, err := h.svc.GetReview(c.Request.Context(), middleware.BusinessID(c.Request.Context()), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) respond(c *gin.Context) {
	var req RespondInput
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	out, err := h.svc.RespondToReview(c.Request.Context(), middleware.BusinessID(c.Request.Context()), c.Param("id"), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) sendResponse(c *gin.Context) {
	var req SendResponseInput
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(errutil.BadRequest("invalid request body", err))
			return
		}
	}

	out, err := h.svc.SendResponse(c.Request.Context(), middleware.BusinessID(c.Request.Context()), c.Param("id"), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}
