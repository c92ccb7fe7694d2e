package handler

import (
	"errors"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/repodoc/docgen_server/internal/model/dto"
	"github.com/repodoc/docgen_server/internal/pkg/response"
	"github.com/repodoc/docgen_server/internal/service"
)

type FeedbackHandler struct {
	feedbackService *service.FeedbackService
}

func NewFeedbackHandler(feedbackService *service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: feedbackService}
}

// Submit handles POST /api/v1/jobs/:id/feedback.
func (h *FeedbackHandler) Submit(c *gin.Context) {
	var req dto.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "rating is required")
		return
	}

	item, err := h.feedbackService.Submit(c.Param("id"), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRating):
			response.ParamError(c, err.Error())
		case errors.Is(err, service.ErrJobNotFound):
			response.NotFoundError(c, "job not found")
		default:
			log.Printf("submit feedback: %v", err)
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, item)
}

// List handles GET /api/v1/jobs/:id/feedback.
func (h *FeedbackHandler) List(c *gin.Context) {
	items, err := h.feedbackService.List(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			response.NotFoundError(c, "job not found")
			return
		}
		log.Printf("list feedback: %v", err)
		response.ServerError(c, "")
		return
	}

	response.Success(c, items)
}
