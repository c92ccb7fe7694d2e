package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/repodoc/docgen_server/internal/model/dto"
	"github.com/repodoc/docgen_server/internal/pkg/response"
	"github.com/repodoc/docgen_server/internal/service"
)

type JobHandler struct {
	jobService *service.JobService
}

func NewJobHandler(jobService *service.JobService) *JobHandler {
	return &JobHandler{jobService: jobService}
}

// Analyze handles POST /api/v1/analyze.
func (h *JobHandler) Analyze(c *gin.Context) {
	var req dto.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "repo_url is required")
		return
	}

	resp, err := h.jobService.Submit(c.Request.Context(), req.RepoURL)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRepoURL):
			response.ParamError(c, err.Error())
		case errors.Is(err, service.ErrSubmitFailed):
			response.UnavailableError(c, "analysis queue is unavailable, please retry")
		default:
			log.Printf("submit analysis: %v", err)
			response.ServerError(c, "")
		}
		return
	}

	response.Accepted(c, resp)
}

// GetJob handles GET /api/v1/jobs/:id.
func (h *JobHandler) GetJob(c *gin.Context) {
	detail, err := h.jobService.GetJob(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			response.NotFoundError(c, "job not found")
			return
		}
		log.Printf("get job: %v", err)
		response.ServerError(c, "")
		return
	}

	response.Success(c, detail)
}

// ListJobs handles GET /api/v1/jobs.
func (h *JobHandler) ListJobs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	items, total, err := h.jobService.ListJobs(page, pageSize)
	if err != nil {
		log.Printf("list jobs: %v", err)
		response.ServerError(c, "")
		return
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	response.SuccessPage(c, total, page, pageSize, items)
}

// Download handles GET /api/v1/jobs/:id/download.
func (h *JobHandler) Download(c *gin.Context) {
	path, remoteURL, err := h.jobService.PackagePath(c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			response.NotFoundError(c, "job not found")
		case errors.Is(err, service.ErrJobNotCompleted):
			response.ConflictError(c, "documentation package is not ready")
		default:
			log.Printf("resolve package: %v", err)
			response.ServerError(c, "")
		}
		return
	}

	if remoteURL != "" {
		c.Redirect(http.StatusFound, remoteURL)
		return
	}

	c.FileAttachment(path, "documentation.zip")
}
