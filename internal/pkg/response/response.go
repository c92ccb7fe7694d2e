package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Application error codes carried alongside the HTTP status.
const (
	CodeSuccess          = 0
	CodeParamError       = 1000
	CodeResourceNotFound = 1003
	CodeConflict         = 1005
	CodeServerError      = 5000
	CodeUnavailable      = 5003
)

var codeMessages = map[int]string{
	CodeSuccess:          "success",
	CodeParamError:       "invalid request",
	CodeResourceNotFound: "resource not found",
	CodeConflict:         "conflicting state",
	CodeServerError:      "internal server error",
	CodeUnavailable:      "service unavailable",
}

// Response is the uniform JSON envelope.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// PageData wraps paginated list payloads.
type PageData struct {
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Items    interface{} `json:"items"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Accepted acknowledges work scheduled for background execution.
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, Response{
		Code:    CodeSuccess,
		Message: "accepted",
		Data:    data,
	})
}

func SuccessPage(c *gin.Context, total int64, page, pageSize int, items interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data: PageData{
			Total:    total,
			Page:     page,
			PageSize: pageSize,
			Items:    items,
		},
	})
}

func errorResponse(c *gin.Context, httpStatus, code int, message string) {
	if message == "" {
		message = codeMessages[code]
	}
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

func ParamError(c *gin.Context, message string) {
	errorResponse(c, http.StatusBadRequest, CodeParamError, message)
}

func NotFoundError(c *gin.Context, message string) {
	errorResponse(c, http.StatusNotFound, CodeResourceNotFound, message)
}

func ConflictError(c *gin.Context, message string) {
	errorResponse(c, http.StatusConflict, CodeConflict, message)
}

func ServerError(c *gin.Context, message string) {
	errorResponse(c, http.StatusInternalServerError, CodeServerError, message)
}

func UnavailableError(c *gin.Context, message string) {
	errorResponse(c, http.StatusServiceUnavailable, CodeUnavailable, message)
}
