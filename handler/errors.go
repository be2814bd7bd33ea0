package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/absolute0github/band-contract-plugin/middleware"
	"github.com/absolute0github/band-contract-plugin/pkg/logger"
	"github.com/absolute0github/band-contract-plugin/service"
)

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	var (
		validation *service.ValidationError
		notFound   *service.NotFoundError
		conflict   *service.StateConflictError
		limited    *service.RateLimitError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &conflict):
		return http.StatusForbidden
	case errors.As(err, &limited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func setRetryAfter(c *gin.Context, err error) {
	var limited *service.RateLimitError
	if errors.As(err, &limited) && limited.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(limited.RetryAfter.Seconds()+0.999)))
	}
}

// respondError writes an admin API error. Internal failures are logged and hidden.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(c.Request.Context(), "request failed", "error", err)
		c.JSON(status, gin.H{"error": "Internal server error", "request_id": middleware.GetRequestID(c)})
		return
	}
	setRetryAfter(c, err)

	body := gin.H{"error": err.Error()}
	var validation *service.ValidationError
	if errors.As(err, &validation) {
		body["error"] = validation.Message
		if len(validation.Fields) > 0 {
			body["fields"] = validation.Fields
		}
	}
	c.JSON(status, body)
}

// requestMeta describes the caller for activity records.
func requestMeta(c *gin.Context, actor string) service.RequestMeta {
	if actor == "" {
		actor = middleware.GetUsername(c)
	}
	return service.RequestMeta{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Actor:     actor,
	}
}
