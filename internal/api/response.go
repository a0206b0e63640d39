package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"workflowhr/internal/fieldschema"
)

func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func AbortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

func Unauthorized(c *gin.Context)                { Error(c, http.StatusUnauthorized, "unauthorized") }
func BadRequest(c *gin.Context, msg string)      { Error(c, http.StatusBadRequest, msg) }
func Forbidden(c *gin.Context, msg string)       { Error(c, http.StatusForbidden, msg) }
func NotFound(c *gin.Context, msg string)        { Error(c, http.StatusNotFound, msg) }
func Conflict(c *gin.Context, msg string)        { Error(c, http.StatusConflict, msg) }
func TooManyRequests(c *gin.Context, msg string) { Error(c, http.StatusTooManyRequests, msg) }
func Internal(c *gin.Context, msg string)        { Error(c, http.StatusInternalServerError, msg) }

// ValidationFailed 返回 400，并附带每一条违反的规则。
func ValidationFailed(c *gin.Context, violations []fieldschema.Violation) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":      "validation failed",
		"violations": violations,
	})
}

// replyValidation 在 err 为校验错误时写入 400 响应，并返回是否已处理。
func replyValidation(c *gin.Context, err error) bool {
	var verr *fieldschema.ValidationError
	if errors.As(err, &verr) {
		ValidationFailed(c, verr.Violations)
		return true
	}
	return false
}
