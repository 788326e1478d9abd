package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope every API endpoint returns.
type Response struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

const (
	CodeOK             = "OK"
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeNotFound       = "NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeNotConfigured  = "NOT_CONFIGURED"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeInternal       = "INTERNAL_ERROR"
)

func respond(c *gin.Context, status int, code, message string, data any) {
	c.JSON(status, Response{Code: code, Message: message, Data: data})
}

func ok(c *gin.Context, data any) {
	respond(c, http.StatusOK, CodeOK, "OK", data)
}

func fail(c *gin.Context, status int, code, message string, detail any) {
	// Keep the envelope stable: free-form details go into `data.detail`.
	payload := gin.H{}
	if detail != nil {
		payload["detail"] = detail
	}
	respond(c, status, code, message, payload)
}
