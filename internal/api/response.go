package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// APIResponse is the uniform envelope for every endpoint.
type APIResponse struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id,omitempty"`
}

func respond(c *gin.Context, status int, resp APIResponse) {
	resp.Timestamp = time.Now().UTC().Format(time.RFC3339)
	resp.RequestID = c.GetString(requestIDKey)
	c.JSON(status, resp)
}

func respondOK(c *gin.Context, data any, message string) {
	respond(c, http.StatusOK, APIResponse{Success: true, Data: data, Message: message})
}

func respondCreated(c *gin.Context, data any, message string) {
	respond(c, http.StatusCreated, APIResponse{Success: true, Data: data, Message: message})
}

func respondError(c *gin.Context, status int, err error) {
	respond(c, status, APIResponse{Success: false, Error: err.Error()})
}
