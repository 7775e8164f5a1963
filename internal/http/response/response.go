// Package response defines the §6 response envelope:
// {success, videoId, sheetId?, totalChunks?, completedChunks?, error?} for
// the orchestrator entry points, plus a generic error envelope for
// validation failures, in the teacher's internal/http/response idiom.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error     APIError `json:"error"`
	TraceID   string   `json:"trace_id,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error:     APIError{Message: msg, Code: code},
		TraceID:   c.GetString("trace_id"),
		RequestID: c.GetString("request_id"),
	})
}

// OrchestratorResult is the §6 "{success, videoId, sheetId?, totalChunks?,
// completedChunks?, error?}" shape shared by the init and drive endpoints.
type OrchestratorResult struct {
	Success         bool   `json:"success"`
	VideoID         string `json:"videoId"`
	SheetID         string `json:"sheetId,omitempty"`
	TotalChunks     int    `json:"totalChunks,omitempty"`
	CompletedChunks int    `json:"completedChunks,omitempty"`
	Error           string `json:"error,omitempty"`
}

func RespondOrchestrator(c *gin.Context, status int, r OrchestratorResult) {
	c.JSON(status, r)
}

func RespondOK(c *gin.Context, body gin.H) {
	c.JSON(http.StatusOK, body)
}
