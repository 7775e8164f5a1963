// Package middleware carries the gin middleware the router installs ahead
// of every route: CORS, and request/trace-id propagation into the
// structured logger and response headers. Adapted from the teacher's
// internal/http/middleware/{cors,request_context,trace_context}.go, merged
// into one file since this service has far fewer cross-cutting concerns
// than the teacher's (no auth middleware -- the core has no end-user
// surface, per spec.md §1 "out of scope: the web UI and authentication").
package middleware

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/reelsheet/montage-core/internal/platform/ctxutil"
)

// CORS allows the operator console / polling UI (an out-of-scope external
// collaborator per spec.md §1) to call the read-only GET endpoint and the
// init/drive entry points from a browser origin.
func CORS(allowOrigins []string) gin.HandlerFunc {
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	return cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "X-Requested-With", "Idempotency-Key"},
		AllowCredentials: true,
	})
}

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"
)

// TraceContext stamps every request with a trace/request id pair, threading
// it into context.Context (for orchestrator spans and logs) and mirroring
// it back onto the response so a caller can correlate a failed init/drive
// call with server-side logs.
func TraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := strings.TrimSpace(c.GetHeader(headerRequestID))
		if reqID == "" {
			reqID = uuid.New().String()
		}
		traceID := strings.TrimSpace(c.GetHeader(headerTraceID))
		if traceID == "" {
			traceID = uuid.New().String()
		}
		ctx := ctxutil.WithTraceData(c.Request.Context(), &ctxutil.TraceData{
			TraceID:   traceID,
			RequestID: reqID,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Set("trace_id", traceID)
		c.Set("request_id", reqID)
		c.Writer.Header().Set(headerTraceID, traceID)
		c.Writer.Header().Set(headerRequestID, reqID)
		c.Next()
	}
}
