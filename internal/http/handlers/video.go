// Package handlers implements the §6 "Entry points": the orchestrator's
// Init/Drive calls wrapped as HTTP endpoints, plus the read-only polling
// GET. Adapted from the teacher's internal/http/handlers/job.go shape
// (parse path param -> call service -> map error to status code -> envelope
// response) generalized from job lifecycle endpoints to the video pipeline.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/reelsheet/montage-core/internal/http/response"
	"github.com/reelsheet/montage-core/internal/montage/mgerr"
	"github.com/reelsheet/montage-core/internal/montage/orchestrator"
	"github.com/reelsheet/montage-core/internal/montage/progresscache"
	"github.com/reelsheet/montage-core/internal/platform/logger"
	"github.com/reelsheet/montage-core/internal/repos"
	"github.com/reelsheet/montage-core/internal/types"
)

const progressCacheTTL = 5 * time.Second

type VideoHandler struct {
	log    *logger.Logger
	videos repos.VideoRepo
	orch   *orchestrator.Orchestrator
	cache  progresscache.Cache
}

func NewVideoHandler(log *logger.Logger, videos repos.VideoRepo, orch *orchestrator.Orchestrator, cache progresscache.Cache) *VideoHandler {
	return &VideoHandler{log: log.With("component", "VideoHandler"), videos: videos, orch: orch, cache: cache}
}

type initRequest struct {
	VideoURL      string                  `json:"videoUrl"`
	VideoDuration float64                 `json:"videoDuration"`
	ScriptData    []types.ScriptCharacter `json:"scriptData,omitempty"`
}

// POST /videos/:id/init -- spec.md §6 "POST {videoId, videoUrl,
// videoDuration, scriptData?} (initialization)". VideoURL is accepted for
// interface completeness (the orchestrator actually reads the source
// location off the Video row, see orchestrator.InitRequest's doc comment)
// but is not itself consumed here.
func (h *VideoHandler) Init(c *gin.Context) {
	videoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_video_id", err)
		return
	}
	var req initRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	result, err := h.orch.Init(c.Request.Context(), orchestrator.InitRequest{
		VideoID:       videoID,
		VideoDuration: req.VideoDuration,
		ScriptData:    req.ScriptData,
	})
	if err != nil {
		h.respondOrchestratorError(c, videoID, err)
		return
	}
	response.RespondOrchestrator(c, http.StatusOK, toEnvelope(result))
}

// POST /videos/:id/drive -- spec.md §6 "POST {videoId} (drive chunks,
// finalize)".
func (h *VideoHandler) Drive(c *gin.Context) {
	videoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_video_id", err)
		return
	}
	result, err := h.orch.Drive(c.Request.Context(), videoID)
	if err != nil {
		h.respondOrchestratorError(c, videoID, err)
		return
	}
	response.RespondOrchestrator(c, http.StatusOK, toEnvelope(result))
}

// GET /videos/:id -- spec.md §6 "A read-only GET /video/{videoId} returns
// the current progress document for polling UIs." Read-through cache in
// front of the DB row; a cache miss or error never fails the request, it
// just means the DB round trip happens.
func (h *VideoHandler) Get(c *gin.Context) {
	videoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_video_id", err)
		return
	}

	if h.cache != nil {
		if doc, ok := h.cache.Get(c.Request.Context(), videoID.String()); ok {
			response.RespondOK(c, gin.H{
				"videoId":         videoID,
				"progress":        doc,
				"completionRatio": doc.CompletionRatio(),
				"isPartial":       doc.IsPartial(),
			})
			return
		}
	}

	v, err := h.videos.GetByID(c.Request.Context(), nil, videoID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "internal_error", err)
		return
	}
	if v == nil {
		response.RespondError(c, http.StatusNotFound, "video_not_found", errors.New("video not found"))
		return
	}
	doc, err := repos.DecodeProgress(v.Progress)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "progress_unreadable", err)
		return
	}
	if h.cache != nil {
		h.cache.Set(c.Request.Context(), videoID.String(), doc, progressCacheTTL)
	}
	c.JSON(http.StatusOK, gin.H{
		"videoId":         videoID,
		"status":          v.Status,
		"error":           v.Error,
		"progress":        doc,
		"completionRatio": doc.CompletionRatio(),
		"isPartial":       doc.IsPartial(),
	})
}

// DELETE /videos/:id/run -- §6.1 "per-video cancellation token": stops this
// video's in-flight Init or Drive call without touching any other video's
// run. Canceling a video with no in-flight run is a no-op, reported as 404.
func (h *VideoHandler) CancelRun(c *gin.Context) {
	videoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_video_id", err)
		return
	}
	if !h.orch.CancelRun(videoID) {
		response.RespondError(c, http.StatusNotFound, "no_run_in_progress", errors.New("no in-flight run for this video"))
		return
	}
	response.RespondOK(c, gin.H{"videoId": videoID, "canceled": true})
}

func (h *VideoHandler) respondOrchestratorError(c *gin.Context, videoID uuid.UUID, err error) {
	apiErr := mgerr.ToAPIError(err)
	response.RespondOrchestrator(c, apiErr.Status, response.OrchestratorResult{
		Success: false,
		VideoID: videoID.String(),
		Error:   err.Error(),
	})
}

func toEnvelope(r *orchestrator.Result) response.OrchestratorResult {
	if r == nil {
		return response.OrchestratorResult{Success: false}
	}
	env := response.OrchestratorResult{
		Success:         r.Success,
		VideoID:         r.VideoID.String(),
		TotalChunks:     r.TotalChunks,
		CompletedChunks: r.CompletedChunks,
		Error:           r.Error,
	}
	if r.SheetID != uuid.Nil {
		env.SheetID = r.SheetID.String()
	}
	return env
}
