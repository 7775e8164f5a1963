// Package orchestrator implements C11: the per-video driver that sequences
// chunk planning, shot detection, splitting, and persistence at init time,
// then fans the analyzer pool out over pending chunks and triggers
// finalization. Grounded on the teacher's internal/jobs/worker/worker.go
// runLoop (claim-a-row, drive-to-completion, retry-pass-then-stop shape),
// generalized from a generic job queue to montage-specific init/drive
// entry points; bounded-parallel batching uses golang.org/x/sync/errgroup
// the way the teacher fans out independent per-item work in its ingestion
// pipeline.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/reelsheet/montage-core/internal/montage/analyzer"
	"github.com/reelsheet/montage-core/internal/montage/chunkplan"
	"github.com/reelsheet/montage-core/internal/montage/config"
	"github.com/reelsheet/montage-core/internal/montage/credits"
	"github.com/reelsheet/montage-core/internal/montage/finalize"
	"github.com/reelsheet/montage-core/internal/montage/mgerr"
	"github.com/reelsheet/montage-core/internal/montage/parser"
	"github.com/reelsheet/montage-core/internal/montage/progress"
	"github.com/reelsheet/montage-core/internal/montage/prompt"
	"github.com/reelsheet/montage-core/internal/montage/reconcile"
	"github.com/reelsheet/montage-core/internal/montage/registry"
	"github.com/reelsheet/montage-core/internal/montage/shotdetect"
	"github.com/reelsheet/montage-core/internal/montage/shotdetect/thumbnail"
	"github.com/reelsheet/montage-core/internal/montage/splitter"
	"github.com/reelsheet/montage-core/internal/montage/timecode"
	"github.com/reelsheet/montage-core/internal/platform/logger"
	"github.com/reelsheet/montage-core/internal/repos"
	"github.com/reelsheet/montage-core/internal/types"
)

var tracer = otel.Tracer("montage-core/orchestrator")

// Orchestrator ties together the chunk pipeline components behind the two
// entry points spec.md §6 names: Init (plan + split + detect) and Drive
// (analyze + persist + finalize).
type Orchestrator struct {
	log    *logger.Logger
	cfg    config.Config
	videos repos.VideoRepo
	sheets repos.SheetRepo
	entries repos.EntryRepo

	splitter         splitter.Splitter
	primaryDetector  shotdetect.Detector // nil-able: GCS engine, may be unavailable in some deployments
	fallbackDetector shotdetect.Detector // nil-able: local ffmpeg engine
	runner           *analyzer.Runner
	thumbs           *thumbnail.Dumper // nil-able: debug dump disabled unless cfg.ThumbnailDumpDir is set

	runs *runRegistry
}

func New(
	log *logger.Logger,
	cfg config.Config,
	videos repos.VideoRepo,
	sheets repos.SheetRepo,
	entries repos.EntryRepo,
	sp splitter.Splitter,
	primaryDetector shotdetect.Detector,
	fallbackDetector shotdetect.Detector,
	runner *analyzer.Runner,
	thumbs *thumbnail.Dumper,
) *Orchestrator {
	return &Orchestrator{
		log:              log.With("component", "orchestrator"),
		cfg:              cfg,
		videos:           videos,
		sheets:           sheets,
		entries:          entries,
		splitter:         sp,
		primaryDetector:  primaryDetector,
		fallbackDetector: fallbackDetector,
		runner:           runner,
		thumbs:           thumbs,
		runs:             newRunRegistry(),
	}
}

// CancelRun stops videoID's in-flight Init or Drive call, if any, without
// affecting any other video's run. Backs the §6.1 DELETE /videos/:id/run
// endpoint. Reports whether a run was actually found and canceled.
func (o *Orchestrator) CancelRun(videoID uuid.UUID) bool {
	return o.runs.cancel(videoID)
}

// InitRequest is the §6 "POST {videoId, videoUrl, videoDuration, scriptData?}"
// initialization entry point's input. It carries no video URL: the source is
// located via the Video row's SourceStorageURL, which the upload-completion
// step that creates the Video row is responsible for keeping in sync with
// the URL the caller sent.
type InitRequest struct {
	VideoID      uuid.UUID
	VideoDuration float64
	ScriptData   []types.ScriptCharacter
}

// Result is the §6 "{success, videoId, sheetId?, totalChunks?,
// completedChunks?, error?}" response shape, shared by Init and Drive.
type Result struct {
	Success         bool
	VideoID         uuid.UUID
	SheetID         uuid.UUID
	TotalChunks     int
	CompletedChunks int
	Error           string
}

// Init runs chunk planning, shot detection, credits merging, and splitting
// for a video, then persists the seeded progress document. It is idempotent:
// a video that loses the initialization-lock race (another worker already
// claimed it) returns the current state rather than erroring, and a video
// that already has a sheet reuses it.
func (o *Orchestrator) Init(ctx context.Context, req InitRequest) (*Result, error) {
	ctx, done := o.runs.begin(ctx, req.VideoID)
	defer done()

	slog := o.log.With("video_id", req.VideoID.String())

	claimed, err := o.videos.ClaimForProcessing(ctx, nil, req.VideoID, o.cfg.OrchestratorStaleAfter)
	if err != nil {
		return nil, mgerr.PerVideoTerminal(fmt.Errorf("claim video for init: %w", err))
	}
	if claimed == nil {
		return o.currentState(ctx, req.VideoID)
	}

	sheet, err := o.sheets.GetByVideoID(ctx, nil, req.VideoID)
	if err != nil {
		return nil, mgerr.PerVideoTerminal(fmt.Errorf("lookup sheet: %w", err))
	}
	if sheet == nil {
		sheet, err = o.sheets.Create(ctx, nil, &types.MontageSheet{
			VideoID: req.VideoID,
			UserID:  claimed.UserID,
			Title:   claimed.OriginalFilename,
		})
		if err != nil {
			return nil, mgerr.PerVideoTerminal(fmt.Errorf("%w: %v", mgerr.ErrSheetCreateImpossible, err))
		}
	}

	localPath, cleanup, err := o.splitter.DownloadSource(ctx, claimed.UserID.String(), claimed.SourceStorageURL)
	if err != nil {
		_ = o.videos.Fail(ctx, nil, req.VideoID, err.Error())
		return nil, err
	}
	defer cleanup()

	fps := claimed.FrameRate
	if fps <= 0 {
		fps = 24
	}
	duration := req.VideoDuration
	if duration <= 0 {
		duration = claimed.DurationSeconds
	}

	cuts, err := o.detectCuts(ctx, claimed.SourceStorageURL, localPath, shotdetect.Params{
		AdaptiveThreshold: o.cfg.AdaptiveThreshold,
		MinSceneDuration:  o.cfg.MinSceneDuration,
		MaxScenes:         o.cfg.MaxScenes,
	})
	if err != nil {
		_ = o.videos.Fail(ctx, nil, req.VideoID, err.Error())
		return nil, err
	}
	merged := shotdetect.SmartMerge(cuts, duration)
	if o.thumbs != nil {
		o.thumbs.DumpCuts(ctx, localPath, o.cfg.ThumbnailDumpDir+"/"+req.VideoID.String(), merged)
	}
	detectedScenes := make([]types.DetectedScene, 0, len(merged))
	for _, c := range merged {
		tc, _ := timecode.FromSeconds(c.TimestampSeconds, fps)
		detectedScenes = append(detectedScenes, types.DetectedScene{Timecode: tc, Timestamp: c.TimestampSeconds})
	}
	mergedScenes := credits.Merge(shotdetect.CutsToFloat64(merged), duration, fps, credits.Thresholds{
		OpeningWindowSeconds: o.cfg.OpeningWindowSeconds,
		ClosingWindowSeconds: o.cfg.ClosingWindowSeconds,
	})

	windows, err := chunkplan.Plan(duration, o.cfg.ChunkLengthSeconds, o.cfg.ChunkAbsorbSeconds, fps)
	if err != nil {
		_ = o.videos.Fail(ctx, nil, req.VideoID, err.Error())
		return nil, err
	}

	chunks, err := o.splitter.SplitAndUpload(ctx, claimed.UserID.String(), localPath, windows)
	if err != nil {
		_ = o.videos.Fail(ctx, nil, req.VideoID, err.Error())
		return nil, err
	}
	storageURLs := make([]string, len(chunks))
	for _, c := range chunks {
		if c.Index >= 0 && c.Index < len(storageURLs) {
			storageURLs[c.Index] = c.StorageURL
		}
	}

	doc := progress.Initialize(sheet.ID, windows, storageURLs, fps, detectedScenes, mergedScenes, req.ScriptData)
	if err := o.videos.UpdateProgress(ctx, nil, req.VideoID, doc); err != nil {
		return nil, mgerr.PerVideoTerminal(fmt.Errorf("persist initial progress: %w", err))
	}

	slog.Info("video initialized", "sheet_id", sheet.ID.String(), "total_chunks", doc.TotalChunks)
	return &Result{Success: true, VideoID: req.VideoID, SheetID: sheet.ID, TotalChunks: doc.TotalChunks}, nil
}

func (o *Orchestrator) detectCuts(ctx context.Context, gcsURI, localPath string, params shotdetect.Params) ([]shotdetect.Cut, error) {
	if o.primaryDetector != nil {
		cuts, err := o.primaryDetector.Detect(ctx, gcsURI, params)
		if err == nil {
			return cuts, nil
		}
		o.log.Warn("primary shot detector failed, falling back", "error", err)
	}
	if o.fallbackDetector != nil {
		cuts, err := o.fallbackDetector.Detect(ctx, localPath, params)
		if err != nil {
			return nil, mgerr.PerVideoTerminal(fmt.Errorf("%w: %v", mgerr.ErrDetectorUnavailable, err))
		}
		return cuts, nil
	}
	return nil, mgerr.PerVideoTerminal(mgerr.ErrDetectorUnavailable)
}

func (o *Orchestrator) currentState(ctx context.Context, videoID uuid.UUID) (*Result, error) {
	v, err := o.videos.GetByID(ctx, nil, videoID)
	if err != nil {
		return nil, mgerr.PerVideoTerminal(fmt.Errorf("reload video after lost init race: %w", err))
	}
	if v == nil {
		return nil, mgerr.Validation(fmt.Errorf("%w: video %s not found", mgerr.ErrMissingField, videoID))
	}
	doc, err := repos.DecodeProgress(v.Progress)
	if err != nil {
		return nil, mgerr.PerVideoTerminal(fmt.Errorf("%w: %v", mgerr.ErrProgressUnreadable, err))
	}
	return &Result{Success: true, VideoID: videoID, SheetID: doc.SheetID, TotalChunks: doc.TotalChunks, CompletedChunks: doc.CompletedChunks}, nil
}

// Drive runs the §4.11 chunk loop: processes every pending/processing chunk
// in bounded-parallel batches, permits one retry pass over failures when
// their count is within the configured cap, and finalizes once the
// completion ratio clears the configured threshold.
func (o *Orchestrator) Drive(ctx context.Context, videoID uuid.UUID) (*Result, error) {
	ctx, done := o.runs.begin(ctx, videoID)
	defer done()

	slog := o.log.With("video_id", videoID.String())

	v, err := o.videos.GetByID(ctx, nil, videoID)
	if err != nil {
		return nil, mgerr.PerVideoTerminal(fmt.Errorf("load video: %w", err))
	}
	if v == nil {
		return nil, mgerr.Validation(fmt.Errorf("%w: video %s not found", mgerr.ErrMissingField, videoID))
	}
	if v.Status == types.VideoStatusCompleted || v.Status == types.VideoStatusFailed {
		return &Result{Success: v.Status == types.VideoStatusCompleted, VideoID: videoID, Error: v.Error}, nil
	}

	doc, err := repos.DecodeProgress(v.Progress)
	if err != nil {
		_ = o.videos.Fail(ctx, nil, videoID, mgerr.ErrProgressUnreadable.Error())
		return nil, mgerr.PerVideoTerminal(fmt.Errorf("%w: %v", mgerr.ErrProgressUnreadable, err))
	}
	if doc.TotalChunks == 0 {
		return nil, mgerr.Validation(fmt.Errorf("video %s has not been initialized", videoID))
	}

	if err := o.runPass(ctx, v, doc); err != nil {
		return nil, err
	}

	_, _, _, failed := progress.Partition(doc)
	if len(failed) > 0 && len(failed) <= o.cfg.OrchestratorMaxChunkFailures {
		slog.Info("retrying failed chunks", "count", len(failed))
		for _, idx := range failed {
			progress.ResetToPending(doc, idx)
		}
		if err := o.videos.UpdateProgress(ctx, nil, videoID, doc); err != nil {
			return nil, mgerr.PerVideoTerminal(fmt.Errorf("persist retry-pass reset: %w", err))
		}
		if err := o.runPass(ctx, v, doc); err != nil {
			return nil, err
		}
	}

	progress.RecalcCompletedChunks(doc)
	if err := o.videos.UpdateProgress(ctx, nil, videoID, doc); err != nil {
		return nil, mgerr.PerVideoTerminal(fmt.Errorf("persist post-pass progress: %w", err))
	}

	if !progress.AllTerminal(doc) {
		return &Result{Success: true, VideoID: videoID, SheetID: doc.SheetID, TotalChunks: doc.TotalChunks, CompletedChunks: doc.CompletedChunks}, nil
	}

	ratio := doc.CompletionRatio()
	if ratio < o.cfg.FinalizeMinCompletionRatio {
		msg := fmt.Sprintf("completion ratio %.2f below finalize threshold %.2f", ratio, o.cfg.FinalizeMinCompletionRatio)
		_ = o.videos.Fail(ctx, nil, videoID, msg)
		return &Result{Success: false, VideoID: videoID, SheetID: doc.SheetID, TotalChunks: doc.TotalChunks, CompletedChunks: doc.CompletedChunks, Error: msg}, nil
	}

	finResult, err := finalize.Finalize(ctx, o.log, o.entries, o.videos, videoID, doc.SheetID, doc.VideoFps, doc)
	if err != nil {
		_ = o.videos.Fail(ctx, nil, videoID, err.Error())
		return nil, err
	}
	slog.Info("video finalized", "kept_entries", finResult.KeptEntries, "dropped_entries", finResult.DroppedEntries, "warnings", len(finResult.Warnings))

	return &Result{Success: true, VideoID: videoID, SheetID: doc.SheetID, TotalChunks: doc.TotalChunks, CompletedChunks: doc.CompletedChunks}, nil
}

// runPass drives every pending/processing chunk to a terminal status in
// batches of at most cfg.OrchestratorBatchSize, persisting progress after
// each batch. Batch size 1 (the default) reduces to the spec's sequential
// profile; a larger size exercises the bounded-parallel profile, per §5.
func (o *Orchestrator) runPass(ctx context.Context, v *types.Video, doc *types.ProgressDocument) error {
	pending, processing, _, _ := progress.Partition(doc)
	indices := append(append([]int{}, processing...), pending...)
	if len(indices) == 0 {
		return nil
	}

	batchSize := o.cfg.OrchestratorBatchSize
	if batchSize <= 0 {
		batchSize = 1
	}

	for start := 0; start < len(indices); start += batchSize {
		end := start + batchSize
		if end > len(indices) {
			end = len(indices)
		}
		batch := indices[start:end]

		// The character registry is frozen for the duration of the batch
		// (§5): every chunk in the batch prompts against the same snapshot,
		// and their extracted names are merged back in sequentially once
		// the whole batch has returned, rather than racing each other into
		// doc.CharacterRegistry concurrently.
		frozenRegistry := append([]types.CharacterRegistryEntry{}, doc.CharacterRegistry...)
		results := make([]chunkOutcome, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		for i, idx := range batch {
			i, idx := i, idx
			g.Go(func() error {
				results[i] = o.processChunk(gctx, v, doc, idx, frozenRegistry)
				return nil
			})
		}
		_ = g.Wait() // processChunk never returns an error; failures are recorded on the chunk itself

		for _, res := range results {
			if res.completed {
				progress.MergeRegistry(doc, res.names, res.index, doc.Chunks[res.index].StartTimecode)
			}
		}

		progress.RecalcCompletedChunks(doc)
		if err := o.videos.UpdateProgress(ctx, nil, v.ID, doc); err != nil {
			return mgerr.PerVideoTerminal(fmt.Errorf("persist progress after batch: %w", err))
		}
	}
	return nil
}

// chunkOutcome carries back what processChunk found without it touching the
// shared character registry directly.
type chunkOutcome struct {
	index     int
	completed bool
	names     []string
}

// processChunk runs the six §4.11 steps for one chunk against a frozen
// registry snapshot. Errors are recorded on the chunk's own status rather
// than propagated, so one chunk's failure never aborts its batch siblings.
func (o *Orchestrator) processChunk(ctx context.Context, v *types.Video, doc *types.ProgressDocument, idx int, frozenRegistry []types.CharacterRegistryEntry) chunkOutcome {
	log := o.log.With("video_id", v.ID.String(), "chunk_index", idx)
	outcome := chunkOutcome{index: idx}

	if !progress.BeginProcessing(doc, idx) {
		log.Warn("chunk not eligible for processing, skipping", "status", doc.Chunks[idx].Status)
		return outcome
	}

	chunk := doc.Chunks[idx]
	if chunk.StorageURL == "" {
		o.failChunk(doc, idx, fmt.Errorf("%w: chunk %d", mgerr.ErrChunkNoStorageURL, idx))
		return outcome
	}

	start, end, err := progress.ChunkWindowSeconds(doc, idx)
	if err != nil {
		o.failChunk(doc, idx, err)
		return outcome
	}
	mergedInWindow := progress.MergedScenesInWindow(doc, start, end)

	promptText := prompt.Build(prompt.Input{
		ChunkIndex:        idx,
		TotalChunks:       doc.TotalChunks,
		ChunkStartTC:      chunk.StartTimecode,
		ChunkEndTC:        chunk.EndTimecode,
		MergedScenes:      mergedInWindow,
		CharacterRegistry: frozenRegistry,
	})

	analyzeCtx, analyzeSpan := tracer.Start(ctx, "chunk.analyze")
	raw, err := o.runner.Analyze(analyzeCtx, idx, chunk.StorageURL, promptText)
	analyzeSpan.End()
	if err != nil {
		o.failChunk(doc, idx, err)
		return outcome
	}

	_, reconcileSpan := tracer.Start(ctx, "chunk.reconcile")
	parsed := parser.Parse(raw)
	boundaries := make([]reconcile.Boundary, 0, len(mergedInWindow))
	for _, s := range mergedInWindow {
		boundaries = append(boundaries, reconcile.Boundary{StartTimecode: s.StartTimecode, EndTimecode: s.EndTimecode})
	}
	scenes := reconcile.Reconcile(parsed, boundaries, chunk.StartTimecode, chunk.EndTimecode, doc.VideoFps)
	reconcileSpan.End()

	if len(scenes) == 0 {
		o.failChunk(doc, idx, fmt.Errorf("%w: chunk %d", mgerr.ErrChunkParseEmpty, idx))
		return outcome
	}

	_, persistSpan := tracer.Start(ctx, "chunk.persist")
	existing, err := o.entries.ListBySheetID(ctx, nil, doc.SheetID)
	if err != nil {
		persistSpan.End()
		o.failChunk(doc, idx, fmt.Errorf("list existing entries: %w", err))
		return outcome
	}
	lastPlanNumber := len(existing)
	newEntries := make([]*types.MontageEntry, 0, len(scenes))
	for i, s := range scenes {
		planNumber := lastPlanNumber + i + 1
		newEntries = append(newEntries, &types.MontageEntry{
			SheetID:     doc.SheetID,
			PlanNumber:  planNumber,
			OrderIndex:  planNumber,
			StartTC:     s.Start,
			EndTC:       s.End,
			PlanType:    s.PlanType,
			Description: s.Description,
			Dialogues:   s.Dialogues,
		})
	}
	if _, err := o.entries.CreateBatch(ctx, nil, newEntries); err != nil {
		persistSpan.End()
		o.failChunk(doc, idx, fmt.Errorf("insert entries: %w", err))
		return outcome
	}
	persistSpan.End()

	// Names are extracted here but folded into doc.CharacterRegistry by the
	// caller after the whole batch completes, never from inside this
	// goroutine -- see the frozen-registry comment in runPass.
	outcome.names = registry.ExtractSpeakerNames(raw)

	if err := progress.Transition(doc, idx, types.ChunkStatusProcessing, types.ChunkStatusCompleted); err != nil {
		log.Warn("chunk transition to completed aborted", "error", err)
		return outcome
	}
	outcome.completed = true
	return outcome
}

func (o *Orchestrator) failChunk(doc *types.ProgressDocument, idx int, cause error) {
	o.log.Error("chunk failed", "chunk_index", idx, "error", cause)
	if err := progress.Transition(doc, idx, types.ChunkStatusProcessing, types.ChunkStatusFailed); err != nil {
		doc.Chunks[idx].Status = types.ChunkStatusFailed
	}
}
