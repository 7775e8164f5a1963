package shotdetect

import (
	"context"
	"fmt"

	"github.com/reelsheet/montage-core/internal/platform/ctxutil"
	"github.com/reelsheet/montage-core/internal/platform/localmedia"
	"github.com/reelsheet/montage-core/internal/platform/logger"
)

// localDetector is the fallback engine used when the GCS-backed detector is
// unavailable or rate-limited (§4.3 "falls back to local scene-change
// scanning"). It shells out through localmedia.Tools, adapted from the
// teacher's ExtractKeyframes ffmpeg invocation idiom, generalized from frame
// extraction to cut-timestamp scoring.
type localDetector struct {
	log   *logger.Logger
	tools localmedia.Tools
}

// NewLocalDetector builds the ffmpeg-backed fallback detector. It takes a
// local filesystem path rather than a gs:// URI -- the orchestrator is
// responsible for staging the source file to scratch disk before calling
// this detector (see splitter's download step).
func NewLocalDetector(log *logger.Logger, tools localmedia.Tools) Detector {
	return &localDetector{log: log.With("component", "shotdetect.localDetector"), tools: tools}
}

func (d *localDetector) Detect(ctx context.Context, videoPath string, params Params) ([]Cut, error) {
	ctx = ctxutil.Default(ctx)
	if err := d.tools.AssertReady(ctx); err != nil {
		return nil, fmt.Errorf("local detector not ready: %w", err)
	}

	threshold := params.AdaptiveThreshold
	if threshold <= 0 {
		threshold = 1.8
	}
	// ffmpeg's "scene" score is normalized to [0,1], unlike GCP's
	// shot-boundary confidence scale; divide the configured adaptive
	// threshold down into that range so the same config knob drives both
	// engines.
	sceneScoreThreshold := threshold / 10
	if sceneScoreThreshold > 0.95 {
		sceneScoreThreshold = 0.95
	}

	timestamps, err := d.tools.ScanSceneScores(ctx, videoPath, sceneScoreThreshold)
	if err != nil {
		d.log.Warn("local scene scan failed", "error", err)
		return nil, fmt.Errorf("local scene scan: %w", err)
	}

	cuts := dedupeByMinSceneDuration(timestamps, params.MinSceneDuration)
	return applyMaxScenes(cuts, params.MaxScenes), nil
}

func dedupeByMinSceneDuration(timestamps []float64, minSceneDuration float64) []Cut {
	if minSceneDuration <= 0 {
		minSceneDuration = 0.25
	}
	var out []Cut
	var last float64
	for i, ts := range timestamps {
		if i == 0 || ts-last >= minSceneDuration {
			out = append(out, Cut{TimestampSeconds: ts})
			last = ts
		}
	}
	return out
}
