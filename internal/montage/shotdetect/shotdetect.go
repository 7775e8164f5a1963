// Package shotdetect implements the shot-boundary detector (§4.3): a
// GCS-backed Video Intelligence engine as the preferred detector, with a
// local ffmpeg scene-score fallback, plus the smart-merge micro-artifact
// cleanup pass. Grounded on the teacher's
// internal/platform/gcp/video.go (AnnotateVideoGCS, retryAnnotate's
// gRPC-status retry classification) and
// internal/platform/localmedia/tools.go (ffmpeg invocation idiom), trimmed
// from a multi-feature (speech/text/shot) annotator to shot-change-only.
package shotdetect

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	videointelligence "cloud.google.com/go/videointelligence/apiv1"
	vipb "cloud.google.com/go/videointelligence/apiv1/videointelligencepb"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/reelsheet/montage-core/internal/montage/mgerr"
	"github.com/reelsheet/montage-core/internal/platform/ctxutil"
	"github.com/reelsheet/montage-core/internal/platform/gcp"
	"github.com/reelsheet/montage-core/internal/platform/logger"
)

// Cut is one raw shot-boundary cut point.
type Cut struct {
	TimestampSeconds float64
}

// Params mirrors spec.md §4.3's detection parameters.
type Params struct {
	AdaptiveThreshold float64
	MinSceneDuration  float64
	MaxScenes         int
}

// Detector is satisfied by both the GCS-backed primary engine and the local
// ffmpeg fallback, per spec.md §8's "production adapters and test fakes
// both satisfy the same interface" design note.
type Detector interface {
	Detect(ctx context.Context, videoGCSURI string, params Params) ([]Cut, error)
}

type gcsDetector struct {
	log        *logger.Logger
	client     *videointelligence.Client
	maxRetries int
}

// NewGCSDetector builds the preferred detector, backed by GCP Video
// Intelligence's SHOT_CHANGE_DETECTION feature.
func NewGCSDetector(log *logger.Logger) (Detector, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	slog := log.With("component", "shotdetect.gcsDetector")
	ctx := context.Background()
	opts := gcp.ClientOptionsFromEnv()
	c, err := videointelligence.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("videointelligence client: %w", err)
	}
	return &gcsDetector{log: slog, client: c, maxRetries: 4}, nil
}

func (d *gcsDetector) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}

func (d *gcsDetector) Detect(ctx context.Context, gcsURI string, params Params) ([]Cut, error) {
	ctx = ctxutil.Default(ctx)
	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	if !strings.HasPrefix(gcsURI, "gs://") {
		return nil, mgerr.Validation(fmt.Errorf("gcsURI must be gs://... got %q", gcsURI))
	}

	req := &vipb.AnnotateVideoRequest{
		InputUri: gcsURI,
		Features: []vipb.Feature{vipb.Feature_SHOT_CHANGE_DETECTION},
	}

	resp, err := d.retryAnnotate(ctx, func() (*vipb.AnnotateVideoResponse, error) {
		op, err := d.client.AnnotateVideo(ctx, req)
		if err != nil {
			return nil, err
		}
		return op.Wait(ctx)
	})
	if err != nil {
		return nil, mgerr.PerVideoTerminal(fmt.Errorf("%w: %v", mgerr.ErrDetectorUnavailable, err))
	}
	if resp == nil || len(resp.AnnotationResults) == 0 || resp.AnnotationResults[0] == nil {
		return nil, nil
	}
	cuts := parseShots(resp.AnnotationResults[0].ShotAnnotations)
	return applyMaxScenes(cuts, params.MaxScenes), nil
}

func parseShots(shots []*vipb.VideoSegment) []Cut {
	var out []Cut
	for _, sh := range shots {
		if sh == nil {
			continue
		}
		out = append(out, Cut{TimestampSeconds: durToSec(sh.StartTimeOffset)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TimestampSeconds < out[j].TimestampSeconds })
	return out
}

func durToSec(d *durationpb.Duration) float64 {
	if d == nil {
		return 0
	}
	return float64(d.Seconds) + float64(d.Nanos)/1e9
}

func applyMaxScenes(cuts []Cut, maxScenes int) []Cut {
	if maxScenes > 0 && len(cuts) > maxScenes {
		return cuts[:maxScenes]
	}
	return cuts
}

// retryAnnotate retries on Unavailable/ResourceExhausted/DeadlineExceeded,
// doubling a 750ms backoff up to a 10s cap -- identical shape to the
// teacher's retryAnnotate in gcp/video.go.
func (d *gcsDetector) retryAnnotate(ctx context.Context, fn func() (*vipb.AnnotateVideoResponse, error)) (*vipb.AnnotateVideoResponse, error) {
	backoff := 750 * time.Millisecond
	var last error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		last = err
		code := status.Code(err)
		if code != codes.Unavailable && code != codes.ResourceExhausted && code != codes.DeadlineExceeded {
			return nil, err
		}
		if attempt == d.maxRetries {
			break
		}
		time.Sleep(backoff)
		backoff *= 2
		if backoff > 10*time.Second {
			backoff = 10 * time.Second
		}
	}
	return nil, last
}

// SmartMerge removes micro-artifact cuts whose implied shot duration is
// under 0.3s (flash/noise) and never merges shots over 0.8s, per §4.3.
// Also enforces the boundary-at-0 / boundary-at-D synthesis rule.
func SmartMerge(cuts []Cut, duration float64) []Cut {
	sorted := make([]Cut, len(cuts))
	copy(sorted, cuts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TimestampSeconds < sorted[j].TimestampSeconds })

	var merged []Cut
	for i, c := range sorted {
		if i == 0 {
			merged = append(merged, c)
			continue
		}
		implied := c.TimestampSeconds - merged[len(merged)-1].TimestampSeconds
		if implied < 0.3 {
			continue // flash/noise, discard
		}
		// shots > 0.8s are never merged away; nothing further to do
		merged = append(merged, c)
	}

	if len(merged) == 0 || merged[0].TimestampSeconds > 0.5 {
		merged = append([]Cut{{TimestampSeconds: 0}}, merged...)
	}
	if len(merged) == 0 || duration-merged[len(merged)-1].TimestampSeconds > 2.0 {
		merged = append(merged, Cut{TimestampSeconds: duration})
	}
	return merged
}

// CutsToFloat64 extracts the raw timestamp list credits.Merge expects.
func CutsToFloat64(cuts []Cut) []float64 {
	out := make([]float64, len(cuts))
	for i, c := range cuts {
		out[i] = c.TimestampSeconds
	}
	return out
}
