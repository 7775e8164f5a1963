// Package splitter implements C5: downloading a source video, cutting it
// into the chunk windows the planner (C2) produced, and uploading each
// chunk back to object storage. Grounded on the teacher's
// internal/platform/gcp/bucket.go (BucketService upload/download,
// AlreadyExists-as-success handling) for the storage half, and on the
// semaphore-gated sync.WaitGroup fan-out in pack file
// other_examples/2303ebab_windalfin-ayo-mwr__chunks-manager.go.go for the
// batches-of-two upload concurrency, generalized here to
// golang.org/x/sync/semaphore.
package splitter

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/reelsheet/montage-core/internal/montage/chunkplan"
	"github.com/reelsheet/montage-core/internal/montage/mgerr"
	"github.com/reelsheet/montage-core/internal/pkg/dbctx"
	"github.com/reelsheet/montage-core/internal/pkg/httpx"
	"github.com/reelsheet/montage-core/internal/platform/ctxutil"
	"github.com/reelsheet/montage-core/internal/platform/gcp"
	"github.com/reelsheet/montage-core/internal/platform/localmedia"
	"github.com/reelsheet/montage-core/internal/platform/logger"
)

// Chunk is one cut-and-uploaded window, ready to become a types.ChunkState.
type Chunk struct {
	Index      int
	Window     chunkplan.Window
	StorageURL string
	StorageKey string
}

type Splitter interface {
	// DownloadSource pulls the source video from the chunks bucket's source
	// category down to a scratch path for ffmpeg to operate on.
	DownloadSource(ctx context.Context, userID string, sourceKey string) (localPath string, cleanup func(), err error)

	// SplitAndUpload cuts every window out of localPath and uploads each
	// resulting chunk, in batches of Config.SplitterUploadBatchSize
	// concurrent uploads, keyed {userId}/chunks/{chunkIndex}_{nonce}.mp4.
	SplitAndUpload(ctx context.Context, userID string, localPath string, windows []chunkplan.Window) ([]Chunk, error)
}

type splitter struct {
	log          *logger.Logger
	bucket       gcp.BucketService
	tools        localmedia.Tools
	batchSize    int
	retries      int
	retryBase    time.Duration
	scratchRoot  string
}

func New(log *logger.Logger, bucket gcp.BucketService, tools localmedia.Tools, batchSize, retries int, retryBase time.Duration) Splitter {
	if batchSize <= 0 {
		batchSize = 2
	}
	if retries <= 0 {
		retries = 3
	}
	if retryBase <= 0 {
		retryBase = 2 * time.Second
	}
	return &splitter{
		log:         log.With("component", "splitter"),
		bucket:      bucket,
		tools:       tools,
		batchSize:   batchSize,
		retries:     retries,
		retryBase:   retryBase,
		scratchRoot: "/tmp/montage-core/splitter",
	}
}

func (s *splitter) DownloadSource(ctx context.Context, userID string, sourceKey string) (string, func(), error) {
	ctx = ctxutil.Default(ctx)
	rc, err := s.bucket.DownloadFile(ctx, gcp.BucketCategorySource, sourceKey)
	if err != nil {
		return "", func() {}, mgerr.PerVideoTerminal(fmt.Errorf("download source %s: %w", sourceKey, err))
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Join(s.scratchRoot, userID), 0o755); err != nil {
		return "", func() {}, fmt.Errorf("mkdir scratch: %w", err)
	}
	localPath := filepath.Join(s.scratchRoot, userID, "source.mp4")
	f, err := os.Create(localPath)
	if err != nil {
		return "", func() {}, fmt.Errorf("create scratch file: %w", err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		_ = f.Close()
		return "", func() {}, fmt.Errorf("copy source to scratch: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", func() {}, fmt.Errorf("close scratch file: %w", err)
	}
	cleanup := func() { _ = os.Remove(localPath) }
	return localPath, cleanup, nil
}

func (s *splitter) SplitAndUpload(ctx context.Context, userID string, localPath string, windows []chunkplan.Window) ([]Chunk, error) {
	ctx = ctxutil.Default(ctx)
	sem := semaphore.NewWeighted(int64(s.batchSize))
	results := make([]Chunk, len(windows))
	errs := make([]error, len(windows))

	done := make(chan struct{}, len(windows))
	for i, w := range windows {
		i, w := i, w
		if err := sem.Acquire(ctx, 1); err != nil {
			errs[i] = fmt.Errorf("acquire upload slot: %w", err)
			done <- struct{}{}
			continue
		}
		go func() {
			defer sem.Release(1)
			defer func() { done <- struct{}{} }()
			c, err := s.cutAndUploadOne(ctx, userID, localPath, i, w)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = c
		}()
	}
	for range windows {
		<-done
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (s *splitter) cutAndUploadOne(ctx context.Context, userID string, localPath string, index int, w chunkplan.Window) (Chunk, error) {
	outPath := filepath.Join(s.scratchRoot, userID, fmt.Sprintf("chunk_%d.mp4", index))
	if err := s.tools.CutChunk(ctx, localPath, w.StartSeconds, w.EndSeconds, outPath); err != nil {
		return Chunk{}, mgerr.New(mgerr.KindPerChunkTerminal, index, fmt.Errorf("cut chunk %d: %w", index, err))
	}
	defer os.Remove(outPath)

	key := fmt.Sprintf("%s/chunks/%d_%s.mp4", userID, index, nonce())
	if err := s.uploadWithRetry(ctx, outPath, key); err != nil {
		return Chunk{}, mgerr.New(mgerr.KindTransient, index, fmt.Errorf("upload chunk %d: %w", index, err))
	}
	url := s.bucket.GetPublicURL(gcp.BucketCategoryChunks, key)
	return Chunk{Index: index, Window: w, StorageURL: url, StorageKey: key}, nil
}

func (s *splitter) uploadWithRetry(ctx context.Context, localPath, key string) error {
	delay := s.retryBase
	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		f, err := os.Open(localPath)
		if err != nil {
			return fmt.Errorf("open chunk file: %w", err)
		}
		err = s.bucket.UploadFile(dbctx.Context{Ctx: ctx}, gcp.BucketCategoryChunks, key, f)
		_ = f.Close()
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == s.retries-1 {
			break
		}
		time.Sleep(httpx.JitterSleep(delay))
		delay *= 2
	}
	return lastErr
}

var nonceCounter uint64

// nonce produces a short per-process-unique suffix for chunk keys. A
// monotonic counter is sufficient since keys are already namespaced by
// userID/chunkIndex; it only needs to disambiguate re-uploads of the same
// chunk index within one process lifetime.
func nonce() string {
	n := atomic.AddUint64(&nonceCounter, 1)
	return fmt.Sprintf("%08x", n)
}
