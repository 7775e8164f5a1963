package orchestrator

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// runRegistry tracks the cancel func for each video's in-flight Init/Drive
// call, so a DELETE /videos/:id/run can stop one video's run without
// touching any other video's -- no teacher analog, a minimal registry rather
// than a job-cancellation subsystem.
type runRegistry struct {
	mu    sync.Mutex
	funcs map[uuid.UUID]context.CancelFunc
}

func newRunRegistry() *runRegistry {
	return &runRegistry{funcs: make(map[uuid.UUID]context.CancelFunc)}
}

// begin derives a cancelable context for videoID's run and registers it. The
// returned done func deregisters the run; callers must defer it.
func (r *runRegistry) begin(ctx context.Context, videoID uuid.UUID) (context.Context, func()) {
	runCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.funcs[videoID] = cancel
	r.mu.Unlock()
	return runCtx, func() {
		r.mu.Lock()
		delete(r.funcs, videoID)
		r.mu.Unlock()
		cancel()
	}
}

// cancel stops videoID's in-flight run, if one is registered. Reports
// whether a run was found.
func (r *runRegistry) cancel(videoID uuid.UUID) bool {
	r.mu.Lock()
	cancel, ok := r.funcs[videoID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}
