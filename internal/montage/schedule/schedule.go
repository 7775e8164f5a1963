// Package schedule runs the resume-sweep: a periodic pass over videos
// stuck in "processing" past a staleness window, re-driving each one
// through the orchestrator so a crashed or killed process's work resumes
// without an operator having to notice and re-POST it by hand. Grounded on
// the teacher's worker.go runLoop idea of a ticking background goroutine
// that claims and dispatches work, but built on github.com/robfig/cron
// instead of a bare time.Ticker since the cadence here is a periodic
// schedule (every N minutes) rather than a tight poll loop.
package schedule

import (
	"context"
	"time"

	"github.com/robfig/cron"

	"github.com/reelsheet/montage-core/internal/montage/orchestrator"
	"github.com/reelsheet/montage-core/internal/platform/logger"
	"github.com/reelsheet/montage-core/internal/repos"
)

// Sweeper periodically re-drives videos whose progress document has not
// advanced within a staleness window, per spec.md §5 "Resume is possible
// because every chunk's storage URL and status are durable."
type Sweeper struct {
	log        *logger.Logger
	videos     repos.VideoRepo
	orch       *orchestrator.Orchestrator
	staleAfter time.Duration
	cron       *cron.Cron
}

func New(log *logger.Logger, videos repos.VideoRepo, orch *orchestrator.Orchestrator, staleAfter time.Duration) *Sweeper {
	return &Sweeper{
		log:        log.With("component", "schedule.Sweeper"),
		videos:     videos,
		orch:       orch,
		staleAfter: staleAfter,
		cron:       cron.New(),
	}
}

// Start schedules the sweep at the given cron spec (e.g. "@every 5m") and
// begins running it in the background. Stop via the returned function.
func (s *Sweeper) Start(ctx context.Context, spec string) (func(), error) {
	if err := s.cron.AddFunc(spec, func() { s.sweepOnce(ctx) }); err != nil {
		return nil, err
	}
	s.cron.Start()
	return s.cron.Stop, nil
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	stale, err := s.videos.ListStaleProcessing(ctx, nil, s.staleAfter)
	if err != nil {
		s.log.Warn("resume sweep: list stale processing videos failed", "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}
	s.log.Info("resume sweep: re-driving stale videos", "count", len(stale))
	for _, v := range stale {
		if _, err := s.orch.Drive(ctx, v.ID); err != nil {
			s.log.Warn("resume sweep: drive failed", "video_id", v.ID.String(), "error", err)
		}
	}
}
