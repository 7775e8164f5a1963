// Package app wires the montage pipeline's components into one process, in
// the teacher's internal/app/app.go New()/Start()/Run()/Close() shape:
// cmd/main.go boots one binary that is both the HTTP entry point (§6) and,
// when RUN_WORKER is set, the background resume-sweep driver, exactly as
// the teacher's cmd/main.go toggles RUN_SERVER/RUN_WORKER around one App.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	ginhttp "github.com/reelsheet/montage-core/internal/http"
	"github.com/reelsheet/montage-core/internal/http/handlers"
	"github.com/reelsheet/montage-core/internal/db"
	"github.com/reelsheet/montage-core/internal/montage/analyzer"
	montageconfig "github.com/reelsheet/montage-core/internal/montage/config"
	"github.com/reelsheet/montage-core/internal/montage/orchestrator"
	"github.com/reelsheet/montage-core/internal/montage/progresscache"
	"github.com/reelsheet/montage-core/internal/montage/schedule"
	"github.com/reelsheet/montage-core/internal/montage/shotdetect"
	"github.com/reelsheet/montage-core/internal/montage/shotdetect/thumbnail"
	"github.com/reelsheet/montage-core/internal/montage/splitter"
	"github.com/reelsheet/montage-core/internal/platform/gcp"
	"github.com/reelsheet/montage-core/internal/platform/localmedia"
	"github.com/reelsheet/montage-core/internal/platform/logger"
	"github.com/reelsheet/montage-core/internal/platform/otelinit"
	"github.com/reelsheet/montage-core/internal/repos"
)

type App struct {
	Log    *logger.Logger
	DB     *gorm.DB
	Router *gin.Engine
	Cfg    Config

	orch    *orchestrator.Orchestrator
	videos  repos.VideoRepo
	sweeper *schedule.Sweeper

	sweepStop     func()
	otelShutdown  func(context.Context) error
	cancel        context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)
	mcfg := montageconfig.Load(log)

	otelShutdown := otelinit.Init(context.Background(), log, otelinit.Config{
		ServiceName: cfg.OTelServiceName,
		Environment: cfg.OTelEnvironment,
	})

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	videos := repos.NewVideoRepo(theDB, log)
	sheets := repos.NewSheetRepo(theDB, log)
	entries := repos.NewEntryRepo(theDB, log)

	bucket, err := gcp.NewBucketService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init bucket service: %w", err)
	}
	tools := localmedia.New(log)
	sp := splitter.New(log, bucket, tools, mcfg.SplitterUploadBatchSize, mcfg.SplitterUploadRetries, mcfg.SplitterRetryBaseDelay)

	var primaryDetector shotdetect.Detector
	if gcsDet, detErr := shotdetect.NewGCSDetector(log); detErr != nil {
		log.Warn("primary (GCS) shot detector unavailable, relying on local fallback only", "error", detErr)
	} else {
		primaryDetector = gcsDet
	}
	fallbackDetector := shotdetect.NewLocalDetector(log, tools)

	pool := analyzer.NewPool(
		log,
		buildTransports(mcfg),
		mcfg.AnalyzerPerKeyConcurrency,
		mcfg.AnalyzerAcquireTick,
		mcfg.AnalyzerAcquireCeiling,
		mcfg.AnalyzerErrorDeprioritizeWindow,
	)
	runner := analyzer.NewRunner(
		log,
		pool,
		mcfg.AnalyzerModel,
		mcfg.AnalyzerCreateMaxAttempts,
		mcfg.AnalyzerCreateLinearStep,
		mcfg.AnalyzerPollInterval,
		mcfg.AnalyzerPollMaxAttempts,
	)

	var thumbs *thumbnail.Dumper
	if mcfg.ThumbnailDumpDir != "" {
		thumbs = thumbnail.New(log, tools)
	}
	orch := orchestrator.New(log, mcfg, videos, sheets, entries, sp, primaryDetector, fallbackDetector, runner, thumbs)
	sweeper := schedule.New(log, videos, orch, mcfg.OrchestratorStaleAfter)

	cache := progresscache.New(log)
	router := wireRouter(log, videos, orch, cache, cfg)

	return &App{
		Log:          log,
		DB:           theDB,
		Router:       router,
		Cfg:          cfg,
		orch:         orch,
		videos:       videos,
		sweeper:      sweeper,
		otelShutdown: otelShutdown,
	}, nil
}

func buildTransports(mcfg montageconfig.Config) map[string]analyzer.Transport {
	baseURL := os.Getenv("ANALYZER_BASE_URL")
	transports := make(map[string]analyzer.Transport, len(mcfg.AnalyzerAPITokens))
	for i, token := range mcfg.AnalyzerAPITokens {
		key := fmt.Sprintf("key_%d", i+1)
		transports[key] = analyzer.NewHTTPTransport(baseURL, token, 180*time.Second)
	}
	return transports
}

func wireRouter(log *logger.Logger, videos repos.VideoRepo, orch *orchestrator.Orchestrator, cache progresscache.Cache, cfg Config) *gin.Engine {
	health := handlers.NewHealthHandler()
	video := handlers.NewVideoHandler(log, videos, orch, cache)
	return ginhttp.NewRouter(ginhttp.RouterConfig{
		HealthHandler: health,
		VideoHandler:  video,
		AllowOrigins:  cfg.CORSAllowOrigins,
	})
}

// Start launches the background resume-sweep (§5 "Resume is possible")
// when runWorker is set, mirroring the teacher's RUN_WORKER toggle.
func (a *App) Start(runServer, runWorker bool) {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	if runWorker && a.sweeper != nil {
		stop, err := a.sweeper.Start(ctx, a.Cfg.ScheduleSweepSpec)
		if err != nil {
			a.Log.Warn("resume sweep failed to start", "error", err)
		} else {
			a.sweepStop = stop
		}
	}
	_ = runServer
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.sweepStop != nil {
		a.sweepStop()
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.otelShutdown(ctx)
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
