// Package config loads the montage pipeline's tunables from the
// environment, in the teacher's LoadConfig(log) Config idiom
// (internal/app/config.go) generalized from three JWT knobs to the full set
// of chunk/detector/credits/finalizer/retry/analyzer-pool constants spec.md
// names. Every value below has a default equal to spec.md's named constant;
// overriding any of them resolves Open Question 1 (credits thresholds are
// configuration, not constants) in favor of configuration.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/reelsheet/montage-core/internal/platform/logger"
)

type Config struct {
	// Chunk planner (C2).
	ChunkLengthSeconds  float64
	ChunkOverlapSeconds float64
	ChunkAbsorbSeconds  float64 // windows shorter than this are folded into the previous chunk

	// Shot detector (C3).
	AdaptiveThreshold  float64
	MinSceneDuration   float64
	MaxScenes          int
	CreditsMergeDiscard float64 // gaps below this are discarded outright
	CreditsMergeKeep    float64 // gaps above this are never merged

	// Credits merger (C4).
	OpeningWindowSeconds float64
	ClosingWindowSeconds float64

	// Splitter (C5).
	SplitterUploadBatchSize int
	SplitterUploadRetries   int
	SplitterRetryBaseDelay  time.Duration

	// Analyzer pool (C6).
	AnalyzerPerKeyConcurrency int
	AnalyzerAcquireTick       time.Duration
	AnalyzerAcquireCeiling    time.Duration
	AnalyzerErrorDeprioritizeWindow time.Duration
	AnalyzerCreateMaxAttempts int
	AnalyzerCreateLinearStep  time.Duration
	AnalyzerPollInterval      time.Duration
	AnalyzerPollMaxAttempts   int
	AnalyzerModel             string
	AnalyzerAPITokens         []string

	// Orchestrator (C11).
	OrchestratorBatchSize        int
	OrchestratorMaxChunkFailures int
	OrchestratorStaleAfter       time.Duration

	// Finalizer (C12).
	FinalizeMinCompletionRatio float64

	// Resume sweep (§6.1).
	ScheduleSweepInterval time.Duration

	// Shot detector debug dump: when set, the orchestrator writes one
	// downscaled thumbnail per detected cut into this directory for local
	// inspection. Empty disables the dump entirely.
	ThumbnailDumpDir string
}

func Load(log *logger.Logger) Config {
	return Config{
		ChunkLengthSeconds:  getEnvFloat("CHUNK_LENGTH_SECONDS", 180, log),
		ChunkOverlapSeconds: getEnvFloat("CHUNK_OVERLAP_SECONDS", 0, log),
		ChunkAbsorbSeconds:  getEnvFloat("CHUNK_ABSORB_SECONDS", 60, log),

		AdaptiveThreshold:   getEnvFloat("DETECTOR_ADAPTIVE_THRESHOLD", 1.8, log),
		MinSceneDuration:    getEnvFloat("DETECTOR_MIN_SCENE_DURATION", 0.25, log),
		MaxScenes:           getEnvInt("DETECTOR_MAX_SCENES", 5000, log),
		CreditsMergeDiscard: getEnvFloat("CREDITS_MERGE_DISCARD_SECONDS", 0.3, log),
		CreditsMergeKeep:    getEnvFloat("CREDITS_MERGE_KEEP_SECONDS", 0.8, log),

		OpeningWindowSeconds: getEnvFloat("CREDITS_OPENING_WINDOW_SECONDS", 120, log),
		ClosingWindowSeconds: getEnvFloat("CREDITS_CLOSING_WINDOW_SECONDS", 180, log),

		SplitterUploadBatchSize: getEnvInt("SPLITTER_UPLOAD_BATCH_SIZE", 2, log),
		SplitterUploadRetries:   getEnvInt("SPLITTER_UPLOAD_RETRIES", 3, log),
		SplitterRetryBaseDelay:  time.Duration(getEnvInt("SPLITTER_RETRY_BASE_DELAY_SECONDS", 2, log)) * time.Second,

		AnalyzerPerKeyConcurrency:       getEnvInt("ANALYZER_PER_KEY_CONCURRENCY", 1, log),
		AnalyzerAcquireTick:             time.Duration(getEnvInt("ANALYZER_ACQUIRE_TICK_SECONDS", 1, log)) * time.Second,
		AnalyzerAcquireCeiling:          time.Duration(getEnvInt("ANALYZER_ACQUIRE_CEILING_MINUTES", 5, log)) * time.Minute,
		AnalyzerErrorDeprioritizeWindow: time.Duration(getEnvInt("ANALYZER_ERROR_DEPRIORITIZE_SECONDS", 30, log)) * time.Second,
		AnalyzerCreateMaxAttempts:       getEnvInt("ANALYZER_CREATE_MAX_ATTEMPTS", 3, log),
		AnalyzerCreateLinearStep:        time.Duration(getEnvInt("ANALYZER_CREATE_LINEAR_STEP_SECONDS", 2, log)) * time.Second,
		AnalyzerPollInterval:            time.Duration(getEnvInt("ANALYZER_POLL_INTERVAL_SECONDS", 5, log)) * time.Second,
		AnalyzerPollMaxAttempts:         getEnvInt("ANALYZER_POLL_MAX_ATTEMPTS", 60, log),
		AnalyzerModel:                   getEnvString("ANALYZER_MODEL", "", log),
		AnalyzerAPITokens:               loadAnalyzerTokens(log),

		OrchestratorBatchSize:        getEnvInt("ORCHESTRATOR_BATCH_SIZE", 1, log),
		OrchestratorMaxChunkFailures: getEnvInt("ORCHESTRATOR_MAX_CHUNK_FAILURES", 5, log),
		OrchestratorStaleAfter:       time.Duration(getEnvInt("ORCHESTRATOR_STALE_AFTER_MINUTES", 10, log)) * time.Minute,

		FinalizeMinCompletionRatio: getEnvFloat("FINALIZE_MIN_COMPLETION_RATIO", 0.5, log),

		ScheduleSweepInterval: time.Duration(getEnvInt("SCHEDULE_SWEEP_INTERVAL_MINUTES", 5, log)) * time.Minute,

		ThumbnailDumpDir: getEnvString("THUMBNAIL_DUMP_DIR", "", log),
	}
}

// loadAnalyzerTokens scans ANALYZER_API_TOKEN_1..N, falling back to the
// unnumbered ANALYZER_API_TOKEN variable, per spec.md §6 "Credentials".
func loadAnalyzerTokens(log *logger.Logger) []string {
	var tokens []string
	for i := 1; ; i++ {
		key := "ANALYZER_API_TOKEN_" + strconv.Itoa(i)
		val := strings.TrimSpace(os.Getenv(key))
		if val == "" {
			break
		}
		tokens = append(tokens, val)
	}
	if len(tokens) == 0 {
		if single := strings.TrimSpace(os.Getenv("ANALYZER_API_TOKEN")); single != "" {
			tokens = append(tokens, single)
		}
	}
	if log != nil {
		log.Info("loaded analyzer api tokens", "count", len(tokens))
	}
	return tokens
}

func getEnvString(key, fallback string, log *logger.Logger) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int, log *logger.Logger) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		if log != nil {
			log.Warn("invalid int env var, using default", "key", key, "value", v, "default", fallback)
		}
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64, log *logger.Logger) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		if log != nil {
			log.Warn("invalid float env var, using default", "key", key, "value", v, "default", fallback)
		}
		return fallback
	}
	return f
}
