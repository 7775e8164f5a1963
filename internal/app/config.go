package app

import (
	"os"
	"strings"

	"github.com/reelsheet/montage-core/internal/platform/logger"
)

// Config carries the process-level knobs cmd/main.go needs before the
// montage pipeline's own internal/montage/config.Config takes over --
// network/server concerns, in the teacher's app.Config/LoadConfig idiom.
type Config struct {
	Port                string
	CORSAllowOrigins    []string
	ScheduleSweepSpec   string
	OTelServiceName     string
	OTelEnvironment     string
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		Port:              getEnv("PORT", "8080", log),
		CORSAllowOrigins:  splitCSV(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000,http://localhost:5173", log)),
		ScheduleSweepSpec: getEnv("SCHEDULE_SWEEP_CRON", "@every 5m", log),
		OTelServiceName:   getEnv("OTEL_SERVICE_NAME", "montage-core", log),
		OTelEnvironment:   getEnv("ENVIRONMENT", "development", log),
	}
}

func getEnv(key, fallback string, _ *logger.Logger) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
