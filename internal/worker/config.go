package worker

import (
	"time"

	"contentpipeline/internal/config"
)

// StageConfig is the common process-level configuration every stage binary
// loads before wiring its own domain-specific pieces: which queue to
// consume, how long a lease on a message lasts, how many messages to pull
// per poll, and where to expose health/metrics.
type StageConfig struct {
	QueueName        string
	ConsumerGroup    string
	ConsumerName     string
	BatchSize        int64
	VisibilityWindow time.Duration
	PollInterval     time.Duration
	HealthAddr       string
}

// LoadStageConfig reads STAGE_* environment variables with a per-stage
// fallback default; an invalid or missing value never aborts startup.
func LoadStageConfig(stagePrefix, queueName, defaultConsumerName string) StageConfig {
	return StageConfig{
		QueueName:        queueName,
		ConsumerGroup:    config.String(stagePrefix+"_CONSUMER_GROUP", stagePrefix+"-workers"),
		ConsumerName:     config.String(stagePrefix+"_CONSUMER_NAME", defaultConsumerName),
		BatchSize:        int64(config.IntRange(stagePrefix+"_BATCH_SIZE", 10, 1, 100)),
		VisibilityWindow: config.DurationRange(stagePrefix+"_VISIBILITY_WINDOW", 5*time.Minute, 30*time.Second, time.Hour),
		PollInterval:     config.DurationRange(stagePrefix+"_POLL_INTERVAL", 2*time.Second, 100*time.Millisecond, time.Minute),
		HealthAddr:       config.String(stagePrefix+"_HEALTH_ADDR", ":8080"),
	}
}
