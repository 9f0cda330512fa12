package routeutterance

import (
	"time"

	"viora-nlu/internal/common/config"
)

const defaultTimeout = 30 * time.Second

type Config struct {
	// Timeout bounds one job: model call, routing and dispatch.
	Timeout time.Duration
}

func LoadConfig(appCfg *config.Config) *Config {
	cfg := &Config{Timeout: defaultTimeout}
	if appCfg == nil {
		return cfg
	}
	if wc := config.GetWorkerConfig(appCfg, TaskType); wc.Timeout > 0 {
		cfg.Timeout = config.GetDuration(wc.Timeout)
	}
	return cfg
}
