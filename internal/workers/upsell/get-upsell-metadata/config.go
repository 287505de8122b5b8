// internal/workers/upsell/get-upsell-metadata/config.go
package getupsellmetadata

import (
	"time"

	"upsell-workers/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(wcfg config.WorkerConfig) *Config {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Config{Timeout: timeout}
}
