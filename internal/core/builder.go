package core

import (
	"os"
	"time"

	"vsmsock/config"
	"vsmsock/internal/metrics"
	"vsmsock/internal/retry"
	"vsmsock/util"
)

// Build validates cfg and constructs the bridge it describes.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	backoff := retry.ForAccept(cfg)
	backoff.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.Warn("accept attempt %d failed: %v (retrying in %s)",
			attempt, err, wait.Round(time.Millisecond))
	}

	m := &BridgeMode{
		Port:       cfg.Port,
		BufferSize: cfg.BufferSize,
		Backoff:    backoff,
		Metrics:    metrics.New(),
		Logger:     logger,
	}
	if cfg.UsesStdin() {
		m.Prompt = util.IsTerminal(os.Stdin)
	} else {
		m.InputPath = cfg.Input
	}
	return m, nil
}
