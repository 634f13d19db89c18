package cabinet

import (
	"context"
	"fmt"

	"github.com/amp-labs/logicstates/config"
	"github.com/amp-labs/logicstates/logger"
	"github.com/amp-labs/logicstates/telemetry"
)

// Observe configures the process logger and OpenTelemetry export from cfg.
// The returned function flushes and stops the exporters.
func Observe(ctx context.Context, cfg config.Config, subsystem string) (func(context.Context) error, error) {
	providers, err := telemetry.Initialize(ctx, cfg.TelemetryOptions())
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry: %w", err)
	}

	logger.ConfigureLoggingWithOptions(cfg.LoggerOptions(subsystem, providers.LogHandler(subsystem)))

	return providers.Shutdown, nil
}
