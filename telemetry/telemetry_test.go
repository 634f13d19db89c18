package telemetry

import (
	"testing"

	"github.com/amp-labs/logicstates/logger"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeDisabled(t *testing.T) {
	t.Parallel()

	ctx := logger.WithLogger(t.Context(), slogt.New(t))

	tests := []struct {
		name   string
		config Config
	}{
		{name: "disabled", config: Config{Enabled: false, Endpoint: "http://collector:4318"}},
		{name: "no endpoint", config: Config{Enabled: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			providers, err := Initialize(ctx, tt.config)
			require.NoError(t, err)
			require.NotNil(t, providers)

			assert.Nil(t, providers.LogHandler("logicstates"))
			require.NoError(t, providers.Shutdown(ctx))
		})
	}
}

func TestNilProviders(t *testing.T) {
	t.Parallel()

	var providers *Providers

	assert.Nil(t, providers.LogHandler("logicstates"))
	require.NoError(t, providers.Shutdown(t.Context()))
}

//nolint:paralleltest // installs the global tracer provider
func TestInitializeEnabled(t *testing.T) {
	ctx := logger.WithLogger(t.Context(), slogt.New(t))

	providers, err := Initialize(ctx, Config{
		Enabled:     true,
		ExportLogs:  true,
		Endpoint:    "http://127.0.0.1:4318",
		Environment: "test",
	})
	require.NoError(t, err)

	assert.NotNil(t, providers.tracer)
	assert.NotNil(t, providers.LogHandler("logicstates"))

	// exporters are lazy; nothing was sent so shutdown does not dial
	require.NoError(t, providers.Shutdown(ctx))
}
