// Package logger configures slog for logicstates processes and carries
// per-machine logging context (subsystem, coplayer, machine, game cycle)
// through context.Context.
package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

var subsystem atomic.Value //nolint:gochecknoglobals

// configMutex serializes ConfigureLoggingWithOptions, which replaces process-wide defaults.
var configMutex sync.Mutex //nolint:gochecknoglobals

type contextKey string

// Options is used to configure logging.
type Options struct {
	Subsystem string
	JSON      bool
	MinLevel  slog.Level
	Output    io.Writer

	// Extra receives every record in addition to the console handler,
	// typically the OpenTelemetry log bridge.
	Extra slog.Handler
}

// ConfigureLoggingWithOptions installs the default slog logger and redirects
// the standard log package into it.
func ConfigureLoggingWithOptions(opts Options) *slog.Logger {
	configMutex.Lock()
	defer configMutex.Unlock()

	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.MinLevel}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(opts.Output, handlerOpts)
	} else {
		handler = slog.NewTextHandler(opts.Output, handlerOpts)
	}

	if opts.Extra != nil {
		handler = &teeHandler{handlers: []slog.Handler{handler, opts.Extra}}
	}

	logger := slog.New(&slogErrorLogger{inner: handler})

	slog.SetDefault(logger)

	def := log.Default()
	*def = *slog.NewLogLogger(handler, opts.MinLevel)

	subsystem.Store(opts.Subsystem)

	return logger
}

// ParseLevel maps a configured level name (debug, info, warn, error) to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level

	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", name, err)
	}

	return level, nil
}

// WithLogger pins a specific logger to the context. Get returns it, decorated
// with the context values, instead of the process default.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, contextKey("logger"), logger)
}

// WithMuted suppresses all logging done through ctx. The statemachine engine
// mutes repeated CommittedWait polls this way.
func WithMuted(ctx context.Context, muted bool) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, contextKey("mute"), muted)
}

func isMuted(ctx context.Context) bool {
	muted, ok := ctx.Value(contextKey("mute")).(bool)

	return ok && muted
}

// WithSubsystem overrides the subsystem set by ConfigureLoggingWithOptions.
func WithSubsystem(ctx context.Context, subsystem string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, contextKey("subsystem"), subsystem)
}

// GetSubsystem returns the subsystem from the context, or the configured default.
func GetSubsystem(ctx context.Context) string {
	if ctx != nil {
		if sub, ok := ctx.Value(contextKey("subsystem")).(string); ok {
			return sub
		}
	}

	if sub, ok := subsystem.Load().(string); ok {
		return sub
	}

	return ""
}

// WithCoplayer tags all logs made through ctx with a coplayer id.
func WithCoplayer(ctx context.Context, coplayer int) context.Context {
	return With(ctx, "coplayer", coplayer)
}

// WithMachine tags all logs made through ctx with a state machine name.
func WithMachine(ctx context.Context, machine string) context.Context {
	return With(ctx, "machine", machine)
}

// WithCycle tags all logs made through ctx with a game cycle id.
func WithCycle(ctx context.Context, cycleID string) context.Context {
	return With(ctx, "cycle", cycleID)
}

var nullLogger = slog.New(slog.DiscardHandler) //nolint:gochecknoglobals

func getRealContext(ctx ...context.Context) context.Context {
	for _, c := range ctx {
		if c != nil {
			return c
		}
	}

	return context.Background()
}

// Get returns a logger carrying the subsystem and every value attached with With.
//
//nolint:contextcheck
func Get(ctx ...context.Context) *slog.Logger {
	realCtx := getRealContext(ctx...)

	if isMuted(realCtx) {
		return nullLogger
	}

	logger, ok := realCtx.Value(contextKey("logger")).(*slog.Logger)
	if !ok || logger == nil {
		logger = slog.Default()
	}

	if sub := GetSubsystem(realCtx); sub != "" {
		logger = logger.With("subsystem", sub)
	}

	if vals := getValues(realCtx); vals != nil {
		logger = logger.With(vals...)
	}

	return logger
}

// With returns a new context whose logger includes the given key-value pairs.
func With(ctx context.Context, values ...any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	if len(values) == 0 {
		return ctx
	}

	prev := getValues(ctx)
	vals := make([]any, 0, len(prev)+len(values))
	vals = append(vals, prev...)
	vals = append(vals, values...)

	return context.WithValue(ctx, contextKey("loggerValues"), vals)
}

func getValues(ctx context.Context) []any {
	vals, _ := ctx.Value(contextKey("loggerValues")).([]any)

	return vals
}
