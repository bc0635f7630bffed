package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup installs the global logger. format is "console" or "json".
func Setup(level, format string) {
	SetupWriter(os.Stderr, level, format)
}

func SetupWriter(w io.Writer, level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	out := w
	if strings.ToLower(format) != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	zerolog.TimeFieldFormat = time.RFC3339
}

// Component returns a child of the global logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

type cycleKey struct{}

// WithCycle tags ctx with an agent cycle id.
func WithCycle(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cycleKey{}, id)
}

// Ctx returns base enriched with the cycle id carried by ctx, if any, so a
// component's lines can be grouped by the cycle that caused them.
func Ctx(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return base
	}
	if id, ok := ctx.Value(cycleKey{}).(string); ok && id != "" {
		return base.With().Str("cycle", id).Logger()
	}
	return base
}
