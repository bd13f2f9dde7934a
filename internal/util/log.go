package util

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github/chapool/go-stark-signer/internal/config"
)

type contextKey string

const disableLoggerKey contextKey = "disable_logger"

// LogFromContext returns the logger attached to ctx. If ctx carries no logger the global zerolog
// instance is returned instead, so this function always returns a usable logger.
func LogFromContext(ctx context.Context) *zerolog.Logger {
	l := log.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		if ShouldDisableLogger(ctx) {
			return l
		}
		l = &log.Logger
	}
	return l
}

// WithRequestID attaches a child logger carrying request_id to ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	l := LogFromContext(ctx).With().Str("request_id", requestID).Logger()
	return l.WithContext(ctx)
}

// DisableLogger marks ctx so LogFromContext returns a disabled logger.
func DisableLogger(ctx context.Context, shouldDisable bool) context.Context {
	return context.WithValue(ctx, disableLoggerKey, shouldDisable)
}

// ShouldDisableLogger reports whether DisableLogger was applied to ctx.
func ShouldDisableLogger(ctx context.Context) bool {
	s, ok := ctx.Value(disableLoggerKey).(bool)
	return ok && s
}

// NewLogger configures the global zerolog instance from cfg and returns it. An unparsable level
// falls back to info.
func NewLogger(cfg config.Logger) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(level)

	if cfg.PrettyPrintConsole {
		log.Logger = log.Output(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.Out = os.Stderr
			w.TimeFormat = "15:04:05"
		}))
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	return log.Logger
}
