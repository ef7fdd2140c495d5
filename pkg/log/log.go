package log

import (
	"context"

	"go.uber.org/zap"
)

type loggerContextKey int

const defaultLoggerContextKey loggerContextKey = 0

// IntoContext stores the logger in the returned context.
func IntoContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, defaultLoggerContextKey, logger)
}

// FromContext returns the logger carried by ctx, or the global zap logger if there is none.
func FromContext(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(defaultLoggerContextKey).(*zap.Logger); ok && logger != nil {
			return logger
		}
	}
	return zap.L()
}

// New builds the process logger for the given mode ("development" or "production").
func New(mode string) (*zap.Logger, error) {
	if mode == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
