package pocketflow

import (
	"context"
	"log/slog"
)

// Logger provides structured logging.
type Logger interface {
	Debug(ctx context.Context, msg string, keysAndValues ...any)
	Info(ctx context.Context, msg string, keysAndValues ...any)
	Error(ctx context.Context, msg string, keysAndValues ...any)
}

// NewSlogLogger adapts a *slog.Logger to Logger. A nil logger uses
// slog.Default().
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return slogLogger{l: l}
}

type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Debug(ctx context.Context, msg string, keysAndValues ...any) {
	s.l.DebugContext(ctx, msg, keysAndValues...)
}

func (s slogLogger) Info(ctx context.Context, msg string, keysAndValues ...any) {
	s.l.InfoContext(ctx, msg, keysAndValues...)
}

func (s slogLogger) Error(ctx context.Context, msg string, keysAndValues ...any) {
	s.l.ErrorContext(ctx, msg, keysAndValues...)
}

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}

type loggerKey struct{}

// WithLogger returns a context that carries logger to every node run under it.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom returns the logger carried by ctx, or a logger that discards
// everything.
func LoggerFrom(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey{}).(Logger); ok && l != nil {
		return l
	}
	return nopLogger{}
}

type paramsKey struct{}

// withParams binds the effective params of one node invocation to ctx.
func withParams(ctx context.Context, p Params) context.Context {
	return context.WithValue(ctx, paramsKey{}, p)
}

// ParamsFrom returns the params in effect for the node whose phase is
// running. Inside a flow these are the node's merged flow params.
func ParamsFrom(ctx context.Context) Params {
	p, _ := ctx.Value(paramsKey{}).(Params)
	return p
}

func paramsBound(ctx context.Context) (Params, bool) {
	p, ok := ctx.Value(paramsKey{}).(Params)
	return p, ok
}
