// Package logging defines the logger contract shared by ferry components and
// a no-op implementation used when no provider is configured.
package logging

import (
	"context"
	"maps"
)

// Logger is the structured logger used across the conversion pipeline.
type Logger interface {
	Trace(msg string, args ...any)
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	WithContext(ctx context.Context) Logger
}

// FieldsLogger is implemented by loggers that can attach structured fields.
type FieldsLogger interface {
	WithFields(fields map[string]any) Logger
}

// Provider hands out named loggers.
type Provider interface {
	GetLogger(name string) Logger
}

// Component logger names.
const (
	RootModule      = "ferry"
	AssistModule    = "ferry.assist"
	FallbackModule  = "ferry.fallback"
	TransformModule = "ferry.transform"
	ExportModule    = "ferry.export"
	ReportModule    = "ferry.report"
)

// ModuleLogger returns a module-scoped logger, defaulting to NoOp when no
// provider is supplied. The module name is attached as a field.
func ModuleLogger(provider Provider, module string) Logger {
	if module == "" {
		module = RootModule
	}
	logger := NoOp()
	if provider != nil {
		if provided := provider.GetLogger(module); provided != nil {
			logger = provided
		}
	}
	return WithFields(logger, map[string]any{"module": module})
}

// WithFields attaches fields when the logger supports them.
func WithFields(logger Logger, fields map[string]any) Logger {
	if logger == nil || len(fields) == 0 {
		return logger
	}
	if fl, ok := logger.(FieldsLogger); ok {
		copied := make(map[string]any, len(fields))
		maps.Copy(copied, fields)
		return fl.WithFields(copied)
	}
	return logger
}

// OrNoOp returns logger, or a no-op logger when it is nil.
func OrNoOp(logger Logger) Logger {
	if logger == nil {
		return NoOp()
	}
	return logger
}

type noop struct{}

// NoOp returns a logger that discards everything.
func NoOp() Logger { return noop{} }

func (noop) Trace(string, ...any)                 {}
func (noop) Debug(string, ...any)                 {}
func (noop) Info(string, ...any)                  {}
func (noop) Warn(string, ...any)                  {}
func (noop) Error(string, ...any)                 {}
func (n noop) WithContext(context.Context) Logger { return n }
