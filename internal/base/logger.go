package base

import "context"

// LoggerAndTracer is the narrow logging surface the reftable packages take
// from callers, modeled on pebble's base.LoggerAndTracer. Readers and
// writers only reach for it off the hot path — e.g. to report a slow
// footer read — so a nil-friendly no-op implementation is the default.
type LoggerAndTracer interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	IsTracingEnabled(ctx context.Context) bool
	Eventf(ctx context.Context, format string, args ...interface{})
}

// NopLoggerAndTracer discards everything. It is the zero value used when a
// caller passes no logger in WriterOptions/ReaderOptions.
type NopLoggerAndTracer struct{}

// Infof implements LoggerAndTracer.
func (NopLoggerAndTracer) Infof(string, ...interface{}) {}

// Errorf implements LoggerAndTracer.
func (NopLoggerAndTracer) Errorf(string, ...interface{}) {}

// IsTracingEnabled implements LoggerAndTracer.
func (NopLoggerAndTracer) IsTracingEnabled(context.Context) bool { return false }

// Eventf implements LoggerAndTracer.
func (NopLoggerAndTracer) Eventf(context.Context, string, ...interface{}) {}

var _ LoggerAndTracer = NopLoggerAndTracer{}
