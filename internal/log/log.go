// Package log provides the process-wide structured logger and the
// context-carried correlation identifiers used throughout the runtime.
package log

import (
	"context"
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
)

type ctxKey string

const (
	flowIDKey        ctxKey = "flow_id"
	correlationIDKey ctxKey = "correlation_id"
	elementIDKey     ctxKey = "element_id"
)

var logger atomic.Pointer[zerolog.Logger]

func init() {
	l := zerolog.New(os.Stderr).With().Timestamp().Logger()
	logger.Store(&l)
}

// L returns the process-wide logger.
func L() *zerolog.Logger {
	return logger.Load()
}

// SetLogger replaces the process-wide logger, e.g. to change level or output.
func SetLogger(l zerolog.Logger) {
	logger.Store(&l)
}

// ContextWithFlowID stores the flow id in the context for downstream log enrichment.
func ContextWithFlowID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, flowIDKey, id)
}

// ContextWithCorrelationID stores a correlation id in the context.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// ContextWithElementID stores the element id currently being acted on.
func ContextWithElementID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, elementIDKey, id)
}

// FlowIDFromContext extracts the flow id, if any.
func FlowIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(flowIDKey).(string)
	return v
}

// CorrelationIDFromContext extracts the correlation id, if any.
func CorrelationIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(correlationIDKey).(string)
	return v
}

// ElementIDFromContext extracts the element id, if any.
func ElementIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(elementIDKey).(string)
	return v
}

// FromContext returns a logger enriched with whatever identifiers are present in ctx.
func FromContext(ctx context.Context) zerolog.Logger {
	e := L().With()
	if id := FlowIDFromContext(ctx); id != "" {
		e = e.Str("flow_id", id)
	}
	if id := CorrelationIDFromContext(ctx); id != "" {
		e = e.Str("correlation_id", id)
	}
	if id := ElementIDFromContext(ctx); id != "" {
		e = e.Str("element_id", id)
	}
	return e.Logger()
}
